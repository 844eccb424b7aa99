package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/diewo77/go-chantiers/httpx"
	"github.com/diewo77/go-chantiers/internal/billing"
)

// maxWebhookBody bounds the webhook payload read into memory.
const maxWebhookBody = 64 << 10

type BillingHandler struct {
	Responder
	billing       *billing.Service
	webhookSecret string
}

func NewBillingHandler(rs Responder, svc *billing.Service, webhookSecret string) *BillingHandler {
	return &BillingHandler{Responder: rs, billing: svc, webhookSecret: webhookSecret}
}

type checkoutRequest struct {
	EntrepriseID uint `json:"entreprise_id"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

// Checkout starts a hosted checkout for the caller's company. An empty
// body means the caller's own company.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	var in checkoutRequest
	if r.ContentLength != 0 {
		if err := httpx.Decode(w, r, &in); err != nil {
			h.Error(w, r, "checkout", err)
			return
		}
	}
	url, err := h.billing.Checkout(r.Context(), sc, in.EntrepriseID)
	if err != nil {
		h.Error(w, r, "checkout", err)
		return
	}
	httpx.JSON(w, http.StatusOK, checkoutResponse{URL: url})
}

// Webhook receives Stripe events. The body is verified against the
// signing secret before anything is decoded.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret == "" {
		h.Error(w, r, "webhook", billing.ErrNotConfigured)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		httpx.JSONError(w, http.StatusRequestEntityTooLarge, CodeTooLarge, nil)
		return
	}
	event, err := billing.ConstructEvent(payload, r.Header.Get(billing.SignatureHeader), h.webhookSecret)
	if err != nil {
		h.Logger.WarnContext(r.Context(), "webhook rejected", "err", err)
		httpx.JSONError(w, http.StatusBadRequest, httpx.CodeBadRequest, nil)
		return
	}
	switch err := h.billing.HandleEvent(r.Context(), &event); {
	case err == nil:
	case errors.Is(err, billing.ErrUnknownCustomer):
		// Acknowledged so Stripe stops retrying.
		h.Logger.InfoContext(r.Context(), "webhook ignored", "type", event.Type, "id", event.ID)
	case errors.Is(err, billing.ErrMalformedPayload):
		httpx.JSONError(w, http.StatusBadRequest, httpx.CodeBadRequest, nil)
		return
	default:
		h.Error(w, r, "webhook", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"received": true})
}
