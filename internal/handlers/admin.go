package handlers

import (
	"net/http"

	"github.com/diewo77/go-chantiers/httpx"
	"github.com/diewo77/go-chantiers/internal/services"
	"github.com/diewo77/go-chantiers/internal/tenancy"
	"github.com/diewo77/go-chantiers/validation"
)

// AdminHandler exposes operator maintenance. Routes must be wrapped with
// the operator middleware.
type AdminHandler struct {
	Responder
	admin *services.AdminService
}

func NewAdminHandler(rs Responder, admin *services.AdminService) *AdminHandler {
	return &AdminHandler{Responder: rs, admin: admin}
}

type adminDeleteRequest struct {
	Type string `json:"type"`
	ID   uint   `json:"id"`
}

// Delete removes any row of a supported type, whatever its tenant.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var in adminDeleteRequest
	if err := httpx.Decode(w, r, &in); err != nil {
		h.Error(w, r, "admin delete", err)
		return
	}
	if in.ID == 0 {
		h.Error(w, r, "admin delete", validation.Violations{"id": "required"})
		return
	}
	sc, _ := tenancy.FromContext(r.Context())
	if err := h.admin.Delete(r.Context(), sc, in.Type, in.ID); err != nil {
		h.Error(w, r, "admin delete", err)
		return
	}
	h.Logger.InfoContext(r.Context(), "operator delete",
		"operator", sc.UserID, "type", in.Type, "id", in.ID)
	w.WriteHeader(http.StatusNoContent)
}
