package handlers

import (
	"net/http"

	"github.com/diewo77/go-chantiers/httpx"
	"github.com/diewo77/go-chantiers/internal/services"
)

type DashboardHandler struct {
	Responder
	dashboard *services.DashboardService
}

func NewDashboardHandler(rs Responder, dashboard *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{Responder: rs, dashboard: dashboard}
}

func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	s, err := h.dashboard.Summary(r.Context(), sc)
	if err != nil {
		h.Error(w, r, "dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}
