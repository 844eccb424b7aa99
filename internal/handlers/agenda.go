package handlers

import (
	"net/http"
	"time"

	"github.com/diewo77/go-chantiers/httpx"
	"github.com/diewo77/go-chantiers/internal/access"
	"github.com/diewo77/go-chantiers/internal/agenda"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/validation"
)

type AgendaHandler struct {
	Responder
	events *agenda.Service
	now    func() time.Time
}

func NewAgendaHandler(rs Responder, events *agenda.Service) *AgendaHandler {
	return &AgendaHandler{Responder: rs, events: events, now: time.Now}
}

// parseFrom reads ?from= as RFC 3339 or a plain date in loc.
func parseFrom(r *http.Request, loc *time.Location) (time.Time, error) {
	raw := r.URL.Query().Get("from")
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return time.Time{}, validation.Violations{"from": "invalid_date"}
	}
	return t, nil
}

// List returns the caller's events, optionally from ?from= onwards.
func (h *AgendaHandler) List(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	from, err := parseFrom(r, agenda.Location(r, time.Local))
	if err != nil {
		h.Error(w, r, "list events", err)
		return
	}
	events, err := h.events.List(r.Context(), sc, from)
	if err != nil {
		h.Error(w, r, "list events", err)
		return
	}
	if events == nil {
		events = []models.AgendaEvent{}
	}
	httpx.JSON(w, http.StatusOK, events)
}

// Buckets splits the caller's events into today and upcoming in the
// viewer's zone (?tz= or X-Timezone).
func (h *AgendaHandler) Buckets(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	now := h.now().In(agenda.Location(r, time.Local))
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	events, err := h.events.List(r.Context(), sc, midnight)
	if err != nil {
		h.Error(w, r, "agenda buckets", err)
		return
	}
	httpx.JSON(w, http.StatusOK, agenda.Bucket(events, now))
}

func (h *AgendaHandler) Get(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	id, ok := h.ID(w, r, "id")
	if !ok {
		return
	}
	e, err := h.events.Get(r.Context(), sc, id)
	if err != nil {
		h.Error(w, r, "get event", err)
		return
	}
	if !h.Allowed(w, r, access.ActionView, access.ResourceEvent, e) {
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *AgendaHandler) Create(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	var in agenda.EventInput
	if err := httpx.Decode(w, r, &in); err != nil {
		h.Error(w, r, "create event", err)
		return
	}
	e, err := h.events.Create(r.Context(), sc, in)
	if err != nil {
		h.Error(w, r, "create event", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *AgendaHandler) Update(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	id, ok := h.ID(w, r, "id")
	if !ok {
		return
	}
	var in agenda.EventInput
	if err := httpx.Decode(w, r, &in); err != nil {
		h.Error(w, r, "update event", err)
		return
	}
	e, err := h.events.Update(r.Context(), sc, id, in)
	if err != nil {
		h.Error(w, r, "update event", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *AgendaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	id, ok := h.ID(w, r, "id")
	if !ok {
		return
	}
	if err := h.events.Delete(r.Context(), sc, id); err != nil {
		h.Error(w, r, "delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
