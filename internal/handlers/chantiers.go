package handlers

import (
	"net/http"
	"strconv"

	"github.com/diewo77/go-chantiers/httpx"
	"github.com/diewo77/go-chantiers/internal/access"
	"github.com/diewo77/go-chantiers/internal/services"
)

type ChantierHandler struct {
	Responder
	chantiers *services.ChantierService
	photos    *services.PhotoService
}

func NewChantierHandler(rs Responder, chantiers *services.ChantierService, photos *services.PhotoService) *ChantierHandler {
	return &ChantierHandler{Responder: rs, chantiers: chantiers, photos: photos}
}

// List accepts ?status=, ?client_id= and ?q=.
func (h *ChantierHandler) List(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := services.ChantierFilter{Status: q.Get("status"), Query: q.Get("q")}
	if v := q.Get("client_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			httpx.JSONError(w, http.StatusBadRequest, httpx.CodeBadRequest, nil)
			return
		}
		f.ClientID = uint(id)
	}
	list, err := h.chantiers.List(r.Context(), sc, f)
	if err != nil {
		h.Error(w, r, "list chantiers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

// Get returns the job site with its client, notes, checklist and photos.
// Photo URLs are signed for the caller.
func (h *ChantierHandler) Get(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	id, ok := h.ID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.chantiers.Get(r.Context(), sc, id)
	if err != nil {
		h.Error(w, r, "get chantier", err)
		return
	}
	if !h.Allowed(w, r, access.ActionView, access.ResourceChantier, c) {
		return
	}
	if photos, err := h.photos.List(r.Context(), sc, id); err == nil {
		c.Photos = photos
	} else {
		h.Logger.WarnContext(r.Context(), "sign photos", "chantier", id, "err", err)
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *ChantierHandler) Create(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	var in services.ChantierInput
	if err := httpx.Decode(w, r, &in); err != nil {
		h.Error(w, r, "create chantier", err)
		return
	}
	c, err := h.chantiers.Create(r.Context(), sc, in)
	if err != nil {
		h.Error(w, r, "create chantier", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *ChantierHandler) Update(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	id, ok := h.ID(w, r, "id")
	if !ok {
		return
	}
	var in services.ChantierInput
	if err := httpx.Decode(w, r, &in); err != nil {
		h.Error(w, r, "update chantier", err)
		return
	}
	c, err := h.chantiers.Update(r.Context(), sc, id, in)
	if err != nil {
		h.Error(w, r, "update chantier", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *ChantierHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	id, ok := h.ID(w, r, "id")
	if !ok {
		return
	}
	if err := h.chantiers.Delete(r.Context(), sc, id); err != nil {
		h.Error(w, r, "delete chantier", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type noteRequest struct {
	Body string `json:"body"`
}

func (h *ChantierHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	id, ok := h.ID(w, r, "id")
	if !ok {
		return
	}
	var in noteRequest
	if err := httpx.Decode(w, r, &in); err != nil {
		h.Error(w, r, "add note", err)
		return
	}
	n, err := h.chantiers.AddNote(r.Context(), sc, id, in.Body)
	if err != nil {
		h.Error(w, r, "add note", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, n)
}

func (h *ChantierHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	id, ok := h.ID(w, r, "id")
	if !ok {
		return
	}
	noteID, ok := h.ID(w, r, "note")
	if !ok {
		return
	}
	if err := h.chantiers.DeleteNote(r.Context(), sc, id, noteID); err != nil {
		h.Error(w, r, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checklistRequest struct {
	Label string `json:"label"`
}

func (h *ChantierHandler) AddChecklistItem(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	id, ok := h.ID(w, r, "id")
	if !ok {
		return
	}
	var in checklistRequest
	if err := httpx.Decode(w, r, &in); err != nil {
		h.Error(w, r, "add checklist item", err)
		return
	}
	item, err := h.chantiers.AddChecklistItem(r.Context(), sc, id, in.Label)
	if err != nil {
		h.Error(w, r, "add checklist item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

type toggleRequest struct {
	Done *bool `json:"done"`
}

// ToggleChecklistItem sets done from the body, or flips it when the body
// is empty.
func (h *ChantierHandler) ToggleChecklistItem(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	id, ok := h.ID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := h.ID(w, r, "item")
	if !ok {
		return
	}
	var in toggleRequest
	if r.ContentLength != 0 {
		if err := httpx.Decode(w, r, &in); err != nil {
			h.Error(w, r, "toggle checklist item", err)
			return
		}
	}
	item, err := h.chantiers.ToggleChecklistItem(r.Context(), sc, id, itemID, in.Done)
	if err != nil {
		h.Error(w, r, "toggle checklist item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *ChantierHandler) DeleteChecklistItem(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	id, ok := h.ID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := h.ID(w, r, "item")
	if !ok {
		return
	}
	if err := h.chantiers.DeleteChecklistItem(r.Context(), sc, id, itemID); err != nil {
		h.Error(w, r, "delete checklist item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
