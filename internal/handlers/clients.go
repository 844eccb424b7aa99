package handlers

import (
	"net/http"

	"github.com/diewo77/go-chantiers/httpx"
	"github.com/diewo77/go-chantiers/internal/access"
	"github.com/diewo77/go-chantiers/internal/services"
)

type ClientHandler struct {
	Responder
	clients *services.ClientService
}

func NewClientHandler(rs Responder, clients *services.ClientService) *ClientHandler {
	return &ClientHandler{Responder: rs, clients: clients}
}

// List accepts ?q= to search by name, email or phone.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	list, err := h.clients.List(r.Context(), sc, r.URL.Query().Get("q"))
	if err != nil {
		h.Error(w, r, "list clients", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	id, ok := h.ID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.clients.Get(r.Context(), sc, id)
	if err != nil {
		h.Error(w, r, "get client", err)
		return
	}
	if !h.Allowed(w, r, access.ActionView, access.ResourceClient, c) {
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	var in services.ClientInput
	if err := httpx.Decode(w, r, &in); err != nil {
		h.Error(w, r, "create client", err)
		return
	}
	c, err := h.clients.Create(r.Context(), sc, in)
	if err != nil {
		h.Error(w, r, "create client", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	id, ok := h.ID(w, r, "id")
	if !ok {
		return
	}
	var in services.ClientInput
	if err := httpx.Decode(w, r, &in); err != nil {
		h.Error(w, r, "update client", err)
		return
	}
	c, err := h.clients.Update(r.Context(), sc, id, in)
	if err != nil {
		h.Error(w, r, "update client", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	id, ok := h.ID(w, r, "id")
	if !ok {
		return
	}
	if err := h.clients.Delete(r.Context(), sc, id); err != nil {
		h.Error(w, r, "delete client", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
