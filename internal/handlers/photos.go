package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/diewo77/go-chantiers/httpx"
	"github.com/diewo77/go-chantiers/internal/services"
	"github.com/diewo77/go-chantiers/internal/storage"
)

// multipartSlack covers the multipart envelope around the file.
const multipartSlack = 1 << 20

type PhotoHandler struct {
	Responder
	photos    *services.PhotoService
	maxUpload int64
}

func NewPhotoHandler(rs Responder, photos *services.PhotoService, maxUpload int64) *PhotoHandler {
	return &PhotoHandler{Responder: rs, photos: photos, maxUpload: maxUpload}
}

func (h *PhotoHandler) List(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	id, ok := h.ID(w, r, "id")
	if !ok {
		return
	}
	list, err := h.photos.List(r.Context(), sc, id)
	if err != nil {
		h.Error(w, r, "list photos", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

// Upload reads a multipart form with a "file" part and an optional
// "caption" field.
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	id, ok := h.ID(w, r, "id")
	if !ok {
		return
	}
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartSlack)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.Error(w, r, "upload photo", services.ErrTooLarge)
			return
		}
		httpx.JSONError(w, http.StatusBadRequest, httpx.CodeBadRequest, map[string]string{"file": "required"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = sniff(file)
	}
	p, err := h.photos.Upload(r.Context(), sc, id, services.PhotoUpload{
		Body:        file,
		ContentType: contentType,
		Caption:     r.FormValue("caption"),
	})
	if err != nil {
		h.Error(w, r, "upload photo", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

// sniff detects the type from the first bytes and rewinds the file.
func sniff(f io.ReadSeeker) string {
	buf := make([]byte, 512)
	n, _ := io.ReadFull(f, buf)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return ""
	}
	return http.DetectContentType(buf[:n])
}

func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	id, ok := h.ID(w, r, "id")
	if !ok {
		return
	}
	photoID, ok := h.ID(w, r, "photo")
	if !ok {
		return
	}
	if err := h.photos.Delete(r.Context(), sc, id, photoID); err != nil {
		h.Error(w, r, "delete photo", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Download serves an object behind a signed link. No session is needed:
// the signature is the credential.
func (h *PhotoHandler) Download(w http.ResponseWriter, r *http.Request) {
	key, err := h.photos.Verify(r.Context(), r.URL)
	if err != nil {
		h.Error(w, r, "download photo", err)
		return
	}
	rc, p, err := h.photos.Open(r.Context(), key)
	if err != nil {
		h.Error(w, r, "download photo", err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", p.ContentType)
	if p.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(p.Size, 10))
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		tenant, _ := storage.TenantOf(key)
		h.Logger.WarnContext(r.Context(), "download interrupted", "tenant", tenant, "key", key, "err", err)
	}
}
