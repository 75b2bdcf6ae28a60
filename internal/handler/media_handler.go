package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/prn-tf/pantry/internal/storage"
)

// MediaHandler serves stored images from a storage backend. It is mounted
// only for backends without their own public endpoint.
type MediaHandler struct {
	backend storage.Backend
}

// NewMediaHandler creates a new MediaHandler.
func NewMediaHandler(backend storage.Backend) *MediaHandler {
	return &MediaHandler{backend: backend}
}

// ServeHTTP streams the object named by the wildcard URL parameter.
func (h *MediaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if storage.ValidateKey(key) != nil {
		notFound(w, r)
		return
	}

	body, err := h.backend.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			notFound(w, r)
			return
		}
		writeError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", storage.ContentTypeForKey(key))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("key", key).Msg("failed to stream media")
	}
}
