package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"

	"messenger-backend/internal/blobstore"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// MediaHandler serves stored blobs for the local storage driver
type MediaHandler struct {
	storage blobstore.Storage
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(storage blobstore.Storage) *MediaHandler {
	return &MediaHandler{
		storage: storage,
	}
}

// ServeMedia handles GET /media/*
func (h *MediaHandler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		respondError(w, "Not found", http.StatusNotFound)
		return
	}

	rc, err := h.storage.Read(r.Context(), key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			respondError(w, "Not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("key", key).Msg("Failed to read media")
		respondError(w, "Failed to read media", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Media copy interrupted")
	}
}
