package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"messenger-backend/internal/blobstore"
	"messenger-backend/internal/models"

	"github.com/rs/zerolog/log"
)

const maxUploadSize = 64 << 20

var (
	errInvalidBody = errors.New("invalid request body")
	errInvalidForm = errors.New("invalid form data")
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON sends v with the given status code
func respondJSON(w http.ResponseWriter, v interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// respondServiceError maps a service error to a status code and logs
// anything that is not the caller's fault.
func respondServiceError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrInvalidCredentials):
		respondError(w, "Invalid email or password", http.StatusUnauthorized)
	case errors.Is(err, models.ErrUserExists):
		respondError(w, "User already exists", http.StatusConflict)
	case errors.Is(err, models.ErrNotFound), errors.Is(err, blobstore.ErrNotFound):
		respondError(w, "Not found", http.StatusNotFound)
	case errors.Is(err, models.ErrUploadFailed), errors.Is(err, models.ErrURLResolutionFailed):
		log.Error().Err(err).Msg(action)
		respondError(w, action, http.StatusBadGateway)
	default:
		log.Error().Err(err).Msg(action)
		respondError(w, action, http.StatusInternalServerError)
	}
}
