package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"messenger-backend/internal/middleware"
	"messenger-backend/internal/models"
	"messenger-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// LoginRequest represents a login body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PushTokenRequest represents a device registration body
type PushTokenRequest struct {
	Token string `json:"token"`
}

// URLResponse carries a download URL
type URLResponse struct {
	URL string `json:"url"`
}

// Register handles POST /api/v1/users. The body is JSON, or multipart form
// data with an optional "picture" file.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest

	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			respondError(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		req.FirstName = r.FormValue("first_name")
		req.LastName = r.FormValue("last_name")
		req.Email = r.FormValue("email")
		req.Password = r.FormValue("password")

		picture, err := readFormFile(r, "picture")
		if err != nil {
			respondError(w, "Invalid picture", http.StatusBadRequest)
			return
		}
		req.Picture = picture
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.userService.Register(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, "Failed to register user")
		return
	}

	log.Info().Str("email", req.Email).Msg("User registered")

	respondJSON(w, resp, http.StatusCreated)
}

// Login handles POST /api/v1/sessions
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, err, "Failed to log in")
		return
	}

	respondJSON(w, resp, http.StatusOK)
}

// UserExists handles GET /api/v1/users/exists?email=
func (h *UserHandler) UserExists(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		respondError(w, "email is required", http.StatusBadRequest)
		return
	}

	respondJSON(w, map[string]bool{"exists": h.userService.UserExists(r.Context(), email)}, http.StatusOK)
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetUser(r.Context(), middleware.GetUserEmail(r.Context()))
	if err != nil {
		respondServiceError(w, err, "Failed to get user")
		return
	}

	respondJSON(w, user, http.StatusOK)
}

// SearchUsers handles GET /api/v1/users?q=
func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.SearchUsers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondServiceError(w, err, "Failed to search users")
		return
	}

	respondJSON(w, users, http.StatusOK)
}

// UploadPicture handles PUT /api/v1/users/me/picture
func (h *UserHandler) UploadPicture(w http.ResponseWriter, r *http.Request) {
	email := middleware.GetUserEmail(r.Context())

	data, err := readUpload(w, r, "picture")
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	url, err := h.userService.UploadProfilePicture(r.Context(), email, data)
	if err != nil {
		respondServiceError(w, err, "Failed to upload picture")
		return
	}

	respondJSON(w, URLResponse{URL: url}, http.StatusOK)
}

// GetPicture handles GET /api/v1/users/{email}/picture
func (h *UserHandler) GetPicture(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "me" {
		email = middleware.GetUserEmail(r.Context())
	}

	url, err := h.userService.ProfilePictureURL(r.Context(), email)
	if err != nil {
		respondServiceError(w, err, "Failed to get picture url")
		return
	}

	respondJSON(w, URLResponse{URL: url}, http.StatusOK)
}

// RegisterPushToken handles PUT /api/v1/users/me/push-token
func (h *UserHandler) RegisterPushToken(w http.ResponseWriter, r *http.Request) {
	var req PushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.RegisterPushToken(r.Context(), middleware.GetUserEmail(r.Context()), req.Token); err != nil {
		respondServiceError(w, err, "Failed to register push token")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// readFormFile returns the content of a multipart file field, or nil when
// the field is absent.
func readFormFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// readUpload reads a file from a multipart field or, for any other content
// type, the raw body.
func readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	var data []byte
	var err error
	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return nil, fmt.Errorf("invalid form data")
		}
		data, err = readFormFile(r, field)
	} else {
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s", field)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is required: %w", field, models.ErrInvalidInput)
	}
	return data, nil
}
