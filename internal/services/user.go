package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"messenger-backend/internal/identity"
	"messenger-backend/internal/models"
	"messenger-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	jwtExpDays        = 365
	minPasswordLength = 6
)

// UserService handles registration, login and tokens
type UserService struct {
	userRepo  *repository.UserRepository
	credRepo  *repository.CredentialRepository
	media     *MediaService
	jwtSecret string
}

// NewUserService creates a new user service
func NewUserService(
	userRepo *repository.UserRepository,
	credRepo *repository.CredentialRepository,
	media *MediaService,
	jwtSecret string,
) *UserService {
	return &UserService{
		userRepo:  userRepo,
		credRepo:  credRepo,
		media:     media,
		jwtSecret: jwtSecret,
	}
}

// RegisterRequest represents a sign-up
type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Picture   []byte `json:"-"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	User              *models.User `json:"user"`
	Token             string       `json:"token"`
	ProfilePictureURL string       `json:"profile_picture_url,omitempty"`
}

// ValidateEmail rejects addresses that cannot be used as a storage path
func ValidateEmail(email string) error {
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("email %q: %w", email, models.ErrInvalidInput)
	}
	if strings.ContainsAny(email, "/ \t\r\n") {
		return fmt.Errorf("email %q contains forbidden characters: %w", email, models.ErrInvalidInput)
	}
	return nil
}

// Register creates the user record and credential. A profile picture
// upload failure is logged and does not fail the registration.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if err := ValidateEmail(req.Email); err != nil {
		return nil, err
	}
	if req.FirstName == "" || req.LastName == "" {
		return nil, fmt.Errorf("first and last name are required: %w", models.ErrInvalidInput)
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, models.ErrInvalidInput)
	}

	if s.userRepo.UserExists(ctx, req.Email) {
		return nil, models.ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	cred := repository.Credential{
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := s.credRepo.SaveCredential(ctx, req.Email, cred); err != nil {
		return nil, fmt.Errorf("failed to save credential: %w", err)
	}

	user := &models.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		EmailAddress: req.Email,
	}
	if err := s.userRepo.InsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	token, err := s.GenerateJWT(req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	resp := &AuthResponse{User: user, Token: token}
	if len(req.Picture) > 0 {
		url, err := s.UploadProfilePicture(ctx, req.Email, req.Picture)
		if err != nil {
			log.Error().Err(err).Str("email", req.Email).Msg("Failed to upload profile picture")
		} else {
			resp.ProfilePictureURL = url
		}
	}

	return resp, nil
}

// Login checks the password and issues a token
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	cred, err := s.credRepo.GetCredential(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}

	user, err := s.userRepo.GetUser(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	token, err := s.GenerateJWT(email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &AuthResponse{User: user, Token: token}, nil
}

// UserExists reports whether email is registered
func (s *UserService) UserExists(ctx context.Context, email string) bool {
	return s.userRepo.UserExists(ctx, email)
}

// GetUser returns the record of a registered user
func (s *UserService) GetUser(ctx context.Context, email string) (*models.User, error) {
	return s.userRepo.GetUser(ctx, email)
}

// SearchUsers returns directory entries whose name or email contains query
func (s *UserService) SearchUsers(ctx context.Context, query string) ([]models.UserEntry, error) {
	users, err := s.userRepo.GetAllUsers(ctx)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return users, nil
	}

	query = strings.ToLower(query)
	safeQuery := strings.ToLower(identity.SafeKey(query))
	results := []models.UserEntry{}
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Name), query) || strings.Contains(strings.ToLower(u.Email), safeQuery) {
			results = append(results, u)
		}
	}
	return results, nil
}

// UploadProfilePicture stores the user's picture and returns its URL
func (s *UserService) UploadProfilePicture(ctx context.Context, email string, data []byte) (string, error) {
	return s.media.UploadProfilePicture(ctx, data, identity.ProfilePictureFileName(email))
}

// ProfilePictureURL resolves the URL of the user's picture
func (s *UserService) ProfilePictureURL(ctx context.Context, email string) (string, error) {
	return s.media.DownloadURL(ctx, imagesPrefix+identity.ProfilePictureFileName(email))
}

// RegisterPushToken stores the APNs device token of a user
func (s *UserService) RegisterPushToken(ctx context.Context, email, token string) error {
	if token == "" {
		return fmt.Errorf("push token is required: %w", models.ErrInvalidInput)
	}
	return s.credRepo.SaveDevice(ctx, email, repository.Device{
		APNsToken: token,
		UpdatedAt: time.Now(),
	})
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(email string) (string, error) {
	claims := jwt.MapClaims{
		"email": email,
		"exp":   time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":   time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user's email
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	email, ok := claims["email"].(string)
	if !ok {
		return "", fmt.Errorf("email not found in token")
	}

	return email, nil
}
