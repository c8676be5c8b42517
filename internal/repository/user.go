package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"messenger-backend/internal/identity"
	"messenger-backend/internal/kvstore"
	"messenger-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// UserRepository handles storage of user records and the user directory
type UserRepository struct {
	tree *kvstore.Tree
}

// NewUserRepository creates a new user repository
func NewUserRepository(tree *kvstore.Tree) *UserRepository {
	return &UserRepository{tree: tree}
}

// UserExists reports whether a user record is stored for email.
// Missing nodes, nodes of another shape and store errors all report false.
func (r *UserRepository) UserExists(ctx context.Context, email string) bool {
	safeEmail := identity.SafeKey(email)

	var fields map[string]json.RawMessage
	if err := r.tree.Ref(safeEmail).Get(ctx, &fields); err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			log.Warn().Err(err).Str("safe_email", safeEmail).Msg("User lookup failed")
		}
		return false
	}

	_, ok := fields["first_name"]
	return ok
}

// InsertUser writes the name fields of the user record and adds the user to
// the directory. Other fields already stored under the key, such as a
// conversation list, are kept.
func (r *UserRepository) InsertUser(ctx context.Context, user *models.User) error {
	safeEmail := identity.SafeKey(user.EmailAddress)

	err := r.tree.Ref(safeEmail).Transaction(ctx, func(current json.RawMessage) (any, error) {
		fields := map[string]any{}
		if current != nil {
			if err := json.Unmarshal(current, &fields); err != nil {
				return nil, err
			}
		}
		if fields == nil {
			fields = map[string]any{}
		}
		fields["first_name"] = user.FirstName
		fields["last_name"] = user.LastName
		return fields, nil
	})
	if err != nil {
		return writeFailed("insert user", err)
	}

	entry := models.UserEntry{
		Name:  user.DisplayName(),
		Email: safeEmail,
	}
	err = r.tree.Ref(usersPath).Transaction(ctx, func(current json.RawMessage) (any, error) {
		var users []models.UserEntry
		if current != nil {
			if err := json.Unmarshal(current, &users); err != nil {
				return nil, err
			}
		}
		return append(users, entry), nil
	})
	if err != nil {
		return writeFailed("add user to directory", err)
	}

	return nil
}

// GetUser retrieves the user record for email. A node without a first name
// is not a user.
func (r *UserRepository) GetUser(ctx context.Context, email string) (*models.User, error) {
	var record userRecord
	if err := r.tree.Ref(identity.SafeKey(email)).Get(ctx, &record); err != nil {
		return nil, readFailed("get user", err)
	}
	if record.FirstName == nil {
		return nil, fmt.Errorf("failed to get user: %w", models.ErrNotFound)
	}

	return &models.User{
		FirstName:    *record.FirstName,
		LastName:     record.LastName,
		EmailAddress: email,
	}, nil
}

// GetAllUsers returns the user directory
func (r *UserRepository) GetAllUsers(ctx context.Context) ([]models.UserEntry, error) {
	users := []models.UserEntry{}
	if err := r.tree.Ref(usersPath).Get(ctx, &users); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return []models.UserEntry{}, nil
		}
		return nil, readFailed("get users", err)
	}
	return users, nil
}
