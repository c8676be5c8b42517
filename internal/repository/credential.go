package repository

import (
	"context"
	"time"

	"messenger-backend/internal/identity"
	"messenger-backend/internal/kvstore"
)

// Credential is the login secret of a user
type Credential struct {
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Device is the push target of a user
type Device struct {
	APNsToken string    `json:"apns_token"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CredentialRepository stores password hashes and device tokens, each in its
// own tree so they never appear in user records.
type CredentialRepository struct {
	auth    *kvstore.Tree
	devices *kvstore.Tree
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(auth, devices *kvstore.Tree) *CredentialRepository {
	return &CredentialRepository{auth: auth, devices: devices}
}

// SaveCredential stores the credential for email
func (r *CredentialRepository) SaveCredential(ctx context.Context, email string, cred Credential) error {
	if err := r.auth.Ref(identity.SafeKey(email)).Set(ctx, cred); err != nil {
		return writeFailed("save credential", err)
	}
	return nil
}

// GetCredential retrieves the credential for email
func (r *CredentialRepository) GetCredential(ctx context.Context, email string) (*Credential, error) {
	var cred Credential
	if err := r.auth.Ref(identity.SafeKey(email)).Get(ctx, &cred); err != nil {
		return nil, readFailed("get credential", err)
	}
	return &cred, nil
}

// SaveDevice stores the push target for email
func (r *CredentialRepository) SaveDevice(ctx context.Context, email string, device Device) error {
	if err := r.devices.Ref(identity.SafeKey(email)).Set(ctx, device); err != nil {
		return writeFailed("save device", err)
	}
	return nil
}

// GetDevice retrieves the push target for email
func (r *CredentialRepository) GetDevice(ctx context.Context, email string) (*Device, error) {
	var device Device
	if err := r.devices.Ref(identity.SafeKey(email)).Get(ctx, &device); err != nil {
		return nil, readFailed("get device", err)
	}
	return &device, nil
}
