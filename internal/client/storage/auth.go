package storage

import (
	"context"
)

// AuthStorage defines interface for storing authentication data on client.
// This is the lowest storage layer - it persists the session token between
// CLI invocations so the watch command can reconnect without a new login.
type AuthStorage interface {
	// SaveAuth stores authentication data
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth retrieves stored authentication data.
	// Returns ErrAuthNotFound if no auth data exists
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth removes stored authentication data (logout)
	DeleteAuth(ctx context.Context) error

	// IsAuthenticated checks if valid authentication exists (not expired)
	IsAuthenticated(ctx context.Context) (bool, error)
}

// AuthData represents authentication information in storage
type AuthData struct {
	Email        string `json:"email"`
	AccountID    string `json:"account_id"`
	AccountClass string `json:"account_class"`
	Token        string `json:"token"`
	ExpiresAt    int64  `json:"expires_at"` // unix seconds
}
