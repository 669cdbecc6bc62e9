package storage

import (
	"context"
	"time"

	"github.com/iudanet/tallysync/internal/models"
)

// AccountStorage defines interface for account persistence.
// It is the authoritative account directory: the credential verifier
// and the session registry resolve identities against it.
type AccountStorage interface {
	// CreateAccount creates a new account in the storage
	// Returns ErrAccountAlreadyExists if email is taken
	CreateAccount(ctx context.Context, account *models.Account) error

	// GetAccountByEmail retrieves account by email
	// Returns ErrAccountNotFound if account doesn't exist
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)

	// GetAccountByID retrieves account by ID
	// Returns ErrAccountNotFound if account doesn't exist
	GetAccountByID(ctx context.Context, accountID string) (*models.Account, error)

	// ListAccounts retrieves all accounts ordered by creation time
	ListAccounts(ctx context.Context) ([]*models.Account, error)

	// SetSubscriptionEnd updates the subscription window
	// Returns ErrAccountNotFound if account doesn't exist
	SetSubscriptionEnd(ctx context.Context, accountID string, end time.Time) error

	// SetBlacklisted updates the blacklist flag
	// Returns ErrAccountNotFound if account doesn't exist
	SetBlacklisted(ctx context.Context, accountID string, blacklisted bool) error

	// DeleteAccount deletes account by ID
	// Returns ErrAccountNotFound if account doesn't exist
	DeleteAccount(ctx context.Context, accountID string) error

	// UpdateLastLogin updates the last login timestamp
	UpdateLastLogin(ctx context.Context, accountID string, lastLogin time.Time) error
}
