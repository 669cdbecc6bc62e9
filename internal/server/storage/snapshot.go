package storage

import (
	"context"
	"encoding/json"

	"github.com/iudanet/tallysync/internal/models"
)

// SnapshotStorage defines interface for the durable per-account state
// snapshot. Exactly one snapshot exists per account; it is replaced
// wholesale on every update (last-write-wins), never merged.
type SnapshotStorage interface {
	// SaveSnapshot unconditionally replaces the snapshot for the account
	SaveSnapshot(ctx context.Context, accountID string, state json.RawMessage) error

	// GetSnapshot retrieves the current snapshot for the account
	// Returns ErrSnapshotNotFound if none exists yet
	GetSnapshot(ctx context.Context, accountID string) (*models.StateSnapshot, error)

	// DeleteSnapshot removes the snapshot for the account.
	// Deleting a missing snapshot is not an error.
	DeleteSnapshot(ctx context.Context, accountID string) error
}
