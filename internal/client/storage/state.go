package storage

import (
	"context"
	"encoding/json"
)

// StateStorage defines interface for the local mirror of the replicated
// account state. The mirror is what the CLI shows while offline; it is
// overwritten wholesale on every snapshot or update from the server
// (last write wins, no merging on the client).
type StateStorage interface {
	// SaveState overwrites the local state mirror
	SaveState(ctx context.Context, state json.RawMessage) error

	// GetState retrieves the local state mirror.
	// Returns ErrStateNotFound if nothing was ever synced
	GetState(ctx context.Context) (json.RawMessage, error)

	// DeleteState drops the local state mirror (logout)
	DeleteState(ctx context.Context) error
}
