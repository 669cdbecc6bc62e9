package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/tallysync/internal/models"
	"github.com/iudanet/tallysync/internal/server/storage"
)

// SaveSnapshot unconditionally replaces the snapshot for the account.
// Last-write-wins: no version check, the caller (session registry)
// serializes writes per account.
func (s *Storage) SaveSnapshot(ctx context.Context, accountID string, state json.RawMessage) error {
	query := `
		INSERT INTO snapshots (account_id, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query, accountID, []byte(state), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// GetSnapshot retrieves the current snapshot for the account
func (s *Storage) GetSnapshot(ctx context.Context, accountID string) (*models.StateSnapshot, error) {
	query := `
		SELECT account_id, state, updated_at
		FROM snapshots
		WHERE account_id = ?
	`

	snapshot := &models.StateSnapshot{}
	var state []byte

	err := s.db.QueryRowContext(ctx, query, accountID).Scan(
		&snapshot.AccountID,
		&state,
		&snapshot.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	snapshot.State = json.RawMessage(state)
	return snapshot, nil
}

// DeleteSnapshot removes the snapshot for the account
func (s *Storage) DeleteSnapshot(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE account_id = ?`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
