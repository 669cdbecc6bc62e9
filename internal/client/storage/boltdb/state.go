package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/tallysync/internal/client/storage"
)

var stateKey = []byte("mirror")

// SaveState overwrites the local state mirror
func (s *Storage) SaveState(ctx context.Context, state json.RawMessage) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketState)
		if bucket == nil {
			return fmt.Errorf("state bucket not found")
		}

		if err := bucket.Put(stateKey, state); err != nil {
			return fmt.Errorf("failed to save state: %w", err)
		}

		return nil
	})
}

// GetState retrieves the local state mirror
func (s *Storage) GetState(ctx context.Context) (json.RawMessage, error) {
	var state json.RawMessage

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketState)
		if bucket == nil {
			return fmt.Errorf("state bucket not found")
		}

		data := bucket.Get(stateKey)
		if data == nil {
			return storage.ErrStateNotFound
		}

		// bbolt переиспользует буфер после завершения транзакции
		state = make(json.RawMessage, len(data))
		copy(state, data)

		return nil
	})

	if err != nil {
		return nil, err
	}

	return state, nil
}

// DeleteState drops the local state mirror
func (s *Storage) DeleteState(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketState)
		if bucket == nil {
			return fmt.Errorf("state bucket not found")
		}

		if err := bucket.Delete(stateKey); err != nil {
			return fmt.Errorf("failed to delete state: %w", err)
		}

		return nil
	})
}
