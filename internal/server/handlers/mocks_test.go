package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/tallysync/internal/models"
	"github.com/iudanet/tallysync/internal/server/storage"
)

// mockAccounts is an in-memory AccountStorage
type mockAccounts struct {
	mu       sync.Mutex
	accounts map[string]*models.Account // by id
	err      error                      // заставляет все методы падать
}

func newMockAccounts(accounts ...*models.Account) *mockAccounts {
	m := &mockAccounts{accounts: make(map[string]*models.Account)}
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
	return m
}

func (m *mockAccounts) CreateAccount(_ context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, a := range m.accounts {
		if a.Email == account.Email {
			return storage.ErrAccountAlreadyExists
		}
	}
	m.accounts[account.ID] = account
	return nil
}

func (m *mockAccounts) GetAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, a := range m.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, storage.ErrAccountNotFound
}

func (m *mockAccounts) GetAccountByID(_ context.Context, accountID string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.accounts[accountID]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	return a, nil
}

func (m *mockAccounts) ListAccounts(_ context.Context) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	result := make([]*models.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		result = append(result, a)
	}
	return result, nil
}

func (m *mockAccounts) SetSubscriptionEnd(_ context.Context, accountID string, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return storage.ErrAccountNotFound
	}
	a.SubscriptionEnd = &end
	return nil
}

func (m *mockAccounts) SetBlacklisted(_ context.Context, accountID string, blacklisted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return storage.ErrAccountNotFound
	}
	a.Blacklisted = blacklisted
	return nil
}

func (m *mockAccounts) DeleteAccount(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[accountID]; !ok {
		return storage.ErrAccountNotFound
	}
	delete(m.accounts, accountID)
	return nil
}

func (m *mockAccounts) UpdateLastLogin(_ context.Context, accountID string, lastLogin time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return storage.ErrAccountNotFound
	}
	a.LastLogin = &lastLogin
	return nil
}

// mockSnapshots is an in-memory SnapshotStorage
type mockSnapshots struct {
	mu        sync.Mutex
	snapshots map[string]json.RawMessage
	err       error
}

func newMockSnapshots() *mockSnapshots {
	return &mockSnapshots{snapshots: make(map[string]json.RawMessage)}
}

func (m *mockSnapshots) SaveSnapshot(_ context.Context, accountID string, state json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.snapshots[accountID] = state
	return nil
}

func (m *mockSnapshots) GetSnapshot(_ context.Context, accountID string) (*models.StateSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	state, ok := m.snapshots[accountID]
	if !ok {
		return nil, storage.ErrSnapshotNotFound
	}
	return &models.StateSnapshot{AccountID: accountID, State: state, UpdatedAt: time.Now()}, nil
}

func (m *mockSnapshots) DeleteSnapshot(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.snapshots, accountID)
	return nil
}

// mockRegistry records SessionRegistry calls
type mockRegistry struct {
	mu           sync.Mutex
	counts       map[string]int
	forceClosed  []string
	notified     []string
	lastNotified *models.Account
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{counts: make(map[string]int)}
}

func (m *mockRegistry) SessionCount(accountID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[accountID]
}

func (m *mockRegistry) ForceCloseAccount(accountID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forceClosed = append(m.forceClosed, accountID)
	closed := m.counts[accountID]
	m.counts[accountID] = 0
	return closed
}

func (m *mockRegistry) NotifyAccountChanged(accountID string, account *models.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified = append(m.notified, accountID)
	m.lastNotified = account
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
