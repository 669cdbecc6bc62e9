package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iudanet/tallysync/internal/models"
	"github.com/iudanet/tallysync/internal/server/auth"
	"github.com/iudanet/tallysync/internal/server/storage"
	"github.com/iudanet/tallysync/pkg/api"
)

// CredentialVerifier resolves a bearer credential to an account identity
type CredentialVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AccountDirectory — авторитетный справочник аккаунтов
type AccountDirectory interface {
	GetAccountByID(ctx context.Context, accountID string) (*models.Account, error)
}

// Registry tracks live device sessions per account, enforces admission
// control and fans updates out to the other sessions of the same
// account. It has no ambient global state: construct one per server
// (or per test) and pass it by handle.
type Registry struct {
	logger    *slog.Logger
	verifier  CredentialVerifier
	directory AccountDirectory
	snapshots storage.SnapshotStorage

	mu      sync.Mutex
	entries map[string]*accountEntry
}

// accountEntry — все живые сессии одного аккаунта. entry.mu
// сериализует изменение состава сессий и последовательность
// "persist snapshot + broadcast": два конкурентных update одного
// аккаунта не могут перемешаться, другие аккаунты не блокируются.
type accountEntry struct {
	mu       sync.Mutex
	sessions []*Session // в порядке регистрации
	gone     bool       // entry удален из карты, не использовать
}

// New создает новый реестр сессий
func New(logger *slog.Logger, verifier CredentialVerifier, directory AccountDirectory, snapshots storage.SnapshotStorage) *Registry {
	return &Registry{
		logger:    logger.With("module", "registry"),
		verifier:  verifier,
		directory: directory,
		snapshots: snapshots,
		entries:   make(map[string]*accountEntry),
	}
}

// Admit performs the handshake admission sequence: verify the
// credential, look the account up, reject blacklisted accounts, enforce
// the class session limit (admin role exempt), register the session and
// queue the current snapshot (null state when none exists yet).
//
// Возвращаемые ошибки: auth.ErrInvalidCredential, ErrUnauthorized,
// *LimitExceededError, ErrUpstreamUnavailable. Любая из них означает
// "отправить error и закрыть соединение".
func (r *Registry) Admit(ctx context.Context, sess *Session, token string) error {
	claims, err := r.verifier.Verify(token)
	if err != nil {
		return err
	}

	account, err := r.directory.GetAccountByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			// Токен валиден, но аккаунт удален
			return auth.ErrInvalidCredential
		}
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	if !account.Authorized() {
		return ErrUnauthorized
	}

	for {
		entry := r.entry(account.ID)
		entry.mu.Lock()
		if entry.gone {
			entry.mu.Unlock()
			continue // entry успели удалить, берем новый
		}

		limit := account.SessionLimit()
		if account.Role != models.RoleAdmin && len(entry.sessions) >= limit {
			entry.mu.Unlock()
			return &LimitExceededError{Limit: limit}
		}

		// Снапшот читается и отправляется под entry.mu, чтобы update,
		// пришедший сразу после регистрации, не обогнал снапшот.
		var state json.RawMessage
		snapshot, err := r.snapshots.GetSnapshot(ctx, account.ID)
		switch {
		case err == nil:
			state = snapshot.State
		case errors.Is(err, storage.ErrSnapshotNotFound):
			// Снапшота еще нет — клиент получит пустой snapshot
		default:
			empty := len(entry.sessions) == 0
			entry.mu.Unlock()
			if empty {
				r.reclaim(account.ID, entry)
			}
			return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
		}

		sess.bind(account.ID)
		entry.sessions = append(entry.sessions, sess)
		sess.Send(&api.Message{Type: api.MessageSnapshot, State: state})
		count := len(entry.sessions)
		entry.mu.Unlock()

		r.logger.Info("session admitted",
			"session_id", sess.ID(),
			"account_id", account.ID,
			"account_class", account.AccountClass,
			"live_sessions", count)
		return nil
	}
}

// Update persists the new state as the account snapshot
// (last-write-wins) and forwards the identical update to every other
// admitted session of the account in registration order, skipping the
// sender. Delivery per recipient is fire-and-forget: a dead or slow
// recipient is torn down without affecting the rest, and the sender's
// update succeeds once persisted.
func (r *Registry) Update(ctx context.Context, sess *Session, state json.RawMessage) error {
	accountID := sess.AccountID()
	if accountID == "" {
		return ErrNotAdmitted
	}

	entry := r.lookup(accountID)
	if entry == nil {
		return ErrNotAdmitted
	}

	var failed []*Session

	entry.mu.Lock()
	if err := r.snapshots.SaveSnapshot(ctx, accountID, state); err != nil {
		entry.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	msg := &api.Message{Type: api.MessageUpdate, State: state}
	for _, peer := range entry.sessions {
		if peer == sess {
			continue
		}
		if !peer.Send(msg) {
			failed = append(failed, peer)
		}
	}
	entry.mu.Unlock()

	// Неудачная доставка эквивалентна отключению получателя
	for _, peer := range failed {
		r.logger.Warn("dropping unresponsive session",
			"session_id", peer.ID(), "account_id", accountID)
		r.Remove(peer)
	}

	return nil
}

// Remove tears the session down: unregisters it and closes it. Called
// on client disconnect, transport error or forced close. Safe to call
// for anonymous and already-removed sessions.
func (r *Registry) Remove(sess *Session) {
	defer sess.Close()

	accountID := sess.AccountID()
	if accountID == "" {
		return
	}

	entry := r.lookup(accountID)
	if entry == nil {
		return
	}

	entry.mu.Lock()
	for i, s := range entry.sessions {
		if s == sess {
			entry.sessions = append(entry.sessions[:i], entry.sessions[i+1:]...)
			break
		}
	}
	empty := len(entry.sessions) == 0
	entry.mu.Unlock()

	if empty {
		r.reclaim(accountID, entry)
	}
}

// ForceCloseAccount proactively closes every live session of the
// account. Used by administrative actions: blacklist toggle and
// account deletion. Returns the number of sessions closed.
func (r *Registry) ForceCloseAccount(accountID string) int {
	entry := r.lookup(accountID)
	if entry == nil {
		return 0
	}

	entry.mu.Lock()
	closed := entry.sessions
	entry.sessions = nil
	entry.mu.Unlock()

	r.reclaim(accountID, entry)

	for _, sess := range closed {
		sess.Close()
	}

	if len(closed) > 0 {
		r.logger.Info("force closed account sessions",
			"account_id", accountID, "count", len(closed))
	}
	return len(closed)
}

// SessionCount returns the number of live sessions for the account
func (r *Registry) SessionCount(accountID string) int {
	entry := r.lookup(accountID)
	if entry == nil {
		return 0
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return len(entry.sessions)
}

// NotifyAccountChanged pushes an account_changed message to every live
// session of the account. Triggered by administrative mutations and the
// payment completion callback, never by a client session.
func (r *Registry) NotifyAccountChanged(accountID string, account *models.Account) {
	entry := r.lookup(accountID)
	if entry == nil {
		return
	}

	pub := account.Public()
	msg := &api.Message{Type: api.MessageAccountChanged, Account: &pub}

	var failed []*Session

	entry.mu.Lock()
	for _, sess := range entry.sessions {
		if !sess.Send(msg) {
			failed = append(failed, sess)
		}
	}
	entry.mu.Unlock()

	for _, sess := range failed {
		r.Remove(sess)
	}
}

// entry возвращает (создавая при необходимости) entry аккаунта
func (r *Registry) entry(accountID string) *accountEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[accountID]
	if !ok {
		entry = &accountEntry{}
		r.entries[accountID] = entry
	}
	return entry
}

// lookup возвращает entry аккаунта или nil
func (r *Registry) lookup(accountID string) *accountEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[accountID]
}

// reclaim удаляет пустой entry из карты
func (r *Registry) reclaim(accountID string, entry *accountEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.mu.Lock()
	if len(entry.sessions) == 0 {
		entry.gone = true
		if r.entries[accountID] == entry {
			delete(r.entries, accountID)
		}
	}
	entry.mu.Unlock()
}
