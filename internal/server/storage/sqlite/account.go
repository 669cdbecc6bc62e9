package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/tallysync/internal/models"
	"github.com/iudanet/tallysync/internal/server/storage"
)

// CreateAccount creates a new account in the storage
func (s *Storage) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, company_name, mobile,
		                      role, account_class, blacklisted, created_at, last_login, subscription_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.CompanyName,
		account.Mobile,
		account.Role,
		account.AccountClass,
		boolToInt(account.Blacklisted),
		account.CreatedAt,
		account.LastLogin,
		account.SubscriptionEnd,
	)

	if err != nil {
		// Проверяем на duplicate email
		if strings.Contains(err.Error(), "UNIQUE constraint failed: accounts.email") {
			return storage.ErrAccountAlreadyExists
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}

	return nil
}

// GetAccountByEmail retrieves account by email
func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := selectAccount + ` WHERE email = ?`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, email))
}

// GetAccountByID retrieves account by ID
func (s *Storage) GetAccountByID(ctx context.Context, accountID string) (*models.Account, error) {
	query := selectAccount + ` WHERE id = ?`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, accountID))
}

// ListAccounts retrieves all accounts ordered by creation time
func (s *Storage) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	query := selectAccount + ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

// SetSubscriptionEnd updates the subscription window
func (s *Storage) SetSubscriptionEnd(ctx context.Context, accountID string, end time.Time) error {
	return s.execAccountUpdate(ctx,
		`UPDATE accounts SET subscription_end = ? WHERE id = ?`, end, accountID)
}

// SetBlacklisted updates the blacklist flag
func (s *Storage) SetBlacklisted(ctx context.Context, accountID string, blacklisted bool) error {
	return s.execAccountUpdate(ctx,
		`UPDATE accounts SET blacklisted = ? WHERE id = ?`, boolToInt(blacklisted), accountID)
}

// DeleteAccount deletes account by ID
func (s *Storage) DeleteAccount(ctx context.Context, accountID string) error {
	return s.execAccountUpdate(ctx,
		`DELETE FROM accounts WHERE id = ?`, accountID)
}

// UpdateLastLogin updates the last login timestamp
func (s *Storage) UpdateLastLogin(ctx context.Context, accountID string, lastLogin time.Time) error {
	return s.execAccountUpdate(ctx,
		`UPDATE accounts SET last_login = ? WHERE id = ?`, lastLogin, accountID)
}

const selectAccount = `
	SELECT id, email, password_hash, company_name, mobile,
	       role, account_class, blacklisted, created_at, last_login, subscription_end
	FROM accounts
`

// rowScanner покрывает *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// scanAccount сканирует одну строку, транслируя sql.ErrNoRows
// в storage.ErrAccountNotFound
func (s *Storage) scanAccount(row *sql.Row) (*models.Account, error) {
	account, err := scanAccountRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func scanAccountRow(row rowScanner) (*models.Account, error) {
	account := &models.Account{}
	var blacklisted int
	var lastLogin, subscriptionEnd sql.NullTime

	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.CompanyName,
		&account.Mobile,
		&account.Role,
		&account.AccountClass,
		&blacklisted,
		&account.CreatedAt,
		&lastLogin,
		&subscriptionEnd,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	account.Blacklisted = blacklisted != 0
	if lastLogin.Valid {
		account.LastLogin = &lastLogin.Time
	}
	if subscriptionEnd.Valid {
		account.SubscriptionEnd = &subscriptionEnd.Time
	}

	return account, nil
}

// execAccountUpdate выполняет UPDATE/DELETE и проверяет, что строка
// существовала
func (s *Storage) execAccountUpdate(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to exec account update: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrAccountNotFound
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
