package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iudanet/tallysync/internal/models"
	"github.com/iudanet/tallysync/internal/server/storage"
	"github.com/iudanet/tallysync/pkg/api"
)

const subscriptionMonth = 30 * 24 * time.Hour

// SessionRegistry — часть реестра сессий, нужная административным
// обработчикам и платежному callback
type SessionRegistry interface {
	SessionCount(accountID string) int
	ForceCloseAccount(accountID string) int
	NotifyAccountChanged(accountID string, account *models.Account)
}

// AdminHandler обрабатывает административные запросы.
// Все операции требуют роль admin (проверяется по справочнику,
// а не по токену, чтобы смена роли действовала сразу).
type AdminHandler struct {
	logger    *slog.Logger
	accounts  storage.AccountStorage
	snapshots storage.SnapshotStorage
	registry  SessionRegistry
}

// NewAdminHandler создает новый административный handler
func NewAdminHandler(logger *slog.Logger, accounts storage.AccountStorage, snapshots storage.SnapshotStorage, registry SessionRegistry) *AdminHandler {
	return &AdminHandler{
		logger:    logger,
		accounts:  accounts,
		snapshots: snapshots,
		registry:  registry,
	}
}

// ListAccounts обрабатывает GET /api/v1/admin/accounts
// Список всех не-административных аккаунтов с числом живых сессий
func (h *AdminHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.requireAdmin(w, r) {
		return
	}

	accounts, err := h.accounts.ListAccounts(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list accounts", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	result := make([]api.AdminAccount, 0, len(accounts))
	for _, account := range accounts {
		if account.Role == models.RoleAdmin {
			continue
		}
		result = append(result, api.AdminAccount{
			Account:      account.Public(),
			SessionCount: h.registry.SessionCount(account.ID),
		})
	}

	sendJSON(h.logger, w, result, http.StatusOK)
}

// UpdateSubscription обрабатывает POST /api/v1/admin/subscription
// Изменение окна подписки; живые сессии аккаунта получают account_changed
func (h *AdminHandler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.requireAdmin(w, r) {
		return
	}

	var req api.SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	account, ok := h.fetchAccount(w, r, req.AccountID)
	if !ok {
		return
	}

	end, err := nextSubscriptionEnd(account, req.Action)
	if err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.accounts.SetSubscriptionEnd(ctx, account.ID, end); err != nil {
		h.logger.ErrorContext(ctx, "failed to set subscription end", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	// Живые сессии должны сразу увидеть новый срок
	account.SubscriptionEnd = &end
	h.registry.NotifyAccountChanged(account.ID, account)

	h.logger.InfoContext(ctx, "subscription updated",
		slog.String("account_id", account.ID),
		slog.String("action", req.Action),
		slog.Time("subscription_end", end))

	sendJSON(h.logger, w, api.SubscriptionResponse{SubscriptionEnd: end.UnixMilli()}, http.StatusOK)
}

// ToggleBlacklist обрабатывает POST /api/v1/admin/blacklist
// Переключение blacklist-флага; включение немедленно закрывает все
// живые сессии аккаунта
func (h *AdminHandler) ToggleBlacklist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.requireAdmin(w, r) {
		return
	}

	var req api.BlacklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	account, ok := h.fetchAccount(w, r, req.AccountID)
	if !ok {
		return
	}

	blacklisted := !account.Blacklisted
	if err := h.accounts.SetBlacklisted(ctx, account.ID, blacklisted); err != nil {
		h.logger.ErrorContext(ctx, "failed to set blacklist flag", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if blacklisted {
		closed := h.registry.ForceCloseAccount(account.ID)
		h.logger.InfoContext(ctx, "account blacklisted",
			slog.String("account_id", account.ID),
			slog.Int("sessions_closed", closed))
	}

	sendJSON(h.logger, w, api.BlacklistResponse{Blacklisted: blacklisted}, http.StatusOK)
}

// DeleteAccount обрабатывает POST /api/v1/admin/delete
// Удаление аккаунта вместе со снапшотом и всеми живыми сессиями
func (h *AdminHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.requireAdmin(w, r) {
		return
	}

	var req api.DeleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	account, ok := h.fetchAccount(w, r, req.AccountID)
	if !ok {
		return
	}

	h.registry.ForceCloseAccount(account.ID)

	if err := h.snapshots.DeleteSnapshot(ctx, account.ID); err != nil {
		h.logger.ErrorContext(ctx, "failed to delete snapshot", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.accounts.DeleteAccount(ctx, account.ID); err != nil && !errors.Is(err, storage.ErrAccountNotFound) {
		h.logger.ErrorContext(ctx, "failed to delete account", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "account deleted", slog.String("account_id", account.ID))

	w.WriteHeader(http.StatusNoContent)
}

// requireAdmin проверяет, что запрос сделан администратором
func (h *AdminHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	ctx := r.Context()

	accountID, ok := GetAccountID(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return false
	}

	account, err := h.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		h.logger.WarnContext(ctx, "admin check failed", slog.String("account_id", accountID), slog.Any("error", err))
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return false
	}

	if account.Role != models.RoleAdmin {
		sendError(h.logger, w, "access denied", http.StatusForbidden)
		return false
	}

	return true
}

// fetchAccount загружает целевой аккаунт запроса
func (h *AdminHandler) fetchAccount(w http.ResponseWriter, r *http.Request, accountID string) (*models.Account, bool) {
	if accountID == "" {
		sendError(h.logger, w, "account_id is required", http.StatusBadRequest)
		return nil, false
	}

	account, err := h.accounts.GetAccountByID(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			sendError(h.logger, w, "account not found", http.StatusNotFound)
			return nil, false
		}
		h.logger.ErrorContext(r.Context(), "failed to get account", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return nil, false
	}

	return account, true
}

// nextSubscriptionEnd вычисляет новый конец подписки.
// "Nm" продлевает на N месяцев от max(now, текущий конец), "1min" —
// тестовое продление на минуту, "cut" обрезает подписку сейчас.
func nextSubscriptionEnd(account *models.Account, action string) (time.Time, error) {
	now := time.Now()

	switch {
	case action == "1min":
		return now.Add(time.Minute), nil
	case action == "cut":
		return now, nil
	case strings.HasSuffix(action, "m"):
		months, err := strconv.Atoi(strings.TrimSuffix(action, "m"))
		if err != nil || months < 1 || months > 12 {
			return time.Time{}, fmt.Errorf("invalid subscription action: %s", action)
		}
		start := now
		if account.SubscriptionEnd != nil && account.SubscriptionEnd.After(now) {
			start = *account.SubscriptionEnd
		}
		return start.Add(time.Duration(months) * subscriptionMonth), nil
	default:
		return time.Time{}, fmt.Errorf("invalid subscription action: %s", action)
	}
}
