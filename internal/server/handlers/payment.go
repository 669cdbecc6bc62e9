package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/tallysync/internal/server/storage"
	"github.com/iudanet/tallysync/pkg/api"
)

// PaymentHandler принимает подтверждения оплаты от внешнего платежного
// сервиса. Сама интеграция с провайдером живет вне этого сервиса; сюда
// приходит только completion callback с id аккаунта.
type PaymentHandler struct {
	logger   *slog.Logger
	accounts storage.AccountStorage
	registry SessionRegistry
}

// NewPaymentHandler создает новый handler платежного callback
func NewPaymentHandler(logger *slog.Logger, accounts storage.AccountStorage, registry SessionRegistry) *PaymentHandler {
	return &PaymentHandler{
		logger:   logger,
		accounts: accounts,
		registry: registry,
	}
}

// Callback обрабатывает POST /api/v1/payment/callback
// Подтвержденная оплата продлевает подписку на месяц от
// max(now, текущий конец) и рассылает account_changed живым сессиям.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.PaymentCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode payment callback", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Status != "completed" {
		h.logger.InfoContext(ctx, "ignoring payment callback",
			slog.String("status", req.Status),
			slog.String("account_id", req.AccountID))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	account, err := h.accounts.GetAccountByID(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			sendError(h.logger, w, "account not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get account", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	start := now
	if account.SubscriptionEnd != nil && account.SubscriptionEnd.After(now) {
		start = *account.SubscriptionEnd
	}
	end := start.Add(subscriptionMonth)

	if err := h.accounts.SetSubscriptionEnd(ctx, account.ID, end); err != nil {
		h.logger.ErrorContext(ctx, "failed to extend subscription", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	account.SubscriptionEnd = &end
	h.registry.NotifyAccountChanged(account.ID, account)

	h.logger.InfoContext(ctx, "subscription extended via payment",
		slog.String("account_id", account.ID),
		slog.String("reference", req.Reference),
		slog.Time("subscription_end", end))

	w.WriteHeader(http.StatusNoContent)
}
