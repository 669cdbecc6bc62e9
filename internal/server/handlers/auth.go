package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/iudanet/tallysync/internal/models"
	"github.com/iudanet/tallysync/internal/server/auth"
	"github.com/iudanet/tallysync/internal/server/storage"
	"github.com/iudanet/tallysync/internal/validation"
	"github.com/iudanet/tallysync/pkg/api"
)

// AuthHandler обрабатывает регистрацию и вход
type AuthHandler struct {
	logger      *slog.Logger
	accounts    storage.AccountStorage
	verifier    *auth.Verifier
	trialPeriod time.Duration
}

// NewAuthHandler создает новый handler для авторизации.
// trialPeriod — пробное окно подписки, выдаваемое при регистрации.
func NewAuthHandler(logger *slog.Logger, accounts storage.AccountStorage, verifier *auth.Verifier, trialPeriod time.Duration) *AuthHandler {
	return &AuthHandler{
		logger:      logger,
		accounts:    accounts,
		verifier:    verifier,
		trialPeriod: trialPeriod,
	}
}

// Register обрабатывает POST /api/v1/auth/register
// Регистрация нового аккаунта
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode register request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Валидация входных данных
	if err := validation.ValidateEmail(req.Email); err != nil {
		h.logger.WarnContext(ctx, "invalid email", slog.String("email", req.Email), slog.Any("error", err))
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateAccountClass(req.AccountClass); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	accountClass := req.AccountClass
	if accountClass == "" {
		accountClass = models.ClassIndividual
	}

	now := time.Now()
	trialEnd := now.Add(h.trialPeriod)

	account := &models.Account{
		ID:              uuid.New().String(),
		Email:           req.Email,
		PasswordHash:    string(passwordHash),
		CompanyName:     req.CompanyName,
		Mobile:          req.Mobile,
		Role:            models.RoleStandard,
		AccountClass:    accountClass,
		CreatedAt:       now,
		SubscriptionEnd: &trialEnd,
	}

	if err := h.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, storage.ErrAccountAlreadyExists) {
			h.logger.WarnContext(ctx, "account already exists", slog.String("email", req.Email))
			sendError(h.logger, w, "email already taken", http.StatusConflict)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create account", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	token, err := h.verifier.GenerateToken(account.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate token", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "account registered",
		slog.String("email", req.Email),
		slog.String("account_id", account.ID),
		slog.String("account_class", accountClass))

	sendJSON(h.logger, w, api.AuthResponse{
		Token:     token,
		ExpiresAt: now.Add(h.verifier.TokenTTL()).Unix(),
		Account:   account.Public(),
	}, http.StatusCreated)
}

// Login обрабатывает POST /api/v1/auth/login
// Аутентификация аккаунта
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode login request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateEmail(req.Email); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	account, err := h.accounts.GetAccountByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			h.logger.WarnContext(ctx, "login failed: account not found", slog.String("email", req.Email))
			sendError(h.logger, w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get account", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		h.logger.WarnContext(ctx, "login failed: invalid password", slog.String("email", req.Email))
		sendError(h.logger, w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	now := time.Now()
	if err := h.accounts.UpdateLastLogin(ctx, account.ID, now); err != nil {
		// Не фатально для входа
		h.logger.WarnContext(ctx, "failed to update last login", slog.Any("error", err))
	}
	account.LastLogin = &now

	token, err := h.verifier.GenerateToken(account.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate token", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "login successful",
		slog.String("email", req.Email),
		slog.String("account_id", account.ID))

	sendJSON(h.logger, w, api.AuthResponse{
		Token:     token,
		ExpiresAt: now.Add(h.verifier.TokenTTL()).Unix(),
		Account:   account.Public(),
	}, http.StatusOK)
}
