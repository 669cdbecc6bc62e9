package models

import (
	"time"

	"github.com/iudanet/tallysync/pkg/api"
)

// Роли аккаунта
const (
	RoleStandard = "standard" // обычный пользователь
	RoleAdmin    = "admin"    // администратор, не ограничен лимитом сессий
)

// Классы аккаунта, определяют лимит одновременных сессий
const (
	ClassIndividual = "individual" // лимит 1 устройство
	ClassTeam       = "team"       // лимит 5 устройств
)

// Лимиты одновременных сессий по классам аккаунта
const (
	SessionLimitIndividual = 1
	SessionLimitTeam       = 5
)

// Account представляет аккаунт в системе
type Account struct {
	CreatedAt       time.Time  `json:"created_at"`
	LastLogin       *time.Time `json:"last_login,omitempty"`
	SubscriptionEnd *time.Time `json:"subscription_end,omitempty"`
	ID              string     `json:"id"`            // UUID аккаунта
	Email           string     `json:"email"`         // уникальный email
	PasswordHash    string     `json:"-"`             // bcrypt хеш, не сериализуется
	CompanyName     string     `json:"company_name"`  // название компании
	Mobile          string     `json:"mobile"`        // контактный телефон
	Role            string     `json:"role"`          // standard | admin
	AccountClass    string     `json:"account_class"` // individual | team
	Blacklisted     bool       `json:"blacklisted"`   // чёрный список
}

// Authorized reports whether the account may hold live sessions.
// Blacklist is the only thing that revokes authorization; subscription
// expiry is surfaced to the client but does not cut the connection.
func (a *Account) Authorized() bool {
	return !a.Blacklisted
}

// SessionLimit returns the admission limit for the account class.
// Admin role bypasses the limit entirely (checked by the registry).
func (a *Account) SessionLimit() int {
	if a.AccountClass == ClassTeam {
		return SessionLimitTeam
	}
	return SessionLimitIndividual
}

// Public converts the account to its wire representation,
// stripping the password hash.
func (a *Account) Public() api.Account {
	pub := api.Account{
		ID:           a.ID,
		Email:        a.Email,
		CompanyName:  a.CompanyName,
		Mobile:       a.Mobile,
		Role:         a.Role,
		AccountClass: a.AccountClass,
		CreatedAt:    a.CreatedAt.UnixMilli(),
		Blacklisted:  a.Blacklisted,
	}
	if a.LastLogin != nil {
		pub.LastLogin = a.LastLogin.UnixMilli()
	}
	if a.SubscriptionEnd != nil {
		pub.SubscriptionEnd = a.SubscriptionEnd.UnixMilli()
	}
	return pub
}
