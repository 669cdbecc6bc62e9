package api

// RegisterRequest представляет запрос на регистрацию нового аккаунта
type RegisterRequest struct {
	Email        string `json:"email"`                   // email аккаунта (уникальный)
	Password     string `json:"password"`                // пароль в открытом виде (только по TLS)
	CompanyName  string `json:"company_name,omitempty"`  // название компании
	AccountClass string `json:"account_class,omitempty"` // individual или team (по умолчанию individual)
	Mobile       string `json:"mobile,omitempty"`        // контактный телефон
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse представляет ответ на успешную регистрацию или вход
type AuthResponse struct {
	Token     string  `json:"token"`      // JWT access token для handshake
	ExpiresAt int64   `json:"expires_at"` // unix seconds, момент истечения токена
	Account   Account `json:"account"`    // публичные данные аккаунта
}

// Account представляет публичное представление аккаунта
// (хеш пароля никогда не покидает сервер)
type Account struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	CompanyName     string `json:"company_name,omitempty"`
	Mobile          string `json:"mobile,omitempty"`
	Role            string `json:"role"`
	AccountClass    string `json:"account_class"`
	CreatedAt       int64  `json:"created_at"`                 // unix millis
	LastLogin       int64  `json:"last_login,omitempty"`       // unix millis
	SubscriptionEnd int64  `json:"subscription_end,omitempty"` // unix millis
	Blacklisted     bool   `json:"blacklisted,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
