package api

// AdminAccount представляет аккаунт в выдаче административного списка,
// дополненный числом живых сессий из реестра
type AdminAccount struct {
	Account
	SessionCount int `json:"session_count"`
}

// SubscriptionRequest представляет административное изменение подписки.
// Action: "1m".."12m" — продлить на N месяцев от max(now, текущий конец),
// "1min" — тестовое продление на минуту, "cut" — обрезать сейчас.
type SubscriptionRequest struct {
	AccountID string `json:"account_id"`
	Action    string `json:"action"`
}

// SubscriptionResponse возвращает новый конец подписки
type SubscriptionResponse struct {
	SubscriptionEnd int64 `json:"subscription_end"` // unix millis
}

// BlacklistRequest переключает blacklist-флаг аккаунта
type BlacklistRequest struct {
	AccountID string `json:"account_id"`
}

// BlacklistResponse возвращает новое состояние флага
type BlacklistResponse struct {
	Blacklisted bool `json:"blacklisted"`
}

// DeleteAccountRequest удаляет аккаунт вместе со снапшотом
type DeleteAccountRequest struct {
	AccountID string `json:"account_id"`
}

// PaymentCallbackRequest — подтверждение оплаты от внешнего платёжного
// сервиса. Единственное входящее событие, которое инициирует не клиент.
type PaymentCallbackRequest struct {
	AccountID string `json:"account_id"`
	Status    string `json:"status"` // обрабатывается только "completed"
	Reference string `json:"reference,omitempty"`
}
