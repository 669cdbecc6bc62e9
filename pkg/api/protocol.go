package api

import "encoding/json"

// Типы сообщений репликационного протокола.
// Каждое сообщение — JSON envelope с полем type, остальные поля
// заполняются в зависимости от типа.
const (
	// MessageHandshake — клиент → сервер, первое сообщение соединения,
	// ровно один раз. Несёт bearer credential (JWT).
	MessageHandshake = "handshake"

	// MessageSnapshot — сервер → клиент сразу после успешного допуска.
	// State равен null, если снапшота для аккаунта ещё нет.
	MessageSnapshot = "snapshot"

	// MessageUpdate — двунаправленное. Клиент → сервер: "моё локальное
	// состояние изменилось, замени снапшот и сообщи другим устройствам".
	// Сервер → клиент: "другое устройство изменило состояние".
	MessageUpdate = "update"

	// MessageAccountChanged — сервер → клиент при административном
	// изменении атрибутов аккаунта (например продление подписки).
	MessageAccountChanged = "account_changed"

	// MessageError — сервер → клиент, всегда сразу за ним следует
	// закрытие соединения сервером.
	MessageError = "error"
)

// Коды ошибок протокола (поле code сообщения error).
const (
	// ErrCodeInvalidCredential — битый, просроченный или отсутствующий токен.
	ErrCodeInvalidCredential = "invalid_credential"

	// ErrCodeUnauthorized — аккаунт в чёрном списке.
	ErrCodeUnauthorized = "unauthorized"

	// ErrCodeConnectionLimit — превышен лимит одновременных сессий.
	ErrCodeConnectionLimit = "connection_limit"

	// ErrCodeUpstreamUnavailable — directory или store недоступны.
	ErrCodeUpstreamUnavailable = "upstream_unavailable"
)

// Message представляет один envelope репликационного протокола
type Message struct {
	Type    string          `json:"type"`
	Token   string          `json:"token,omitempty"`   // handshake
	State   json.RawMessage `json:"state,omitempty"`   // snapshot / update, opaque blob
	Account *Account        `json:"account,omitempty"` // account_changed
	Code    string          `json:"code,omitempty"`    // error
	Message string          `json:"message,omitempty"` // error
	Limit   int             `json:"limit,omitempty"`   // error (connection_limit)
}
