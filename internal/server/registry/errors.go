package registry

import (
	"errors"
	"fmt"
)

// Ошибки допуска и обработки update. Все они фатальны для соединения:
// транспортный слой отправляет клиенту сообщение error и закрывает
// соединение.
var (
	// ErrUnauthorized — аккаунт в чёрном списке
	ErrUnauthorized = errors.New("account is blacklisted")

	// ErrUpstreamUnavailable — directory или snapshot store недоступны.
	// Фатально только для затронутого аккаунта; клиент может
	// переподключиться позже с backoff.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNotAdmitted — update до успешного handshake
	ErrNotAdmitted = errors.New("session not admitted")
)

// LimitExceededError — превышен лимит одновременных сессий класса
// аккаунта. Жёсткий отказ на этапе допуска, не очередь: клиент не
// должен повторять попытку без действий пользователя.
type LimitExceededError struct {
	Limit int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("connection limit reached (%d max)", e.Limit)
}
