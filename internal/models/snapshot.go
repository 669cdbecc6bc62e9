package models

import (
	"encoding/json"
	"time"
)

// StateSnapshot представляет полное состояние приложения одного аккаунта
// (счётная таблица, метаданные, история). Для слоя репликации это
// непрозрачный JSON blob: он целиком заменяется каждым update и никогда
// не мерджится по полям. Ровно один снапшот на аккаунт.
type StateSnapshot struct {
	UpdatedAt time.Time       `json:"updated_at"`
	AccountID string          `json:"account_id"`
	State     json.RawMessage `json:"state"`
}
