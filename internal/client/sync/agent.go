// Package sync implements the client side of the replication protocol:
// one WebSocket connection per device, handshake, local mirror of the
// account state and echo-free propagation of local changes.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/iudanet/tallysync/internal/client/storage"
	"github.com/iudanet/tallysync/pkg/api"
)

// Ошибки агента синхронизации
var (
	// ErrNotAuthenticated — нет сохраненного токена, нужен login
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotSynced — локальное изменение до получения первого снапшота
	ErrNotSynced = errors.New("initial snapshot not received yet")

	// ErrConnectionLimit — сервер отклонил соединение по лимиту сессий.
	// Переподключаться бессмысленно, пока не закрыто другое устройство.
	ErrConnectionLimit = errors.New("connection limit reached")

	// ErrCredentialRejected — сервер отклонил токен; сохраненный
	// credential очищен, нужен повторный login
	ErrCredentialRejected = errors.New("credential rejected")
)

// EventKind тип события агента
type EventKind string

// События, которые агент отдает наружу (CLI, UI)
const (
	EventSnapshot       EventKind = "snapshot"
	EventUpdate         EventKind = "update"
	EventAccountChanged EventKind = "account_changed"
)

// Event — уведомление о примененном удаленном изменении
type Event struct {
	Kind    EventKind
	State   json.RawMessage // snapshot / update
	Account *api.Account    // account_changed
}

// StateApplier применяет удаленное состояние к локальному приложению.
// Вызывается синхронно из цикла чтения: пока applier не вернулся,
// применение не считается завершенным и SendUpdate подавляется.
type StateApplier func(state json.RawMessage)

// Agent держит одно соединение с сервером и гоняет состояние в обе
// стороны. Создается на каждый запуск watch; не переживает разрыв
// соединения — переподключение решает вызывающая сторона.
type Agent struct {
	logger *slog.Logger
	url    string
	auth   storage.AuthStorage
	states storage.StateStorage
	apply  StateApplier
	events chan Event

	writeMu sync.Mutex
	conn    *websocket.Conn

	// Подавление эха: true пока применяется удаленное состояние
	applyingRemote atomic.Bool
	// Первый снапшот получен, локальные изменения разрешены
	synced atomic.Bool
}

// NewAgent создает агент синхронизации.
// url — WebSocket endpoint сервера (ws://host/api/v1/ws).
// apply может быть nil, если приложению достаточно событий.
func NewAgent(logger *slog.Logger, url string, auth storage.AuthStorage, states storage.StateStorage, apply StateApplier) *Agent {
	return &Agent{
		logger: logger.With("module", "sync"),
		url:    url,
		auth:   auth,
		states: states,
		apply:  apply,
		events: make(chan Event, 16),
	}
}

// Events возвращает канал событий агента. Канал закрывается,
// когда Run завершается.
func (a *Agent) Events() <-chan Event {
	return a.events
}

// Run подключается к серверу, проходит handshake и крутит цикл чтения
// до разрыва соединения или отмены контекста. Возвращает причину
// завершения; ErrConnectionLimit и ErrCredentialRejected означают,
// что автоматическое переподключение не поможет.
func (a *Agent) Run(ctx context.Context) error {
	defer close(a.events)

	auth, err := a.auth.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return ErrNotAuthenticated
		}
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, a.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", a.url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	a.writeMu.Lock()
	a.conn = conn
	a.writeMu.Unlock()

	// Закрываем соединение при отмене контекста, чтобы разблокировать ReadJSON
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	// Handshake — строго первое сообщение
	if err := a.send(&api.Message{Type: api.MessageHandshake, Token: auth.Token}); err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}

	a.logger.Info("connected", slog.String("url", a.url))

	for {
		var msg api.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("connection lost: %w", err)
		}

		if err := a.handleMessage(ctx, &msg); err != nil {
			return err
		}
	}
}

// SendUpdate отправляет локальное изменение состояния на сервер.
// Вызов подавляется (без ошибки), если изменение вызвано применением
// удаленного состояния: иначе каждое устройство переотправляло бы
// чужие изменения по кругу.
func (a *Agent) SendUpdate(ctx context.Context, state json.RawMessage) error {
	if a.applyingRemote.Load() {
		a.logger.Debug("suppressing echo of remote state")
		return nil
	}
	if !a.synced.Load() {
		return ErrNotSynced
	}

	if err := a.states.SaveState(ctx, state); err != nil {
		return fmt.Errorf("failed to save local state: %w", err)
	}

	return a.send(&api.Message{Type: api.MessageUpdate, State: state})
}

// handleMessage обрабатывает одно входящее сообщение
func (a *Agent) handleMessage(ctx context.Context, msg *api.Message) error {
	switch msg.Type {
	case api.MessageSnapshot:
		a.applyRemote(ctx, msg.State)
		a.synced.Store(true)
		a.logger.Info("initial snapshot applied")
		a.emit(Event{Kind: EventSnapshot, State: msg.State})
		return nil

	case api.MessageUpdate:
		a.applyRemote(ctx, msg.State)
		a.emit(Event{Kind: EventUpdate, State: msg.State})
		return nil

	case api.MessageAccountChanged:
		a.logger.Info("account attributes changed")
		a.emit(Event{Kind: EventAccountChanged, Account: msg.Account})
		return nil

	case api.MessageError:
		return a.handleServerError(ctx, msg)

	default:
		// Неизвестные типы игнорируются ради совместимости
		return nil
	}
}

// applyRemote записывает удаленное состояние в локальное зеркало и
// синхронно прогоняет его через applier под флагом подавления эха
func (a *Agent) applyRemote(ctx context.Context, state json.RawMessage) {
	if err := a.states.SaveState(ctx, state); err != nil {
		a.logger.Error("failed to mirror state", slog.Any("error", err))
	}

	if a.apply == nil {
		return
	}

	a.applyingRemote.Store(true)
	defer a.applyingRemote.Store(false)
	a.apply(state)
}

// handleServerError переводит сообщение error в завершение Run.
// Отклоненный credential стирается: повторный login обязателен.
func (a *Agent) handleServerError(ctx context.Context, msg *api.Message) error {
	a.logger.Warn("server rejected session",
		slog.String("code", msg.Code),
		slog.String("message", msg.Message))

	switch msg.Code {
	case api.ErrCodeConnectionLimit:
		return fmt.Errorf("%w (limit %d)", ErrConnectionLimit, msg.Limit)

	case api.ErrCodeInvalidCredential, api.ErrCodeUnauthorized:
		if err := a.auth.DeleteAuth(ctx); err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
			a.logger.Error("failed to clear credentials", slog.Any("error", err))
		}
		return fmt.Errorf("%w: %s", ErrCredentialRejected, msg.Message)

	default:
		return fmt.Errorf("server error %s: %s", msg.Code, msg.Message)
	}
}

// send пишет сообщение в соединение; writeMu защищает от
// конкурентных записей SendUpdate из разных горутин
func (a *Agent) send(msg *api.Message) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if a.conn == nil {
		return errors.New("not connected")
	}
	if err := a.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// emit отдает событие без блокировки: медленный потребитель
// не должен останавливать цикл чтения
func (a *Agent) emit(ev Event) {
	select {
	case a.events <- ev:
	default:
		a.logger.Warn("event dropped, consumer too slow", slog.String("kind", string(ev.Kind)))
	}
}
