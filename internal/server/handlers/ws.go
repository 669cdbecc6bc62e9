package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/tallysync/internal/server/auth"
	"github.com/iudanet/tallysync/internal/server/registry"
	"github.com/iudanet/tallysync/pkg/api"
)

const writeTimeout = 10 * time.Second

// WSHandler терминирует WebSocket-соединения репликационного протокола
// и связывает их с реестром сессий
type WSHandler struct {
	logger   *slog.Logger
	registry *registry.Registry
	upgrader websocket.Upgrader
}

// NewWSHandler создает новый WebSocket handler
func NewWSHandler(logger *slog.Logger, reg *registry.Registry) *WSHandler {
	return &WSHandler{
		logger:   logger,
		registry: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Handshake авторизует соединение сам, по bearer credential
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle обрабатывает GET /api/v1/ws
// Одно соединение — одна сессия. Первым сообщением клиент обязан
// прислать handshake; всё остальное до успешного допуска игнорируется.
func (h *WSHandler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	sess := registry.NewSession()
	go h.writePump(conn, sess)

	defer h.registry.Remove(sess)

	for {
		var msg api.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read failed", slog.String("session_id", sess.ID()), slog.Any("error", err))
			}
			return
		}

		switch msg.Type {
		case api.MessageHandshake:
			if sess.Admitted() {
				// Повторный handshake игнорируется
				continue
			}
			if err := h.registry.Admit(r.Context(), sess, msg.Token); err != nil {
				h.reject(sess, err)
				return
			}

		case api.MessageUpdate:
			if !sess.Admitted() {
				// Update до handshake молча отбрасывается
				continue
			}
			if err := h.registry.Update(r.Context(), sess, msg.State); err != nil {
				h.reject(sess, err)
				return
			}

		default:
			// Неизвестные типы игнорируются ради совместимости
		}
	}
}

// reject ставит в очередь сообщение error и закрывает сессию;
// write pump дольет очередь перед закрытием соединения
func (h *WSHandler) reject(sess *registry.Session, err error) {
	msg := errorMessage(err)
	sess.Send(msg)
	sess.Close()

	h.logger.Warn("session rejected",
		slog.String("session_id", sess.ID()),
		slog.String("code", msg.Code),
		slog.Any("error", err))
}

// errorMessage переводит ошибку реестра в сообщение протокола
func errorMessage(err error) *api.Message {
	var limitErr *registry.LimitExceededError

	switch {
	case errors.As(err, &limitErr):
		return &api.Message{
			Type:    api.MessageError,
			Code:    api.ErrCodeConnectionLimit,
			Message: limitErr.Error(),
			Limit:   limitErr.Limit,
		}
	case errors.Is(err, auth.ErrInvalidCredential):
		return &api.Message{
			Type:    api.MessageError,
			Code:    api.ErrCodeInvalidCredential,
			Message: "invalid credential",
		}
	case errors.Is(err, registry.ErrUnauthorized):
		return &api.Message{
			Type:    api.MessageError,
			Code:    api.ErrCodeUnauthorized,
			Message: "account is blacklisted",
		}
	default:
		return &api.Message{
			Type:    api.MessageError,
			Code:    api.ErrCodeUpstreamUnavailable,
			Message: "temporary failure, reconnect later",
		}
	}
}

// writePump — единственный писатель в соединение. Доставляет очередь
// сессии; при закрытии сессии доливает остаток очереди и закрывает
// соединение.
func (h *WSHandler) writePump(conn *websocket.Conn, sess *registry.Session) {
	defer conn.Close()

	for {
		select {
		case msg := <-sess.Outbound():
			if !h.write(conn, msg) {
				return
			}
		case <-sess.Done():
			// Доливаем остаток очереди (например, финальный error)
			for {
				select {
				case msg := <-sess.Outbound():
					if !h.write(conn, msg) {
						return
					}
				default:
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(writeTimeout))
					return
				}
			}
		}
	}
}

func (h *WSHandler) write(conn *websocket.Conn, msg *api.Message) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug("websocket write failed", slog.Any("error", err))
		return false
	}
	return true
}
