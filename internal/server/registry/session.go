package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/iudanet/tallysync/pkg/api"
)

// sendQueueSize размер исходящей очереди сессии. Переполнение очереди
// означает мёртвого или безнадёжно медленного получателя — такая сессия
// закрывается, не задерживая остальных.
const sendQueueSize = 32

// Session represents one live device connection. It is bound to exactly
// one account at handshake time and stays anonymous (accountID empty)
// until then. The registry owns session-set membership; the transport
// layer owns the actual connection and consumes Outbound.
type Session struct {
	id        string
	send      chan *api.Message
	done      chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	accountID string
}

// NewSession создает новую анонимную сессию
func NewSession() *Session {
	return &Session{
		id:   uuid.New().String(),
		send: make(chan *api.Message, sendQueueSize),
		done: make(chan struct{}),
	}
}

// ID returns the unique session id
func (s *Session) ID() string {
	return s.id
}

// AccountID returns the bound account id, empty until a successful handshake
func (s *Session) AccountID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountID
}

// Admitted reports whether the session passed the handshake
func (s *Session) Admitted() bool {
	return s.AccountID() != ""
}

func (s *Session) bind(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accountID = accountID
}

// Outbound returns the queue of messages to deliver to the device.
// The transport write pump is the only consumer.
func (s *Session) Outbound() <-chan *api.Message {
	return s.send
}

// Done is closed when the session is terminated
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close terminates the session. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Send ставит сообщение в исходящую очередь, не блокируясь.
// false — сессия закрыта или очередь переполнена; для получателя
// broadcast это эквивалентно разрыву соединения.
func (s *Session) Send(msg *api.Message) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}
