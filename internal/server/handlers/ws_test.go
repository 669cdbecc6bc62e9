package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tallysync/internal/models"
	"github.com/iudanet/tallysync/internal/server/auth"
	"github.com/iudanet/tallysync/internal/server/registry"
	"github.com/iudanet/tallysync/pkg/api"
)

type wsEnv struct {
	verifier  *auth.Verifier
	accounts  *mockAccounts
	snapshots *mockSnapshots
	registry  *registry.Registry
	server    *httptest.Server
}

func newWSEnv(t *testing.T, accounts ...*models.Account) *wsEnv {
	t.Helper()

	env := &wsEnv{
		verifier:  auth.NewVerifier([]byte("test-secret"), time.Hour),
		accounts:  newMockAccounts(accounts...),
		snapshots: newMockSnapshots(),
	}
	env.registry = registry.New(discardLogger(), env.verifier, env.accounts, env.snapshots)

	h := NewWSHandler(discardLogger(), env.registry)
	env.server = httptest.NewServer(http.HandlerFunc(h.Handle))
	t.Cleanup(env.server.Close)

	return env
}

// dial подключается и возвращает соединение
func (env *wsEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(env.server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// connect проходит handshake и читает первый ответ сервера
func (env *wsEnv) connect(t *testing.T, accountID string) (*websocket.Conn, *api.Message) {
	t.Helper()

	token, err := env.verifier.GenerateToken(accountID)
	require.NoError(t, err)

	conn := env.dial(t)
	require.NoError(t, conn.WriteJSON(&api.Message{Type: api.MessageHandshake, Token: token}))

	return conn, readMessage(t, conn)
}

func readMessage(t *testing.T, conn *websocket.Conn) *api.Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg api.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return &msg
}

func assertNoMessage(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	var msg api.Message
	err := conn.ReadJSON(&msg)
	require.Error(t, err, "unexpected message: %+v", msg)
}

func teamWSAccount() *models.Account {
	return &models.Account{
		ID:           "acc-1",
		Email:        "user@example.com",
		Role:         models.RoleStandard,
		AccountClass: models.ClassTeam,
		CreatedAt:    time.Now(),
	}
}

func TestWS_HandshakeDeliversEmptySnapshot(t *testing.T) {
	env := newWSEnv(t, teamWSAccount())

	_, msg := env.connect(t, "acc-1")
	assert.Equal(t, api.MessageSnapshot, msg.Type)
	assert.Empty(t, msg.State)
}

func TestWS_HandshakeDeliversExistingSnapshot(t *testing.T) {
	env := newWSEnv(t, teamWSAccount())
	env.snapshots.snapshots["acc-1"] = json.RawMessage(`{"pagesTotal":42}`)

	_, msg := env.connect(t, "acc-1")
	assert.Equal(t, api.MessageSnapshot, msg.Type)
	assert.JSONEq(t, `{"pagesTotal":42}`, string(msg.State))
}

func TestWS_UpdateFansOutToOtherDevices(t *testing.T) {
	env := newWSEnv(t, teamWSAccount())

	sender, _ := env.connect(t, "acc-1")
	receiver, _ := env.connect(t, "acc-1")

	require.NoError(t, sender.WriteJSON(&api.Message{
		Type:  api.MessageUpdate,
		State: json.RawMessage(`{"pagesTotal":42}`),
	}))

	// Другое устройство получает update
	msg := readMessage(t, receiver)
	assert.Equal(t, api.MessageUpdate, msg.Type)
	assert.JSONEq(t, `{"pagesTotal":42}`, string(msg.State))

	// Отправитель своего update не получает
	assertNoMessage(t, sender)

	// Снапшот заменён
	assert.JSONEq(t, `{"pagesTotal":42}`, string(env.snapshots.snapshots["acc-1"]))
}

func TestWS_InvalidToken(t *testing.T) {
	env := newWSEnv(t, teamWSAccount())

	conn := env.dial(t)
	require.NoError(t, conn.WriteJSON(&api.Message{Type: api.MessageHandshake, Token: "garbage"}))

	msg := readMessage(t, conn)
	assert.Equal(t, api.MessageError, msg.Type)
	assert.Equal(t, api.ErrCodeInvalidCredential, msg.Code)

	// Сервер закрывает соединение сразу после error
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var next api.Message
	assert.Error(t, conn.ReadJSON(&next))
}

func TestWS_ConnectionLimit(t *testing.T) {
	individual := teamWSAccount()
	individual.AccountClass = models.ClassIndividual
	env := newWSEnv(t, individual)

	env.connect(t, "acc-1") // занимает единственный слот

	token, err := env.verifier.GenerateToken("acc-1")
	require.NoError(t, err)

	conn := env.dial(t)
	require.NoError(t, conn.WriteJSON(&api.Message{Type: api.MessageHandshake, Token: token}))

	msg := readMessage(t, conn)
	assert.Equal(t, api.MessageError, msg.Type)
	assert.Equal(t, api.ErrCodeConnectionLimit, msg.Code)
	assert.Equal(t, 1, msg.Limit)
}

func TestWS_BlacklistedAccount(t *testing.T) {
	banned := teamWSAccount()
	banned.Blacklisted = true
	env := newWSEnv(t, banned)

	token, err := env.verifier.GenerateToken("acc-1")
	require.NoError(t, err)

	conn := env.dial(t)
	require.NoError(t, conn.WriteJSON(&api.Message{Type: api.MessageHandshake, Token: token}))

	msg := readMessage(t, conn)
	assert.Equal(t, api.MessageError, msg.Type)
	assert.Equal(t, api.ErrCodeUnauthorized, msg.Code)
}

func TestWS_UpdateBeforeHandshakeIgnored(t *testing.T) {
	env := newWSEnv(t, teamWSAccount())

	conn := env.dial(t)

	// Update до handshake молча отбрасывается
	require.NoError(t, conn.WriteJSON(&api.Message{
		Type:  api.MessageUpdate,
		State: json.RawMessage(`{"v":1}`),
	}))

	token, err := env.verifier.GenerateToken("acc-1")
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(&api.Message{Type: api.MessageHandshake, Token: token}))

	msg := readMessage(t, conn)
	assert.Equal(t, api.MessageSnapshot, msg.Type)

	// Ранний update не попал в снапшот
	_, ok := env.snapshots.snapshots["acc-1"]
	assert.False(t, ok)
}

func TestWS_DisconnectReleasesSlot(t *testing.T) {
	individual := teamWSAccount()
	individual.AccountClass = models.ClassIndividual
	env := newWSEnv(t, individual)

	conn, _ := env.connect(t, "acc-1")
	require.NoError(t, conn.Close())

	// Слот освобождается после разрыва соединения
	require.Eventually(t, func() bool {
		return env.registry.SessionCount("acc-1") == 0
	}, 2*time.Second, 10*time.Millisecond)

	_, msg := env.connect(t, "acc-1")
	assert.Equal(t, api.MessageSnapshot, msg.Type)
}
