package handlers

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/k6mud/internal/broadcast"
	"github.com/cory-johannsen/k6mud/internal/config"
	"github.com/cory-johannsen/k6mud/internal/frontend/telnet"
	"github.com/cory-johannsen/k6mud/internal/frontend/ws"
	"github.com/cory-johannsen/k6mud/internal/game/session"
	"github.com/cory-johannsen/k6mud/internal/game/world"
	"github.com/cory-johannsen/k6mud/internal/storage/memory"
	"github.com/cory-johannsen/k6mud/internal/testutil"
)

var (
	_ telnet.SessionHandler = (*GameHandler)(nil)
	_ ws.SessionHandler     = (*GameHandler)(nil)
)

type harness struct {
	store    *memory.ProfileStore
	registry *session.Registry
	telnet   *telnet.Acceptor
	wsURL    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := memory.NewProfileStore()
	hub := broadcast.NewLocalHub(logger, 0)
	registry := session.NewRegistry()
	deps := session.Deps{World: world.DefaultGraph(), Profiles: store, Broadcast: hub, Logger: logger}

	h, err := NewGameHandler(deps, hub, registry)
	require.NoError(t, err)

	tel := telnet.NewAcceptor(config.TelnetConfig{Host: "127.0.0.1"}, h, logger)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = tel.Serve(lis) }()
	require.Eventually(t, func() bool { return tel.Addr() != "" }, 2*time.Second, 5*time.Millisecond)

	wsCfg := config.WebSocketConfig{Path: "/ws/client/", ReadLimit: 4096, WriteTimeout: time.Second, PongWait: time.Minute}
	wsAcc := ws.NewAcceptor(wsCfg, h, logger)
	srv := httptest.NewServer(wsAcc.Handler())

	t.Cleanup(func() {
		wsAcc.Stop()
		srv.Close()
		tel.Stop()
		_ = hub.Close()
	})
	return &harness{
		store:    store,
		registry: registry,
		telnet:   tel,
		wsURL:    "ws" + strings.TrimPrefix(srv.URL, "http") + wsCfg.Path,
	}
}

type wsClient struct {
	t *testing.T
	c *websocket.Conn
}

func (h *harness) dialWS(t *testing.T) *wsClient {
	t.Helper()
	c, resp, err := websocket.DefaultDialer.Dial(h.wsURL, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = c.Close() })
	return &wsClient{t: t, c: c}
}

func (w *wsClient) send(message string) {
	w.t.Helper()
	require.NoError(w.t, w.c.WriteJSON(map[string]string{"message": message}))
}

// waitFor reads frames until one contains want.
func (w *wsClient) waitFor(want string) string {
	w.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	_ = w.c.SetReadDeadline(deadline)
	for {
		_, data, err := w.c.ReadMessage()
		require.NoError(w.t, err, "waiting for %q", want)
		var env struct {
			Message string `json:"message"`
		}
		require.NoError(w.t, json.Unmarshal(data, &env))
		if strings.Contains(env.Message, want) {
			return env.Message
		}
	}
}

func TestNewGameHandler_RequiresFanout(t *testing.T) {
	_, err := NewGameHandler(session.Deps{}, nil, nil)
	assert.Error(t, err)
}

func TestGameHandler_TelnetBanner(t *testing.T) {
	h := newHarness(t)
	client := testutil.NewTelnetClient(t, h.telnet.Addr())
	out := client.ReadUntil(telnet.Prompt, testutil.DefaultTimeout)
	assert.Contains(t, out, "Welcome to k6mud.")

	out = client.Command("help", telnet.Prompt)
	assert.Contains(t, out, "Available commands are:")
}

func TestGameHandler_CrossFrontendSay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.store.Create(ctx, "bob", "pw", 1)
	require.NoError(t, err)

	alice := h.dialWS(t)
	alice.send("register alice secret")
	alice.waitFor("user has been created")
	alice.send("connect alice secret")
	alice.waitFor("User has been logged in : alice")
	alice.waitFor("<b>alice</b> has joined the game")

	bob := testutil.NewTelnetClient(t, h.telnet.Addr())
	bob.ReadUntil(telnet.Prompt, testutil.DefaultTimeout)
	bob.Command("connect bob pw", "User has been logged in : bob")
	alice.waitFor("<b>bob</b> has joined the game")

	alice.send("say hello bob")
	alice.waitFor("<b>alice</b> says <i>hello bob</i>")
	bob.ReadUntil(telnet.Bold+"alice"+telnet.Reset+" says "+telnet.Italic+"hello bob"+telnet.Reset, testutil.DefaultTimeout)

	require.Eventually(t, func() bool { return h.registry.AuthenticatedCount() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"alice", "bob"}, h.registry.Usernames())

	bob.Close()
	alice.waitFor("<b>bob</b> has left the game")
	require.Eventually(t, func() bool {
		p, err := h.store.GetByUsername(ctx, "bob")
		return err == nil && !p.Connected
	}, 2*time.Second, 5*time.Millisecond)
}
