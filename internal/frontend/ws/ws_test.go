package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/k6mud/internal/config"
)

const testPath = "/ws/client/"

// echoHandler replies to each command and records how sessions ended.
type echoHandler struct {
	mu    sync.Mutex
	codes []int
	addrs []string
}

func (h *echoHandler) HandleWebSocket(ctx context.Context, conn *Conn) error {
	h.mu.Lock()
	h.addrs = append(h.addrs, conn.RemoteAddr())
	h.mu.Unlock()

	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		for {
			line, err := conn.ReadCommand()
			if err != nil {
				errs <- err
				return
			}
			lines <- line
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			h.mu.Lock()
			h.codes = append(h.codes, conn.CloseCode(err))
			h.mu.Unlock()
			return err
		case line := <-lines:
			if err := conn.Send("echo: " + line); err != nil {
				return err
			}
		}
	}
}

func (h *echoHandler) lastCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.codes) == 0 {
		return 0
	}
	return h.codes[len(h.codes)-1]
}

func testConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		Enabled:      true,
		Host:         "127.0.0.1",
		Path:         testPath,
		ReadLimit:    4096,
		WriteTimeout: time.Second,
		PongWait:     time.Minute,
	}
}

func newTestServer(t *testing.T, cfg config.WebSocketConfig, h SessionHandler) (*Acceptor, *httptest.Server) {
	t.Helper()
	acc := NewAcceptor(cfg, h, zaptest.NewLogger(t))
	srv := httptest.NewServer(acc.Handler())
	t.Cleanup(func() {
		acc.Stop()
		srv.Close()
	})
	return acc, srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + testPath
	c, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sendFrame(t *testing.T, c *websocket.Conn, message string) {
	t.Helper()
	require.NoError(t, c.WriteJSON(map[string]string{"message": message}))
}

func readFrame(t *testing.T, c *websocket.Conn) string {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	var env struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	return env.Message
}

func TestAcceptor_EchoesEnvelope(t *testing.T) {
	h := &echoHandler{}
	_, srv := newTestServer(t, testConfig(), h)
	c := dial(t, srv, nil)

	sendFrame(t, c, "look")
	assert.Equal(t, "echo: look", readFrame(t, c))
}

func TestAcceptor_SkipsMalformedFrames(t *testing.T) {
	h := &echoHandler{}
	_, srv := newTestServer(t, testConfig(), h)
	c := dial(t, srv, nil)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"text":"look"}`)))
	require.NoError(t, c.WriteMessage(websocket.BinaryMessage, []byte(`{"message":"bin"}`)))
	sendFrame(t, c, "help")
	assert.Equal(t, "echo: help", readFrame(t, c), "bad frames produce no reply")
}

func TestAcceptor_ClientCloseCode(t *testing.T) {
	h := &echoHandler{}
	acc, srv := newTestServer(t, testConfig(), h)
	c := dial(t, srv, nil)
	sendFrame(t, c, "ping")
	readFrame(t, c)

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye")
	require.NoError(t, c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	require.Eventually(t, func() bool { return h.lastCode() == websocket.CloseGoingAway }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return acc.ActiveSessions() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestAcceptor_StopSendsFarewell(t *testing.T) {
	h := &echoHandler{}
	acc, srv := newTestServer(t, testConfig(), h)
	c := dial(t, srv, nil)
	sendFrame(t, c, "ping")
	readFrame(t, c)

	acc.Stop()
	assert.Equal(t, Farewell, readFrame(t, c))

	_, _, err := c.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.CloseNormalClosure, ce.Code)
	assert.Equal(t, int64(0), acc.ActiveSessions())
}

func TestAcceptor_RejectsAfterStop(t *testing.T) {
	acc, srv := newTestServer(t, testConfig(), &echoHandler{})
	acc.Stop()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + testPath
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAcceptor_CheckOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"https://play.example.com"}
	_, srv := newTestServer(t, cfg, &echoHandler{})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + testPath

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	c := dial(t, srv, http.Header{"Origin": {"https://PLAY.example.com"}})
	sendFrame(t, c, "ok")
	assert.Equal(t, "echo: ok", readFrame(t, c))
}

func TestAcceptor_ForwardedFor(t *testing.T) {
	h := &echoHandler{}
	_, srv := newTestServer(t, testConfig(), h)
	c := dial(t, srv, http.Header{"X-Forwarded-For": {"203.0.113.7, 10.0.0.1"}})
	sendFrame(t, c, "hi")
	readFrame(t, c)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, []string{"203.0.113.7"}, h.addrs)
}

func TestAcceptor_WrongPath(t *testing.T) {
	_, srv := newTestServer(t, testConfig(), &echoHandler{})
	resp, err := http.Get(srv.URL + "/other")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
