package telnet

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/k6mud/internal/config"
	"github.com/cory-johannsen/k6mud/internal/testutil"
)

// echoHandler is a test SessionHandler that echoes commands back to the client.
type echoHandler struct {
	sessionCount atomic.Int32
}

func (h *echoHandler) HandleSession(ctx context.Context, conn *Conn) error {
	h.sessionCount.Add(1)
	for {
		line, err := conn.ReadCommand()
		if err != nil {
			return err
		}
		if line == "quit" {
			_ = conn.Send("bye")
			return nil
		}
		if err := conn.Send("echo: <b>" + line + "</b>"); err != nil {
			return err
		}
	}
}

// blockingHandler holds each session until its context is cancelled.
type blockingHandler struct{}

func (blockingHandler) HandleSession(ctx context.Context, conn *Conn) error {
	_ = conn.Send("waiting")
	<-ctx.Done()
	return ctx.Err()
}

func startAcceptor(t *testing.T, handler SessionHandler) (*Acceptor, <-chan error) {
	t.Helper()
	cfg := config.TelnetConfig{
		Enabled:      true,
		Host:         "127.0.0.1",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	acc := NewAcceptor(cfg, handler, zaptest.NewLogger(t))
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- acc.Serve(lis) }()
	t.Cleanup(acc.Stop)

	require.Eventually(t, func() bool { return acc.IsRunning() && acc.Addr() != "" }, 2*time.Second, 5*time.Millisecond)
	return acc, errCh
}

func TestAcceptorStartAndStop(t *testing.T) {
	handler := &echoHandler{}
	acc, errCh := startAcceptor(t, handler)

	client := testutil.NewTelnetClient(t, acc.Addr())
	out := client.Command("hello", Prompt)
	assert.Contains(t, out, "echo: "+Bold+"hello"+Reset+"\r\n")

	client.Command("quit", "bye")
	client.Close()

	require.Eventually(t, func() bool { return acc.ActiveSessions() == 0 }, 2*time.Second, 5*time.Millisecond)
	acc.Stop()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("acceptor did not stop in time")
	}
	assert.False(t, acc.IsRunning())
	assert.Equal(t, int32(1), handler.sessionCount.Load())
}

func TestAcceptorMultipleClients(t *testing.T) {
	handler := &echoHandler{}
	acc, _ := startAcceptor(t, handler)

	const numClients = 3
	clients := make([]*testutil.TelnetClient, numClients)
	for i := range clients {
		clients[i] = testutil.NewTelnetClient(t, acc.Addr())
		clients[i].Command("ping", "echo:")
	}
	assert.Equal(t, int64(numClients), acc.ActiveSessions())

	for _, c := range clients {
		c.Command("quit", "bye")
		c.Close()
	}
	require.Eventually(t, func() bool { return acc.ActiveSessions() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(numClients), handler.sessionCount.Load())
}

func TestAcceptorStopCancelsSessions(t *testing.T) {
	acc, errCh := startAcceptor(t, blockingHandler{})

	client := testutil.NewTelnetClient(t, acc.Addr())
	client.ReadUntil("waiting", testutil.DefaultTimeout)

	stopped := make(chan struct{})
	go func() {
		acc.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.NoError(t, <-errCh)
	assert.Equal(t, int64(0), acc.ActiveSessions())
}

func TestAcceptorStartBadAddress(t *testing.T) {
	cfg := config.TelnetConfig{Host: "256.0.0.1", Port: 1}
	acc := NewAcceptor(cfg, &echoHandler{}, zaptest.NewLogger(t))
	assert.Error(t, acc.Start())
}

func TestAcceptorStopBeforeServe(t *testing.T) {
	acc := NewAcceptor(config.TelnetConfig{}, &echoHandler{}, zaptest.NewLogger(t))
	acc.Stop()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.NoError(t, acc.Serve(lis))
}
