package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/k6mud/internal/config"
)

const shutdownTimeout = 5 * time.Second

// SessionHandler processes one upgraded WebSocket connection.
type SessionHandler interface {
	HandleWebSocket(ctx context.Context, conn *Conn) error
}

// Acceptor serves the WebSocket route and dispatches each upgraded
// connection to a SessionHandler.
type Acceptor struct {
	cfg      config.WebSocketConfig
	handler  SessionHandler
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	srv     *http.Server
	addr    string
	stopped bool
	quit    chan struct{}
	wg      sync.WaitGroup
	active  atomic.Int64
}

// NewAcceptor creates a WebSocket acceptor.
//
// Precondition: handler and logger must be non-nil; cfg.Path starts with "/".
func NewAcceptor(cfg config.WebSocketConfig, handler SessionHandler, logger *zap.Logger) *Acceptor {
	a := &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger.Named("websocket"),
		quit:    make(chan struct{}),
	}
	a.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     a.checkOrigin,
	}
	return a
}

func (a *Acceptor) checkOrigin(r *http.Request) bool {
	if len(a.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range a.cfg.AllowedOrigins {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// Handler returns the HTTP handler serving the configured path.
func (a *Acceptor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Path, a)
	return mux
}

// ServeHTTP upgrades the request and runs the session handler until it returns.
func (a *Acceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	a.wg.Add(1)
	a.mu.Unlock()
	defer a.wg.Done()

	raw, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	a.active.Add(1)
	defer a.active.Add(-1)

	start := time.Now()
	addr := clientAddr(r)
	conn := NewConn(raw, addr, a.cfg.ReadLimit, a.cfg.WriteTimeout, a.cfg.PongWait,
		a.logger.With(zap.String("remote_addr", addr)))
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-a.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := a.handler.HandleWebSocket(ctx, conn); err != nil {
		a.logger.Debug("connection closed",
			zap.String("remote_addr", addr),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return
	}
	a.logger.Debug("connection closed cleanly",
		zap.String("remote_addr", addr),
		zap.Duration("duration", time.Since(start)),
	)
}

// clientAddr prefers the first X-Forwarded-For entry over the socket address.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	return r.RemoteAddr
}

// Start listens on the configured address and serves until Stop is called.
func (a *Acceptor) Start() error {
	lis, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}
	return a.Serve(lis)
}

// Serve runs the HTTP server on lis until Stop is called.
//
// Postcondition: Returns nil after Stop, or the server error.
func (a *Acceptor) Serve(lis net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		_ = lis.Close()
		return nil
	}
	a.srv = srv
	a.addr = lis.Addr().String()
	a.mu.Unlock()

	a.logger.Info("websocket acceptor listening",
		zap.String("addr", a.addr),
		zap.String("path", a.cfg.Path),
	)
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket: %w", err)
	}
	return nil
}

// Stop refuses new upgrades, cancels every session and waits for them to end.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	close(a.quit)
	srv := a.srv
	a.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Warn("http shutdown", zap.Error(err))
		}
	}
	a.wg.Wait()
	a.logger.Info("websocket acceptor stopped")
}

// Addr returns the listening address, or empty string if not yet listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// ActiveSessions returns the number of upgraded connections being served.
func (a *Acceptor) ActiveSessions() int64 {
	return a.active.Load()
}
