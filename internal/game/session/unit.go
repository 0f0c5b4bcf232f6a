package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/k6mud/internal/broadcast"
)

// Close codes passed to Engine.OnDisconnect when the transport has none.
const (
	CloseNormal    = 1000
	CloseGoingAway = 1001
	CloseAbnormal  = 1006
)

// disconnectTimeout bounds the logout persisted after the unit's context ends.
const disconnectTimeout = 5 * time.Second

// Conn is the transport side of one connection.
type Conn interface {
	// ReadCommand blocks until the next command line arrives.
	ReadCommand() (string, error)
	// Send writes reply text to the peer.
	Send(text string) error
}

// CloseCoder is implemented by transports that report a close code for the
// error that ended ReadCommand.
type CloseCoder interface {
	CloseCode(err error) int
}

// Unit is the actor owning one connection's Engine. Inbound lines, fan-out
// deliveries and cancellation are handled by a single goroutine, so the
// engine processes events strictly in arrival order.
type Unit struct {
	id         string
	conn       Conn
	engine     *Engine
	fanout     broadcast.Subscriber
	registry   *Registry
	remoteAddr string
	logger     *zap.Logger
}

// NewUnit creates a unit for conn.
//
// Precondition: conn and fanout are non-nil; registry may be nil.
// Postcondition: Returns a Unit with a fresh session id, or an error from NewEngine.
func NewUnit(deps Deps, fanout broadcast.Subscriber, registry *Registry, conn Conn, remoteAddr string) (*Unit, error) {
	if conn == nil || fanout == nil {
		return nil, errors.New("session: conn and fanout are required")
	}
	if deps.Logger == nil {
		return nil, errors.New("session deps: logger is required")
	}
	id := uuid.NewString()
	deps.Logger = deps.Logger.With(
		zap.String("session_id", id),
		zap.String("remote_addr", remoteAddr),
	)
	engine, err := NewEngine(deps, conn)
	if err != nil {
		return nil, err
	}
	return &Unit{
		id:         id,
		conn:       conn,
		engine:     engine,
		fanout:     fanout,
		registry:   registry,
		remoteAddr: remoteAddr,
		logger:     deps.Logger,
	}, nil
}

// ID returns the unit's session id.
func (u *Unit) ID() string { return u.id }

// Run processes the connection until it closes or ctx is cancelled.
//
// Postcondition: The engine has seen OnDisconnect exactly once. Returns nil
// for an orderly close or cancellation, otherwise the transport error.
func (u *Unit) Run(ctx context.Context) error {
	sub, err := u.fanout.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribing to broadcasts: %w", err)
	}
	defer sub.Close()

	if u.registry != nil {
		if err := u.registry.Add(u.id, u.remoteAddr); err != nil {
			return err
		}
		defer func() { _ = u.registry.Remove(u.id) }()
	}

	start := time.Now()
	u.logger.Info("session started")
	defer func() {
		u.logger.Info("session ended",
			zap.Duration("duration", time.Since(start)),
			zap.Stringer("state", u.engine.State()),
		)
	}()

	done := make(chan struct{})
	defer close(done)
	lines := make(chan string)
	readErr := make(chan error, 1)
	go u.readLoop(lines, readErr, done)

	deliveries := sub.C
	for {
		select {
		case <-ctx.Done():
			u.disconnect(ctx, CloseGoingAway)
			return nil

		case err := <-readErr:
			u.disconnect(ctx, u.closeCode(err))
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err

		case line := <-lines:
			if err := u.engine.HandleLine(ctx, line); err != nil {
				u.disconnect(ctx, CloseAbnormal)
				return err
			}
			u.syncRegistry()

		case msg, ok := <-deliveries:
			if !ok {
				u.logger.Warn("broadcast subscription closed")
				deliveries = nil
				continue
			}
			text, deliver := u.engine.Deliver(msg)
			if !deliver {
				continue
			}
			if err := u.conn.Send(text); err != nil {
				u.disconnect(ctx, CloseAbnormal)
				return fmt.Errorf("delivering broadcast: %w", err)
			}
		}
	}
}

func (u *Unit) readLoop(lines chan<- string, readErr chan<- error, done <-chan struct{}) {
	for {
		line, err := u.conn.ReadCommand()
		if err != nil {
			readErr <- err
			return
		}
		select {
		case lines <- line:
		case <-done:
			return
		}
	}
}

// disconnect runs the engine's disconnect path on a context that outlives ctx.
func (u *Unit) disconnect(ctx context.Context, code int) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
	defer cancel()
	u.engine.OnDisconnect(dctx, code)
	u.syncRegistry()
}

func (u *Unit) closeCode(err error) int {
	if cc, ok := u.conn.(CloseCoder); ok {
		return cc.CloseCode(err)
	}
	if errors.Is(err, io.EOF) {
		return CloseNormal
	}
	return CloseAbnormal
}

func (u *Unit) syncRegistry() {
	if u.registry == nil {
		return
	}
	if err := u.registry.SetUsername(u.id, u.engine.Username()); err != nil {
		u.logger.Debug("registry update skipped", zap.Error(err))
	}
}
