// Package ws is the WebSocket frontend. Clients exchange {"message": "..."}
// JSON frames on a single upgraded route.
package ws

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/k6mud/internal/protocol"
)

// Farewell is the last frame sent before the server closes a connection.
const Farewell = "Goodbye"

// Conn wraps an upgraded WebSocket connection. ReadCommand must be called
// from a single goroutine; Send and Close are safe for concurrent use.
type Conn struct {
	raw          *websocket.Conn
	remoteAddr   string
	writeTimeout time.Duration
	pongWait     time.Duration
	logger       *zap.Logger

	writeMu   sync.Mutex
	codeMu    sync.Mutex
	closeCode int
	closeOnce sync.Once
	done      chan struct{}
}

// NewConn configures raw with the read limit and pong deadline and starts
// the ping loop.
//
// Precondition: raw is a freshly upgraded connection.
// Postcondition: When pongWait > 0, pings are sent every 9/10 of it until Close.
func NewConn(raw *websocket.Conn, remoteAddr string, readLimit int64, writeTimeout, pongWait time.Duration, logger *zap.Logger) *Conn {
	c := &Conn{
		raw:          raw,
		remoteAddr:   remoteAddr,
		writeTimeout: writeTimeout,
		pongWait:     pongWait,
		logger:       logger,
		done:         make(chan struct{}),
	}
	if readLimit > 0 {
		raw.SetReadLimit(readLimit)
	}
	if pongWait <= 0 {
		return c
	}
	_ = raw.SetReadDeadline(time.Now().Add(pongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(c.pongWait))
	})
	go c.pingLoop()
	return c
}

// ReadCommand returns the message text of the next valid frame. Binary and
// malformed frames are logged and skipped. A normal or going-away close from
// the peer is reported as io.EOF.
func (c *Conn) ReadCommand() (string, error) {
	for {
		kind, data, err := c.raw.ReadMessage()
		if err != nil {
			return "", c.readError(err)
		}
		if kind != websocket.TextMessage {
			c.logger.Debug("skipping non-text frame", zap.Int("kind", kind))
			continue
		}
		text, err := protocol.DecodeEnvelope(data)
		if err != nil {
			c.logger.Warn("skipping malformed frame", zap.Error(err))
			continue
		}
		return text, nil
	}
}

func (c *Conn) readError(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		c.setCloseCode(ce.Code)
		if ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway {
			return io.EOF
		}
		return err
	}
	c.setCloseCode(websocket.CloseAbnormalClosure)
	return err
}

func (c *Conn) setCloseCode(code int) {
	c.codeMu.Lock()
	defer c.codeMu.Unlock()
	if c.closeCode == 0 {
		c.closeCode = code
	}
}

// CloseCode returns the close code received from the peer, or 1006 when the
// connection dropped without a close frame.
func (c *Conn) CloseCode(err error) int {
	c.codeMu.Lock()
	code := c.closeCode
	c.codeMu.Unlock()
	if code != 0 {
		return code
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}

// Send writes text as a {"message": text} frame.
func (c *Conn) Send(text string) error {
	frame, err := protocol.EncodeEnvelope(text)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.raw.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.pongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.writeTimeout)
			if err := c.raw.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

// Close sends the farewell frame and a normal close, then closes the socket.
// Write failures are ignored since the peer may already be gone.
//
// Postcondition: The ping loop has stopped and the socket is closed.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.Send(Farewell)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.raw.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = c.raw.Close()
	})
	return err
}

// RemoteAddr returns the client address, honouring X-Forwarded-For.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}
