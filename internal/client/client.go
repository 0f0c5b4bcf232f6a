// Package client is a line-oriented WebSocket client for the game server.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cory-johannsen/k6mud/internal/frontend/telnet"
	"github.com/cory-johannsen/k6mud/internal/protocol"
)

const (
	writeWait        = 10 * time.Second
	handshakeTimeout = 10 * time.Second
)

// Client is a connected WebSocket session.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Dial connects to ws://addr/path.
//
// Postcondition: Returns a connected Client or the handshake error.
func Dial(ctx context.Context, addr, path string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: path}
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", u.String(), err)
	}
	return &Client{conn: conn}, nil
}

// Send writes line as a {"message": line} frame.
func (c *Client) Send(line string) error {
	frame, err := protocol.EncodeEnvelope(line)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Receive blocks for the next server message. A normal close is reported as io.EOF.
func (c *Client) Receive() (string, error) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "", io.EOF
			}
			return "", err
		}
		text, err := protocol.DecodeEnvelope(data)
		if err != nil {
			continue
		}
		return text, nil
	}
}

// Close sends a normal close frame and closes the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.conn.Close()
}

// Render turns server markup into terminal text, with or without ANSI styling.
func Render(text string, color bool) string {
	rendered := telnet.RenderMarkup(text)
	if !color {
		rendered = telnet.StripANSI(rendered)
	}
	return rendered
}

// Run forwards lines from in to the server and prints server messages to out
// until either side closes or ctx is cancelled.
func (c *Client) Run(ctx context.Context, in io.Reader, out io.Writer, color bool) error {
	received := make(chan error, 1)
	go func() {
		for {
			text, err := c.Receive()
			if err != nil {
				received <- err
				return
			}
			fmt.Fprint(out, Render(text, color)+"\r\n")
		}
	}()

	lines := make(chan string)
	inputDone := make(chan error, 1)
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stopped:
				return
			}
		}
		inputDone <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.Close()
			return nil
		case err := <-received:
			_ = c.conn.Close()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case err := <-inputDone:
			_ = c.Close()
			return err
		case line := <-lines:
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := c.Send(line); err != nil {
				return fmt.Errorf("sending: %w", err)
			}
		}
	}
}
