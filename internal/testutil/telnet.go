package testutil

import (
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

// DefaultTimeout bounds each read performed by TelnetClient helpers.
const DefaultTimeout = 2 * time.Second

// TelnetClient is a line-oriented test client for the telnet frontend.
// Output read past a match is kept for the next read.
type TelnetClient struct {
	conn    net.Conn
	pending strings.Builder
	t       *testing.T
}

// NewTelnetClient dials the given address and returns a test client.
//
// Precondition: addr must be a valid "host:port" string with a listening server.
// Postcondition: Returns a connected TelnetClient or fails the test.
func NewTelnetClient(t *testing.T, addr string) *TelnetClient {
	t.Helper()
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", addr, err, time.Since(start))
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	t.Logf("telnet client connected to %s [%s]", addr, time.Since(start))
	return &TelnetClient{conn: conn, t: t}
}

// ReadUntil reads until substr appears and returns everything up to and
// including it.
//
// Precondition: substr must be non-empty.
// Postcondition: Returns the output ending in substr, or fails on timeout.
func (c *TelnetClient) ReadUntil(substr string, timeout time.Duration) string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	tmp := make([]byte, 1024)
	for {
		buffered := c.pending.String()
		if i := strings.Index(buffered, substr); i >= 0 {
			end := i + len(substr)
			c.pending.Reset()
			c.pending.WriteString(buffered[end:])
			return buffered[:end]
		}
		n, err := c.conn.Read(tmp)
		c.pending.Write(tmp[:n])
		if err != nil && n == 0 {
			c.t.Fatalf("reading until %q: got %q, error: %v", substr, buffered, err)
		}
	}
}

// Send writes a line of text to the server, appending \r\n.
//
// Precondition: text should not contain trailing newline characters.
func (c *TelnetClient) Send(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := fmt.Fprintf(c.conn, "%s\r\n", text); err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

// Command sends line and waits for output containing want.
func (c *TelnetClient) Command(line, want string) string {
	c.t.Helper()
	c.Send(line)
	return c.ReadUntil(want, DefaultTimeout)
}

// Close closes the underlying connection.
func (c *TelnetClient) Close() {
	_ = c.conn.Close()
}
