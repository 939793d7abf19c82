package countdown

import (
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testClient is the far end of a player connection. It drains everything
// the server writes so server writes never block.
type testClient struct {
	conn net.Conn
	mu   sync.Mutex
	buf  strings.Builder
	done chan struct{}
}

func newTestClient(conn net.Conn) *testClient {
	c := &testClient{conn: conn, done: make(chan struct{})}
	go func() {
		defer close(c.done)
		b := make([]byte, 256)
		for {
			n, err := conn.Read(b)
			if n > 0 {
				c.mu.Lock()
				c.buf.Write(b[:n])
				c.mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()
	return c
}

// pipeClient returns the server side of an in-memory connection and a client
// reading the other side.
func pipeClient(t *testing.T) (net.Conn, *testClient) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return server, newTestClient(client)
}

func (c *testClient) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func (c *testClient) Count(substr string) int {
	return strings.Count(c.Output(), substr)
}

func (c *testClient) Send(t *testing.T, line string) {
	t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, err := io.WriteString(c.conn, line+"\n")
	require.NoError(t, err)
}

func (c *testClient) WaitFor(t *testing.T, substr string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Count(substr) >= n }, 2*time.Second, 5*time.Millisecond,
		"waiting for %d x %q, got %q", n, substr, c.Output())
}

func (c *testClient) WaitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("connection was not closed, output %q", c.Output())
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingAuditor collects audit entries.
type recordingAuditor struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (r *recordingAuditor) Audit(e AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recordingAuditor) Tags(tag string) []AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AuditEntry
	for _, e := range r.entries {
		if e.Tag == tag {
			out = append(out, e)
		}
	}
	return out
}

// newTestGame creates an engine and seats n in-memory players, which starts
// the game.
func newTestGame(t *testing.T, n int, cfg EngineConfig) (*Engine, []*Player, []*testClient) {
	t.Helper()
	session, err := NewSession(n, DefaultStartTotal)
	require.NoError(t, err)
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	engine := NewEngine(session, cfg)

	players := make([]*Player, n)
	clients := make([]*testClient, n)
	for i := range n {
		conn, client := pipeClient(t)
		p, err := engine.Join(conn)
		require.NoError(t, err)
		players[i] = p
		clients[i] = client
	}
	require.Equal(t, GameStateInProgress, session.State())
	return engine, players, clients
}
