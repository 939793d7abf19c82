// Package websocket fans operator audit lines out to WebSocket subscribers.
// Subscribers only listen; anything they send is discarded.
package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSlowClient is returned by Client.Write when the client's outbound queue
// is full. The frame is dropped.
var ErrSlowClient = errors.New("client outbound queue is full")

// DefaultSetupConn configures a freshly upgraded subscriber connection.
func DefaultSetupConn(c *websocket.Conn) {
	pw := 60 * time.Second
	c.SetReadLimit(512)
	_ = c.SetReadDeadline(time.Now().Add(pw))
	c.SetPongHandler(func(string) error {
		_ = c.SetReadDeadline(time.Now().Add(pw))
		return nil
	})
}

// DefaultUpgrader allows the listed origins. An empty list allows requests
// without an Origin header only, e.g. non-browser tools.
func DefaultUpgrader(origins []string) websocket.Upgrader {
	upgrader := websocket.Upgrader{
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		HandshakeTimeout:  0,
		WriteBufferPool:   nil,
		Subprotocols:      nil,
		Error:             nil,
		CheckOrigin:       nil,
		EnableCompression: false,
	}
	upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.Contains(origins, origin) || slices.Contains(origins, "*")
	}
	return upgrader
}

// Client is one feed subscriber.
type Client interface {
	// Write queues p for delivery without blocking.
	Write(p []byte) (int, error)
	Close() error

	// WriteForever performs every write on the connection, including pings.
	WriteForever(ctx context.Context, onDestroy func(Client), ping time.Duration)

	// ReadForever drains the connection until it closes so control frames
	// (pong, close) are processed.
	ReadForever(ctx context.Context, onDestroy func(Client))

	// Wait blocks until both loops have returned.
	Wait()
}

// ServeWS upgrades HTTP connections to WebSocket, creates the Client, calls
// onCreate and starts the read and write loops.
func ServeWS(
	upgrader websocket.Upgrader,
	// connSetup configures the upgraded connection
	connSetup func(*websocket.Conn),
	clientFactory func(*websocket.Conn) Client,
	// onCreate registers the client, e.g. with a Hub
	onCreate func(context.Context, context.CancelFunc, Client),
	// onDestroy is called by each loop when it exits
	onDestroy func(Client),
	ping time.Duration,
	logger *slog.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already replied to the client
			logger.Warn("websocket upgrade failed", slog.Any("error", err))
			return
		}
		connSetup(conn)
		client := clientFactory(conn)
		ctx, cf := context.WithCancel(context.Background())
		onCreate(ctx, cf, client)

		// all writes happen in this goroutine, ensuring only one writer
		go client.WriteForever(ctx, onDestroy, ping)

		// all reads happen in this goroutine, ensuring only one reader
		go client.ReadForever(ctx, onDestroy)
	}
}

type client struct {
	wg        *sync.WaitGroup
	conn      *websocket.Conn
	egress    chan []byte
	logger    *slog.Logger
	closeOnce sync.Once
}

// NewClientFactory returns a factory suitable for ServeWS.
func NewClientFactory(logger *slog.Logger, queue int) func(*websocket.Conn) Client {
	return func(c *websocket.Conn) Client {
		// one for each of the read/write loops
		wg := &sync.WaitGroup{}
		wg.Add(2)
		return &client{
			wg:     wg,
			conn:   c,
			egress: make(chan []byte, queue),
			logger: logger.With(slog.String("remote", c.RemoteAddr().String())),
		}
	}
}

func (c *client) Write(p []byte) (int, error) {
	select {
	case c.egress <- p:
		return len(p), nil
	default:
		return 0, ErrSlowClient
	}
}

// Close sends a close frame and closes the connection. Safe to call more
// than once.
func (c *client) Close() error {
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
		_ = c.conn.Close()
	})
	return nil
}

func (c *client) WriteForever(ctx context.Context, onDestroy func(Client), ping time.Duration) {
	pingTicker := time.NewTicker(ping)
	defer func() {
		c.wg.Done()
		pingTicker.Stop()
		onDestroy(c)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.egress:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Error("error writing message", slog.Any("error", err))
				return
			}
		case <-pingTicker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				c.logger.Error("error writing ping", slog.Any("error", err))
				return
			}
		}
	}
}

func (c *client) ReadForever(ctx context.Context, onDestroy func(Client)) {
	defer func() {
		c.wg.Done()
		onDestroy(c)
	}()

	for ctx.Err() == nil {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Info("read loop encountered error, shutting down", slog.Any("error", err))
			}
			return
		}
	}
}

func (c *client) Wait() {
	c.wg.Wait()
}

// Hub maintains the set of subscribers and broadcasts frames to them.
type Hub struct {
	mu         *sync.RWMutex
	clients    map[Client]context.CancelFunc
	register   chan regreq
	unregister chan regreq
	stopped    chan struct{}
	logger     *slog.Logger
}

type regreq struct {
	cancel context.CancelFunc
	client Client
	done   chan struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		mu:         &sync.RWMutex{},
		clients:    make(map[Client]context.CancelFunc),
		register:   make(chan regreq),
		unregister: make(chan regreq),
		stopped:    make(chan struct{}),
		logger:     logger,
	}
}

// Clients returns the current subscribers.
func (h *Hub) Clients() []Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	res := make([]Client, 0, len(h.clients))
	for c := range h.clients {
		res = append(res, c)
	}
	return res
}

// RegisterClient adds c. It blocks until Run has processed the request. Once
// Run has returned the client is closed instead.
func (h *Hub) RegisterClient(_ context.Context, cf context.CancelFunc, c Client) {
	done := make(chan struct{})
	select {
	case h.register <- regreq{cancel: cf, client: c, done: done}:
		<-done
	case <-h.stopped:
		cf()
		_ = c.Close()
	}
}

// UnregisterClient removes and closes c. Unknown clients are ignored.
func (h *Hub) UnregisterClient(c Client) {
	done := make(chan struct{})
	select {
	case h.unregister <- regreq{client: c, done: done}:
		<-done
	case <-h.stopped:
	}
}

// Run processes (un)registration until ctx is cancelled, then closes every
// remaining client.
func (h *Hub) Run(ctx context.Context) {
	cleanupClient := func(c Client) {
		if cancel, ok := h.clients[c]; ok {
			cancel()
		}
		delete(h.clients, c)
		_ = c.Close()
		h.logger.Debug("subscriber removed", slog.Int("remaining", len(h.clients)))
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				cleanupClient(c)
			}
			h.mu.Unlock()
			close(h.stopped)
			return
		case rr := <-h.register:
			h.mu.Lock()
			h.clients[rr.client] = rr.cancel
			h.mu.Unlock()
			close(rr.done)
		case rr := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[rr.client]; ok {
				cleanupClient(rr.client)
			}
			h.mu.Unlock()
			close(rr.done)
		}
	}
}

// Broadcast queues b on every subscriber. Subscribers whose queue is full miss
// the frame; the error lists them.
func (h *Hub) Broadcast(b []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var errs []error
	for c := range h.clients {
		if _, err := c.Write(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
