package countdown

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Coordinator runs the join phase and the lifecycle of a single session.
type Coordinator struct {
	engine   *Engine
	listener net.Listener
	logger   *slog.Logger

	acceptBackoff   time.Duration
	monitorInterval time.Duration

	wg *sync.WaitGroup
}

func NewCoordinator(engine *Engine, listener net.Listener, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		engine:          engine,
		listener:        listener,
		logger:          logger.With(slog.String("component", "coordinator"), slog.String("session", engine.session.ID)),
		acceptBackoff:   100 * time.Millisecond,
		monitorInterval: 10 * time.Second,
		wg:              new(sync.WaitGroup),
	}
}

// Run accepts players until every seat is filled, then waits for the game to
// finish. Cancelling ctx shuts the session down. Run returns once every
// player handler has exited.
func (c *Coordinator) Run(ctx context.Context) error {
	session := c.engine.Session()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unblock Accept when the caller gives up or the game ends early.
	go func() {
		select {
		case <-ctx.Done():
		case <-session.Done():
		}
		// nolint:errcheck
		c.listener.Close()
	}()

	c.wg.Add(1)
	go c.monitoringWorker(ctx)

	c.logger.Info("waiting for players", slog.Int("seats", session.PlayerCount), slog.String("addr", c.listener.Addr().String()))
	err := c.acceptLoop(ctx)

	select {
	case <-session.Done():
	case <-ctx.Done():
		c.engine.Shutdown(ReasonShutdown)
	}
	cancel()
	c.wg.Wait()

	snap := session.Snapshot()
	c.logger.Info("session ended",
		slog.Any("winner", snap.Winner),
		slog.Int("total", snap.Total),
		slog.Duration("duration", time.Since(session.CreatedAt)),
	)
	return err
}

// acceptLoop seats connections until the game starts. Transient accept errors
// are retried.
func (c *Coordinator) acceptLoop(ctx context.Context) error {
	session := c.engine.Session()
	for session.State() == GameStateJoining {
		conn, err := c.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			c.logger.Warn("accept failed", slog.Any("error", err))
			select {
			case <-time.After(c.acceptBackoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		player, err := c.engine.Join(conn)
		if err != nil {
			c.logger.Warn("rejecting connection", slog.String("remote", remoteAddr(conn)), slog.Any("error", err))
			// nolint:errcheck
			conn.Close()
			continue
		}

		handler := NewPlayerHandler(player, c.engine, c.logger)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			handler.Serve()
		}()
	}

	// nolint:errcheck
	c.listener.Close()
	return nil
}

// monitoringWorker periodically logs session metrics.
func (c *Coordinator) monitoringWorker(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.logMetrics()
		case <-ctx.Done():
			return
		}
	}
}

func (c *Coordinator) logMetrics() {
	snap := c.engine.Session().Snapshot()
	c.logger.Debug("session metrics",
		slog.String("state", string(snap.State)),
		slog.Int("active", snap.ActiveCount),
		slog.Int("total", snap.Total),
		slog.Int("turn", snap.CurrentTurn),
	)
}
