package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tkahng/countdown"
	"github.com/tkahng/countdown/websocket"
)

// Feed is an Auditor that streams audit entries as JSON frames to WebSocket
// subscribers. It never blocks the engine; slow subscribers miss frames.
type Feed struct {
	hub    *websocket.Hub
	logger *slog.Logger
}

var _ countdown.Auditor = (*Feed)(nil)

func NewFeed(logger *slog.Logger) *Feed {
	logger = logger.With(slog.String("component", "feed"))
	return &Feed{
		hub:    websocket.NewHub(logger),
		logger: logger,
	}
}

// Run manages subscribers until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) {
	f.hub.Run(ctx)
}

// Subscribers returns the number of connected subscribers.
func (f *Feed) Subscribers() int {
	return len(f.hub.Clients())
}

func (f *Feed) Audit(e countdown.AuditEntry) {
	b, err := json.Marshal(e)
	if err != nil {
		f.logger.Error("encoding audit entry", slog.Any("error", err))
		return
	}
	if err := f.hub.Broadcast(b); err != nil {
		f.logger.Debug("audit frame dropped", slog.Any("error", err))
	}
}

// Handler upgrades requests to feed subscriptions.
func (f *Feed) Handler(origins []string) http.HandlerFunc {
	return websocket.ServeWS(
		websocket.DefaultUpgrader(origins),
		websocket.DefaultSetupConn,
		websocket.NewClientFactory(f.logger, 64),
		f.hub.RegisterClient,
		f.hub.UnregisterClient,
		30*time.Second,
		f.logger,
	)
}
