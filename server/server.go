package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tkahng/countdown"
	"github.com/tkahng/countdown/web"
)

// OpsServer exposes the operator surface of a running session: health,
// stats, Prometheus metrics and the live audit feed.
type OpsServer struct {
	session   *countdown.Session
	feed      *Feed
	gatherer  prometheus.Gatherer
	origins   []string
	logger    *slog.Logger
	router    *httprouter.Router
	startTime time.Time
}

// NewOpsServer builds the router. feed may be nil, in which case /api/ws is
// not registered.
func NewOpsServer(session *countdown.Session, feed *Feed, gatherer prometheus.Gatherer, origins []string, logger *slog.Logger) *OpsServer {
	s := &OpsServer{
		session:   session,
		feed:      feed,
		gatherer:  gatherer,
		origins:   origins,
		logger:    logger.With(slog.String("component", "ops")),
		router:    httprouter.New(),
		startTime: time.Now(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the router wrapped in the ops middleware.
func (s *OpsServer) Handler() http.Handler {
	return RequestLogger(s.logger, Cors(s.origins, s.router))
}

func (s *OpsServer) setupRoutes() {
	s.router.HandlerFunc(http.MethodGet, "/", web.ServeHTML)
	s.router.GET("/api/stats", s.handleStats)
	s.router.GET("/api/health", s.handleHealth)
	s.router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	if s.feed != nil {
		s.router.HandlerFunc(http.MethodGet, "/api/ws", s.feed.Handler(s.origins))
	}

	s.router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		s.logger.Error("handler panic", slog.String("path", r.URL.Path), slog.Any("panic", v))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// handleStats returns a snapshot of the session
func (s *OpsServer) handleStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	stats := map[string]any{
		"session":   s.session.Snapshot(),
		"timestamp": time.Now().Unix(),
	}
	if s.feed != nil {
		stats["subscribers"] = s.feed.Subscribers()
	}
	s.writeJSON(w, stats)
}

func (s *OpsServer) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writeJSON(w, map[string]any{
		"status": "ok",
		"state":  s.session.State(),
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *OpsServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("error writing response", slog.Any("error", err))
	}
}
