package countdown

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by the engine. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Moves         *prometheus.CounterVec
	Evictions     *prometheus.CounterVec
	Games         *prometheus.CounterVec
	ActivePlayers prometheus.Gauge
	Total         prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Moves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "countdown_moves_total",
				Help: "Moves received from players, by result",
			},
			[]string{"result"},
		),
		Evictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "countdown_evictions_total",
				Help: "Players removed from play, by reason",
			},
			[]string{"reason"},
		),
		Games: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "countdown_games_finished_total",
				Help: "Finished games, by outcome",
			},
			[]string{"outcome"},
		),
		ActivePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "countdown_active_players",
			Help: "Players currently seated and active",
		}),
		Total: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "countdown_remaining_total",
			Help: "Remaining countdown total",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Moves, m.Evictions, m.Games, m.ActivePlayers, m.Total)
	}
	return m
}

func (m *Metrics) move(result MoveResult) {
	if m == nil {
		return
	}
	m.Moves.WithLabelValues(string(result)).Inc()
}

func (m *Metrics) eviction(reason Reason) {
	if m == nil {
		return
	}
	m.Evictions.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) finished(hasWinner bool) {
	if m == nil {
		return
	}
	outcome := "winner"
	if !hasWinner {
		outcome = "no_winner"
	}
	m.Games.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observe(active, total int) {
	if m == nil {
		return
	}
	m.ActivePlayers.Set(float64(active))
	m.Total.Set(float64(total))
}
