// Package metrics provides the Prometheus collectors exposed at GET
// /metrics: CounterVec/Gauge collectors registered against
// prometheus.DefaultRegisterer.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every collector a league service registers. Only the
// Manager constructs one; it updates TokensIssued, ConnectedAgents,
// MatchesByStatus and RoundsCompleted. MessagesValidated, MessagesRejected
// and TokensRevoked are registered but nothing in the tree increments them.
type Metrics struct {
	MessagesValidated *prometheus.CounterVec
	MessagesRejected  *prometheus.CounterVec

	MatchesByStatus *prometheus.CounterVec
	RoundsCompleted prometheus.Counter

	TokensIssued  prometheus.Counter
	TokensRevoked prometheus.Counter

	ConnectedAgents *prometheus.GaugeVec
}

// New creates a Metrics instance registered against the default registerer.
func New(service string) *Metrics {
	return NewWithRegistry(service, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against registerer,
// so tests can use a throwaway prometheus.NewRegistry() instead of the
// package-global default.
func NewWithRegistry(service string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesValidated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "league_messages_validated_total",
				Help: "Total number of envelopes that passed validation.",
				ConstLabels: prometheus.Labels{"service": service},
			},
			[]string{"message_type"},
		),
		MessagesRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "league_messages_rejected_total",
				Help: "Total number of envelopes rejected, by error_code.",
				ConstLabels: prometheus.Labels{"service": service},
			},
			[]string{"error_code"},
		),
		MatchesByStatus: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "league_matches_total",
				Help: "Total number of matches reaching each terminal status.",
				ConstLabels: prometheus.Labels{"service": service},
			},
			[]string{"status"},
		),
		RoundsCompleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "league_rounds_completed_total",
				Help: "Total number of rounds marked COMPLETED.",
				ConstLabels: prometheus.Labels{"service": service},
			},
		),
		TokensIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "league_tokens_issued_total",
				Help: "Total number of auth tokens issued.",
				ConstLabels: prometheus.Labels{"service": service},
			},
		),
		TokensRevoked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "league_tokens_revoked_total",
				Help: "Total number of auth tokens revoked.",
				ConstLabels: prometheus.Labels{"service": service},
			},
		),
		ConnectedAgents: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "league_connected_agents",
				Help: "Number of agents currently registered and not suspended, by kind.",
				ConstLabels: prometheus.Labels{"service": service},
			},
			[]string{"kind"},
		),
	}

	registerer.MustRegister(
		m.MessagesValidated, m.MessagesRejected, m.MatchesByStatus, m.RoundsCompleted,
		m.TokensIssued, m.TokensRevoked, m.ConnectedAgents,
	)
	return m
}
