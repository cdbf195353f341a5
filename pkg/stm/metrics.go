package stm

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the commit and abort counters Atomic's retry loop updates
// after every attempt, and the turbo counter the OnGoTurbo hook wired in
// Runtime.AttachThread updates on every promotion, all labeled by the
// algorithm active at the time, so a switch mid
// run shows up as a shift between label values rather than a discontinuity
// in one series.
type Metrics struct {
	Commits *prometheus.CounterVec
	Aborts  *prometheus.CounterVec
	Turbo   *prometheus.CounterVec
}

// NewMetrics registers a fresh set of counters with reg. Passing a
// dedicated registry (rather than prometheus.DefaultRegisterer) keeps
// repeated test runtimes from colliding on duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gostm",
			Name:      "commits_total",
			Help:      "Committed transactions, by algorithm and mode.",
		}, []string{"algorithm", "mode"}),
		Aborts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gostm",
			Name:      "aborts_total",
			Help:      "Aborted transaction attempts, by algorithm.",
		}, []string{"algorithm"}),
		Turbo: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gostm",
			Name:      "turbo_promotions_total",
			Help:      "Transactions promoted to turbo mode, by algorithm.",
		}, []string{"algorithm"}),
	}
	reg.MustRegister(m.Commits, m.Aborts, m.Turbo)
	return m
}
