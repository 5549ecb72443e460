// Package metrics exposes Prometheus instrumentation for the ledger core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its own registry so tests can create collectors freely
// without colliding on the global one.
type Collector struct {
	registry        *prometheus.Registry
	entriesAppended *prometheus.CounterVec
	replays         prometheus.Counter
	rejected        *prometheus.CounterVec
	applyDuration   prometheus.Histogram
	accountBalance  *prometheus.GaugeVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		entriesAppended: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_entries_appended_total",
			Help: "Ledger entries appended, by source category",
		}, []string{"source"}),
		replays: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "ledger_idempotent_replays_total",
			Help: "Mutations skipped because the transaction ref was already applied",
		}),
		rejected: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_mutations_rejected_total",
			Help: "Mutations rejected before reaching storage, by reason",
		}, []string{"reason"}),
		applyDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_apply_delta_duration_seconds",
			Help:    "Time taken to apply a balance delta",
			Buckets: prometheus.DefBuckets,
		}),
		accountBalance: promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_account_balance_cents",
			Help: "Last observed balance per account, in cents",
		}, []string{"client_id", "unit_id"}),
	}
}

func (c *Collector) RecordAppend(source string, duration time.Duration) {
	c.entriesAppended.WithLabelValues(source).Inc()
	c.applyDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordReplay() {
	c.replays.Inc()
}

func (c *Collector) RecordRejected(reason string) {
	c.rejected.WithLabelValues(reason).Inc()
}

func (c *Collector) SetBalance(clientID, unitID string, cents int64) {
	c.accountBalance.WithLabelValues(clientID, unitID).Set(float64(cents))
}

// Handler serves the collector's registry for a /metrics route.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
