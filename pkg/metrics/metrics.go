// Package metrics is the broker's observability surface (C8): Prometheus
// counters and gauges, rendered to text format for the wire "metrics"
// action, plus the capacity/stats/health snapshot builders shared with
// pkg/protocol.
package metrics

import (
	"bytes"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/marmos91/statebroker/pkg/broker"
)

// Registry owns every Prometheus collector the broker exposes. Per-action
// and per-compression results are modelled as two counters (success/error,
// compressed/uncompressed) rather than a single counter with a derived
// subtraction, so the sum always equals the total without relying on
// collector read-time arithmetic.
type Registry struct {
	reg *prometheus.Registry

	opsTotal          *prometheus.CounterVec // labels: action, result
	compressionTotal  *prometheus.CounterVec // labels: compressed
	compressionBefore prometheus.Counter
	compressionAfter  prometheus.Counter
	compressionRatio  prometheus.Gauge
	itemsExpired      prometheus.Counter
	leasesExpired     prometheus.Counter
	requestsTotal     prometheus.Counter
	inFlight          prometheus.Gauge
	draining          prometheus.Gauge
	capacityItems     prometheus.Gauge
	capacityMax       prometheus.Gauge
	capacityUtil      prometheus.Gauge

	startedAt time.Time
}

// New constructs a Registry with its own isolated prometheus.Registry
// (not the global DefaultRegisterer), so multiple brokers in the same
// process, as in tests, never collide on metric names.
func New() *Registry {
	reg := prometheus.NewRegistry()

	return &Registry{
		reg: reg,
		opsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "statebroker_operations_total",
				Help: "Total requests handled, by action and result.",
			},
			[]string{"action", "result"},
		),
		compressionTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "statebroker_compression_operations_total",
				Help: "Total set operations, by whether the client compressed the value.",
			},
			[]string{"compressed"},
		),
		compressionBefore: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "statebroker_compression_before_bytes_total",
				Help: "Cumulative pre-compression byte size hints reported by clients.",
			},
		),
		compressionAfter: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "statebroker_compression_after_bytes_total",
				Help: "Cumulative post-compression byte size hints reported by clients.",
			},
		),
		compressionRatio: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "statebroker_compression_ratio",
				Help: "Current cumulative after/before compression byte ratio.",
			},
		),
		itemsExpired: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "statebroker_items_expired_total",
				Help: "Total value-store entries removed by TTL sweeps.",
			},
		),
		leasesExpired: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "statebroker_leases_expired_total",
				Help: "Total leases removed by TTL sweeps.",
			},
		),
		requestsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "statebroker_requests_total",
				Help: "Total frames accepted across all connections.",
			},
		),
		inFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "statebroker_in_flight_requests",
				Help: "Requests currently being handled.",
			},
		),
		draining: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "statebroker_draining",
				Help: "1 if the broker is draining, 0 otherwise.",
			},
		),
		capacityItems: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "statebroker_capacity_items",
				Help: "Current non-expired value-store item count.",
			},
		),
		capacityMax: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "statebroker_capacity_max_items",
				Help: "Configured max_items cap (0 = unlimited).",
			},
		),
		capacityUtil: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "statebroker_capacity_utilization",
				Help: "items / max_items, 0 when max_items is unlimited.",
			},
		),
		startedAt: time.Now(),
	}
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

// ObserveOp records one completed request for action.
func (r *Registry) ObserveOp(action string, ok bool) {
	r.requestsTotal.Inc()
	r.opsTotal.WithLabelValues(action, resultLabel(ok)).Inc()
}

// ObserveCompression records a set's compression outcome. When before/after
// byte hints are both present the cumulative totals and ratio gauge are
// updated; otherwise only the operation counter advances.
func (r *Registry) ObserveCompression(compressed bool, beforeSize, afterSize *int64) {
	label := "false"
	if compressed {
		label = "true"
	}
	r.compressionTotal.WithLabelValues(label).Inc()

	if !compressed || beforeSize == nil || afterSize == nil {
		return
	}
	r.compressionBefore.Add(float64(*beforeSize))
	r.compressionAfter.Add(float64(*afterSize))

	before := counterValue(r.compressionBefore)
	after := counterValue(r.compressionAfter)
	if before > 0 {
		r.compressionRatio.Set(after / before)
	}
}

// ObserveSet implements pkg/store.Metrics: the store calls it once per
// stored set, with compressed true only when both size hints were present.
func (r *Registry) ObserveSet(compressed bool, beforeSize, afterSize int64) {
	if !compressed {
		r.ObserveCompression(false, nil, nil)
		return
	}
	r.ObserveCompression(true, &beforeSize, &afterSize)
}

// counterValue reads a counter's current value back out. prometheus
// counters do not expose a getter directly; Write populates a metric proto
// we can read the value from.
func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// ObserveExpired records n value-store entries swept for TTL expiry.
func (r *Registry) ObserveExpired(n int) {
	if n > 0 {
		r.itemsExpired.Add(float64(n))
	}
}

// LeaseMetrics adapts Registry to the lease package's Metrics interface
// without coupling the two packages' expired counters together.
type LeaseMetrics struct{ r *Registry }

func (l LeaseMetrics) ObserveExpired(n int) {
	if n > 0 {
		l.r.leasesExpired.Add(float64(n))
	}
}

// ForLease returns the adapter pkg/lease.Table expects.
func (r *Registry) ForLease() LeaseMetrics { return LeaseMetrics{r: r} }

// SetInFlight updates the in-flight request gauge.
func (r *Registry) SetInFlight(n uint64) { r.inFlight.Set(float64(n)) }

// SetDraining updates the draining gauge.
func (r *Registry) SetDraining(draining bool) {
	if draining {
		r.draining.Set(1)
	} else {
		r.draining.Set(0)
	}
}

// SetCapacity updates the capacity gauges.
func (r *Registry) SetCapacity(items, maxItems int) {
	r.capacityItems.Set(float64(items))
	r.capacityMax.Set(float64(maxItems))
	if maxItems > 0 {
		r.capacityUtil.Set(float64(items) / float64(maxItems))
	} else {
		r.capacityUtil.Set(0)
	}
}

// Render gathers every registered collector and encodes it in Prometheus
// text exposition format.
func (r *Registry) Render() (string, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// Uptime returns process uptime since the registry (and, for practical
// purposes, the broker) was constructed.
func (r *Registry) Uptime() time.Duration { return time.Since(r.startedAt) }

// Capacity assesses utilization against maxItems, producing the shared
// block embedded in both stats and health responses.
func Capacity(items, maxItems int) broker.CapacitySnapshot {
	c := broker.CapacitySnapshot{Items: items, MaxItems: maxItems}
	if maxItems <= 0 {
		return c
	}
	c.Utilization = float64(items) / float64(maxItems)
	c.NearCapacity = c.Utilization >= 0.90
	c.AtCapacity = c.Utilization >= 1.0
	switch {
	case c.AtCapacity:
		c.Warning = "at_capacity"
	case c.NearCapacity:
		c.Warning = "near_capacity"
	}
	return c
}
