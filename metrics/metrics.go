// Package metrics instruments the Serial Port Engine and Probe Engine
// with Prometheus collectors, grounded in the instrumentation style of
// m-lab/tcp-info (github.com/prometheus/client_golang throughout).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector bundles the metrics the core emits. A nil *Collector is
// valid everywhere it's used (all methods are nil-receiver safe), so
// callers that don't care about metrics can simply not construct one.
type Collector struct {
	CommandLatency   *prometheus.HistogramVec
	CommandTimeouts  *prometheus.CounterVec
	CommandCacheHits *prometheus.CounterVec
	BufferFullEvents *prometheus.CounterVec
	ProbeDuration    *prometheus.HistogramVec
	ProbeOutcome     *prometheus.CounterVec
}

// NewCollector builds a Collector and registers it with reg. Pass
// prometheus.NewRegistry() in tests to avoid polluting the default
// registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		CommandLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mm",
			Subsystem: "serial",
			Name:      "command_latency_seconds",
			Help:      "Time from command dispatch to terminal state.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"port"}),
		CommandTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mm",
			Subsystem: "serial",
			Name:      "command_timeouts_total",
			Help:      "Commands that reached SerialResponseTimeout.",
		}, []string{"port"}),
		CommandCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mm",
			Subsystem: "serial",
			Name:      "command_cache_hits_total",
			Help:      "Commands served from the per-port response cache.",
		}, []string{"port"}),
		BufferFullEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mm",
			Subsystem: "serial",
			Name:      "buffer_full_events_total",
			Help:      "Advisory buffer-full back-pressure signals raised.",
		}, []string{"port"}),
		ProbeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mm",
			Subsystem: "probe",
			Name:      "duration_seconds",
			Help:      "Wall-clock time spent probing a port.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"port"}),
		ProbeOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mm",
			Subsystem: "probe",
			Name:      "outcome_total",
			Help:      "Final classification reached per probed port.",
		}, []string{"port", "type"}),
	}
	if reg != nil {
		reg.MustRegister(
			c.CommandLatency, c.CommandTimeouts, c.CommandCacheHits,
			c.BufferFullEvents, c.ProbeDuration, c.ProbeOutcome,
		)
	}
	return c
}

func (c *Collector) observeCommandLatency(port string, seconds float64) {
	if c == nil {
		return
	}
	c.CommandLatency.WithLabelValues(port).Observe(seconds)
}

func (c *Collector) incCommandTimeout(port string) {
	if c == nil {
		return
	}
	c.CommandTimeouts.WithLabelValues(port).Inc()
}

func (c *Collector) incCacheHit(port string) {
	if c == nil {
		return
	}
	c.CommandCacheHits.WithLabelValues(port).Inc()
}

func (c *Collector) incBufferFull(port string) {
	if c == nil {
		return
	}
	c.BufferFullEvents.WithLabelValues(port).Inc()
}

func (c *Collector) observeProbeDuration(port string, seconds float64) {
	if c == nil {
		return
	}
	c.ProbeDuration.WithLabelValues(port).Observe(seconds)
}

func (c *Collector) incProbeOutcome(port, typ string) {
	if c == nil {
		return
	}
	c.ProbeOutcome.WithLabelValues(port, typ).Inc()
}

// ObserveCommandLatency, IncCommandTimeout, IncCacheHit, IncBufferFull,
// ObserveProbeDuration and IncProbeOutcome are the exported entry
// points used by the atengine and probe packages.
func (c *Collector) ObserveCommandLatency(port string, seconds float64) { c.observeCommandLatency(port, seconds) }
func (c *Collector) IncCommandTimeout(port string)                      { c.incCommandTimeout(port) }
func (c *Collector) IncCacheHit(port string)                            { c.incCacheHit(port) }
func (c *Collector) IncBufferFull(port string)                          { c.incBufferFull(port) }
func (c *Collector) ObserveProbeDuration(port string, seconds float64)  { c.observeProbeDuration(port, seconds) }
func (c *Collector) IncProbeOutcome(port, typ string)                  { c.incProbeOutcome(port, typ) }
