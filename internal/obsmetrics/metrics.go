package obsmetrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the gateway's self-observability instruments, registered
// against the default Prometheus registry so they show up on the same
// /metrics endpoint as the Go runtime collectors promhttp.Handler()
// already exposes.
type Metrics struct {
	AlertsReceived  prometheus.Counter
	DedupSuppressed prometheus.Counter
	Unrouted        prometheus.Counter
	Sends           *prometheus.CounterVec
	RenderFailures  prometheus.Counter
	ImageOutcomes   *prometheus.CounterVec
}

// New constructs and registers a Metrics set. Calling it more than once
// against the same registerer panics (AlreadyRegisteredError), matching
// promauto's own behavior; callers should build exactly one Metrics per
// process.
func New() *Metrics {
	m := &Metrics{
		AlertsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertgate_alerts_received_total",
			Help: "Total number of canonical alerts produced by the normalizer.",
		}),
		DedupSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertgate_dedup_suppressed_total",
			Help: "Total number of alerts suppressed by the build-system dedup cache.",
		}),
		Unrouted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertgate_unrouted_total",
			Help: "Total number of alerts that matched no routing rule.",
		}),
		Sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertgate_channel_sends_total",
			Help: "Total number of channel delivery attempts by outcome.",
		}, []string{"channel_type", "status"}),
		RenderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertgate_render_failures_total",
			Help: "Total number of template render failures.",
		}),
		ImageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertgate_image_outcomes_total",
			Help: "Total number of image pipeline attempts by outcome (ok|empty|query_failed|invalid_image|timeout).",
		}, []string{"outcome"}),
	}

	prometheus.MustRegister(m.AlertsReceived, m.DedupSuppressed, m.Unrouted, m.Sends, m.RenderFailures, m.ImageOutcomes)
	return m
}
