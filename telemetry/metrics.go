// CLAUDE:SUMMARY Prometheus counters for upstream calls, cooldown rejections, normalizer output, webhooks and endpoint calls; /metrics handler.
package telemetry

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	UpstreamCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jurimon_upstream_calls_total", Help: "Backend calls by operation and outcome",
	}, []string{"op", "outcome"})
	UpstreamLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "jurimon_upstream_call_seconds", Help: "Backend call latency", Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	CooldownRejects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jurimon_cooldown_rejects_total", Help: "Actions refused by the cooldown window",
	}, []string{"scope"})
	NormalizedItems = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jurimon_normalized_items_total", Help: "Timeline events produced by the normalizer",
	})
	WebhookDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jurimon_webhook_deliveries_total", Help: "Webhook deliveries by verification result",
	}, []string{"verified"})
	PublicationsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jurimon_publications_created_total", Help: "Publications added to the inbox",
	})
	EndpointCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jurimon_endpoint_calls_total", Help: "Endpoint calls by name, transport and outcome",
	}, []string{"endpoint", "transport", "outcome"})
)

// Register adds the collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			UpstreamCalls,
			UpstreamLatency,
			CooldownRejects,
			NormalizedItems,
			WebhookDeliveries,
			PublicationsCreated,
			EndpointCalls,
		)
	})
}

// Handler exposes /metrics with the singleton registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

// ObserveUpstream records one settled backend call. Its signature matches the
// client observer hook.
func ObserveUpstream(op string, status int, err error, d time.Duration) {
	outcome := "ok"
	switch {
	case err != nil && status > 0:
		outcome = strconv.Itoa(status)
	case err != nil:
		outcome = "error"
	}
	UpstreamCalls.WithLabelValues(op, outcome).Inc()
	UpstreamLatency.WithLabelValues(op).Observe(d.Seconds())
}
