package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the relay
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// RemoteRequests counts remote API requests by resource path and outcome
	RemoteRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "remote_requests_total", Help: "Remote API requests by path and outcome."},
		[]string{"path", "outcome"},
	)
	// TokenRenewals counts token renewals by outcome
	TokenRenewals = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "remote_token_renewals_total", Help: "Remote API token renewals by outcome."},
		[]string{"outcome"},
	)

	// PollCycles counts poll cycles by outcome (baseline, ok, failed)
	PollCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "poll_cycles_total", Help: "Poll cycles by outcome."},
		[]string{"outcome"},
	)
	// ChangeEvents counts emitted change events by kind
	ChangeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "change_events_total", Help: "Order change events by kind."},
		[]string{"kind"},
	)
	// SnapshotEntries is the number of tracked orders
	SnapshotEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "snapshot_entries", Help: "Orders tracked in the snapshot store."},
	)

	// NotificationDeliveries counts notification deliveries by channel kind and status
	NotificationDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "notification_deliveries_total", Help: "Notification deliveries by channel kind and status."},
		[]string{"kind", "status"},
	)
	// NotificationLatency tracks notification delivery latencies in milliseconds
	NotificationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "notification_delivery_latency_ms", Help: "Notification delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"kind", "status"},
	)
)

// RegisterDefault registers collectors to the relay registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(RemoteRequests)
		Registry.MustRegister(TokenRenewals)
		Registry.MustRegister(PollCycles)
		Registry.MustRegister(ChangeEvents)
		Registry.MustRegister(SnapshotEntries)
		Registry.MustRegister(NotificationDeliveries)
		Registry.MustRegister(NotificationLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
