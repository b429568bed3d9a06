package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Broker metrics
	ServersRegistered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chirp_servers_registered",
			Help: "Number of app servers currently in the broker registry",
		},
	)

	HeartbeatsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chirp_heartbeats_received_total",
			Help: "Total heartbeats received from app servers",
		},
	)

	ServerEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chirp_server_evictions_total",
			Help: "Total app servers evicted after missing heartbeats",
		},
	)

	ControlRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chirp_control_requests_total",
			Help: "Total control channel requests by action",
		},
		[]string{"action"},
	)

	PublicationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chirp_publications_total",
			Help: "Total notification bus publications by kind",
		},
		[]string{"kind"},
	)

	// App server metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chirp_requests_total",
			Help: "Total client requests handled by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chirp_request_duration_seconds",
			Help:    "Client request handling duration by action",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	LocalClockSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chirp_local_clock_seconds",
			Help: "Current value of the app server's logical clock",
		},
	)

	// Data store metrics
	StoreRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chirp_store_requests_total",
			Help: "Total data store requests by action",
		},
		[]string{"action"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ServersRegistered)
	prometheus.MustRegister(HeartbeatsTotal)
	prometheus.MustRegister(ServerEvictionsTotal)
	prometheus.MustRegister(ControlRequestsTotal)
	prometheus.MustRegister(PublicationsTotal)
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(LocalClockSeconds)
	prometheus.MustRegister(StoreRequestsTotal)
}

// Handler returns the HTTP handler the broker mounts at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer times one request from dispatch to reply. Every histogram in
// this package is labelled by action, so the vec form is the only one.
type Timer struct {
	start time.Time
}

// NewTimer starts timing at the call site.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDurationVec records the elapsed seconds under the given labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}
