package upstream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_adapter_requests_total",
		Help: "Upstream adapter calls, counted once per logical call regardless of retries.",
	}, []string{"adapter"})

	failuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_adapter_failures_total",
		Help: "Terminal upstream adapter failures by classified error kind.",
	}, []string{"adapter", "kind"})

	callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_adapter_call_duration_seconds",
		Help:    "Duration of upstream adapter calls including retries and backoff.",
		Buckets: prometheus.DefBuckets,
	}, []string{"adapter"})
)

// Metric accessors for tests and dashboards wiring.

func RequestsTotal() *prometheus.CounterVec { return requestsTotal }
func FailuresTotal() *prometheus.CounterVec { return failuresTotal }
func CallDuration() *prometheus.HistogramVec { return callDuration }
