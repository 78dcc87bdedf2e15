package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "parley"

var (
	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_started_total",
		Help:      "Total number of sessions started",
	})
	sessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_ended_total",
		Help:      "Total number of sessions ended",
	}, []string{"status"})
	sessionsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_running",
		Help:      "Number of sessions currently running",
	})

	roundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rounds_total",
		Help:      "Total number of completed rounds",
	}, []string{"topology"})
	roundDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "round_duration_seconds",
		Help:      "Round duration in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"topology"})

	dispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatches_total",
		Help:      "Total number of model dispatches",
	}, []string{"model", "outcome"})
	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dispatch_duration_seconds",
		Help:      "Model dispatch duration in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"model"})
	tokensUsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_used_total",
		Help:      "Total number of tokens used",
	}, []string{"model", "type"}) // type: prompt, completion
	dispatchCost = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_cost_total",
		Help:      "Total dispatch cost in USD",
	}, []string{"model"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// SessionStarted records a session entering the running state.
func SessionStarted() {
	sessionsStarted.Inc()
	sessionsRunning.Inc()
}

// SessionEnded records a terminal transition.
func SessionEnded(status string) {
	sessionsEnded.WithLabelValues(status).Inc()
	sessionsRunning.Dec()
}

// RoundObserved records one completed round.
func RoundObserved(topology string, duration time.Duration) {
	roundsTotal.WithLabelValues(topology).Inc()
	roundDuration.WithLabelValues(topology).Observe(duration.Seconds())
}

// DispatchObserved records one model dispatch. outcome is "ok" or the
// invocation error kind.
func DispatchObserved(model, outcome string, duration time.Duration, tokensIn, tokensOut int, cost float64) {
	dispatchesTotal.WithLabelValues(model, outcome).Inc()
	dispatchDuration.WithLabelValues(model).Observe(duration.Seconds())
	tokensUsed.WithLabelValues(model, "prompt").Add(float64(tokensIn))
	tokensUsed.WithLabelValues(model, "completion").Add(float64(tokensOut))
	dispatchCost.WithLabelValues(model).Add(cost)
}

// RecordHTTPRequest records one API request with its status class.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// statusClass buckets an HTTP status code into its class.
func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
