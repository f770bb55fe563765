package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "daq"

// Session outcomes used as the "outcome" label of SessionsTotal.
const (
	OutcomeCompleted = "completed"
	OutcomeStopped   = "stopped"
	OutcomeAborted   = "aborted"
)

var (
	// Reader metrics
	BurstsRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bursts_read_total",
			Help:      "Bursts successfully read from the device",
		},
		[]string{"channel"},
	)
	ReadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_failures_total",
			Help:      "Device reads that timed out or returned no data",
		},
		[]string{"channel"},
	)
	DeviceFaults = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_faults_total",
			Help:      "Device faults that aborted a session",
		},
	)

	// Aggregator metrics
	PointsAggregated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_aggregated_total",
			Help:      "Bursts reduced to points",
		},
	)
	RecordAppendErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_append_errors_total",
			Help:      "Points rejected by the measurement record",
		},
	)

	// Deliverer metrics
	PointsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_delivered_total",
			Help:      "Points published to the display sink",
		},
	)
	DeliveryErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_errors_total",
			Help:      "Batches the display sink failed to accept",
		},
	)

	// Session metrics
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Finished sessions by outcome",
		},
		[]string{"outcome"},
	)
	SessionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Current session state (0 idle, 1 running, 2 stop requested, 3 draining, 4 finished)",
		},
	)
	DrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "drain_duration_seconds",
			Help:      "Time from stop request to record finalization",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
