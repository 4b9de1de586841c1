// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Simulation metrics
	SimulationsTotal   *prometheus.CounterVec
	TradesSimulated    prometheus.Counter
	SimulationDuration prometheus.Histogram

	// Comparison metrics
	ComparisonsTotal   prometheus.Counter
	StrategyFailures   *prometheus.CounterVec
	ComparisonDuration prometheus.Histogram

	// Walk-forward metrics
	SweepsTotal     *prometheus.CounterVec
	WindowsComputed prometheus.Counter
	SweepDuration   prometheus.Histogram

	// Monitor metrics
	MonitorCycles        prometheus.Counter
	MonitorCycleDuration prometheus.Histogram
	AlertsFired          *prometheus.CounterVec
	PauseRecommendations prometheus.Counter
	PairsMonitored       prometheus.Gauge

	// Persistence metrics
	StoreWriteErrors  *prometheus.CounterVec
	AlertPublishDrops *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "strategy_lab"
	}

	return &Metrics{
		SimulationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "runs_total",
			Help:      "Total number of simulation runs by strategy and status",
		}, []string{"strategy", "status"}),
		TradesSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "trades_total",
			Help:      "Total number of closed trades produced by simulations",
		}),
		SimulationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "run_duration_seconds",
			Help:      "Simulation run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		ComparisonsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compare",
			Name:      "runs_total",
			Help:      "Total number of strategy comparisons",
		}),
		StrategyFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compare",
			Name:      "strategy_failures_total",
			Help:      "Total number of strategies excluded from ranking by failure",
		}, []string{"strategy"}),
		ComparisonDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "compare",
			Name:      "run_duration_seconds",
			Help:      "Comparison run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		SweepsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walkforward",
			Name:      "sweeps_total",
			Help:      "Total number of walk-forward sweeps by status",
		}, []string{"status"}),
		WindowsComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walkforward",
			Name:      "windows_total",
			Help:      "Total number of computed walk-forward windows",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "walkforward",
			Name:      "sweep_duration_seconds",
			Help:      "Walk-forward sweep duration in seconds",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
		}),

		MonitorCycles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "cycles_total",
			Help:      "Total number of monitoring cycles",
		}),
		MonitorCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "cycle_duration_seconds",
			Help:      "Monitoring cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		AlertsFired: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "alerts_total",
			Help:      "Total number of alerts fired by type and severity",
		}, []string{"type", "severity"}),
		PauseRecommendations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "pause_recommendations_total",
			Help:      "Total number of pause recommendations issued",
		}),
		PairsMonitored: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "pairs",
			Help:      "Number of (strategy, instrument) pairs currently tracked",
		}),

		StoreWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "write_errors_total",
			Help:      "Total number of failed store writes by store",
		}, []string{"store"}),
		AlertPublishDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "publish_drops_total",
			Help:      "Total number of alert publishes dropped by sink",
		}, []string{"sink"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSimulation records one simulation run.
func RecordSimulation(strategy, status string, trades int, seconds float64) {
	DefaultMetrics.SimulationsTotal.WithLabelValues(strategy, status).Inc()
	DefaultMetrics.TradesSimulated.Add(float64(trades))
	DefaultMetrics.SimulationDuration.Observe(seconds)
}

// RecordComparison records one comparison run.
func RecordComparison(seconds float64, failedStrategies []string) {
	DefaultMetrics.ComparisonsTotal.Inc()
	DefaultMetrics.ComparisonDuration.Observe(seconds)
	for _, s := range failedStrategies {
		DefaultMetrics.StrategyFailures.WithLabelValues(s).Inc()
	}
}

// RecordSweep records one walk-forward sweep.
func RecordSweep(status string, windows int, seconds float64) {
	DefaultMetrics.SweepsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.WindowsComputed.Add(float64(windows))
	DefaultMetrics.SweepDuration.Observe(seconds)
}

// RecordMonitorCycle records one monitoring cycle over all pairs.
func RecordMonitorCycle(pairs int, seconds float64) {
	DefaultMetrics.MonitorCycles.Inc()
	DefaultMetrics.MonitorCycleDuration.Observe(seconds)
	DefaultMetrics.PairsMonitored.Set(float64(pairs))
}

// RecordAlert records one fired alert.
func RecordAlert(alertType, severity string) {
	DefaultMetrics.AlertsFired.WithLabelValues(alertType, severity).Inc()
}

// RecordPauseRecommendation increments the pause recommendation counter.
func RecordPauseRecommendation() {
	DefaultMetrics.PauseRecommendations.Inc()
}

// RecordStoreWriteError records a failed store write.
func RecordStoreWriteError(store string) {
	DefaultMetrics.StoreWriteErrors.WithLabelValues(store).Inc()
}

// RecordPublishDrop records an alert publish dropped by a sink.
func RecordPublishDrop(sink string) {
	DefaultMetrics.AlertPublishDrops.WithLabelValues(sink).Inc()
}
