package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics wraps prometheus collectors for reconciliation runs
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Counters
	stepsTotal    *prometheus.CounterVec
	gatewaysTotal *prometheus.CounterVec
	remoteErrors  *prometheus.CounterVec

	// Histograms
	gatewayDuration *prometheus.HistogramVec
}

// Default histogram buckets for gateway reconciliation duration (in milliseconds)
var defaultBuckets = []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		registry: registry,

		stepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Total reconciliation steps by step and outcome",
			},
			[]string{"step", "outcome"},
		),

		gatewaysTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateways_total",
				Help:      "Total gateways reconciled by protocol and final state",
			},
			[]string{"protocol", "state", "status"},
		),

		remoteErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_errors_total",
				Help:      "Control-plane errors by operation and kind",
			},
			[]string{"operation", "kind"},
		),

		gatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_duration_milliseconds",
				Help:      "Duration of one gateway reconciliation in milliseconds",
				Buckets:   buckets,
			},
			[]string{"protocol"},
		),
	}

	registry.MustRegister(
		pm.stepsTotal,
		pm.gatewaysTotal,
		pm.remoteErrors,
		pm.gatewayDuration,
	)

	promMetrics = pm
}

// RecordPrometheusStep records one reconciliation step outcome
func RecordPrometheusStep(step, outcome string) {
	if promMetrics == nil {
		return
	}
	promMetrics.stepsTotal.WithLabelValues(step, outcome).Inc()
}

// RecordPrometheusGateway records the final state of one gateway
func RecordPrometheusGateway(protocol, state string, durationMs int64, success bool) {
	if promMetrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	promMetrics.gatewaysTotal.WithLabelValues(protocol, state, status).Inc()
	promMetrics.gatewayDuration.WithLabelValues(protocol).Observe(float64(durationMs))
}

// RecordRemoteError records a control-plane error that was not absorbed as success
func RecordRemoteError(operation, kind string) {
	if promMetrics == nil {
		return
	}
	promMetrics.remoteErrors.WithLabelValues(operation, kind).Inc()
}

// PrometheusRegistry returns the prometheus registry (for custom collectors)
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}

// WriteTextfile writes the registry in text exposition format, for the
// node_exporter textfile collector.
func WriteTextfile(path string) error {
	if promMetrics == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, promMetrics.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
