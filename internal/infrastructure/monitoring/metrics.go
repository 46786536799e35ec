package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/turtacn/cakeys/internal/domain/service"
	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
)

const defaultNamespace = "cakeys"

// Metrics manages the Prometheus metrics of key backend operations.
type Metrics struct {
	KeyOperations       *prometheus.CounterVec
	KeyOperationLatency *prometheus.HistogramVec
	KeysCreated         *prometheus.CounterVec
	UsabilityProbes     *prometheus.CounterVec
}

var _ service.Metrics = (*Metrics)(nil)

// NewMetrics creates the metrics and registers them with reg. A nil reg
// registers with the default registry.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = defaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		KeyOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "key_operations_total",
				Help:      "Total number of key backend operations.",
			},
			[]string{"backend", "operation", "result"},
		),
		KeyOperationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "key_operation_duration_seconds",
				Help:      "Latency of key backend operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend", "operation"},
		),
		KeysCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "keys_created_total",
				Help:      "Total number of private keys generated or stored.",
			},
			[]string{"backend", "key_type"},
		),
		UsabilityProbes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usability_probes_total",
				Help:      "Total number of key usability probes by outcome.",
			},
			[]string{"backend", "usable"},
		),
	}
}

// RecordKeyOperation records one backend call. result is "ok" or the error code.
func (m *Metrics) RecordKeyOperation(backend, operation string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = string(errors.CodeOf(err))
	}
	m.KeyOperations.WithLabelValues(backend, operation, result).Inc()
	m.KeyOperationLatency.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordKeyCreated counts a generated or imported key.
func (m *Metrics) RecordKeyCreated(backend string, keyType constants.KeyType) {
	m.KeysCreated.WithLabelValues(backend, keyType.String()).Inc()
}

// RecordUsabilityProbe counts an is-usable probe outcome.
func (m *Metrics) RecordUsabilityProbe(backend string, usable bool) {
	label := "false"
	if usable {
		label = "true"
	}
	m.UsabilityProbes.WithLabelValues(backend, label).Inc()
}

// PushMetrics pushes everything gathered by g to a Prometheus Pushgateway,
// replacing the previous push of job.
func PushMetrics(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	if job == "" {
		job = defaultNamespace
	}
	return push.New(url, job).Gatherer(g).PushContext(ctx)
}

//Personal.AI order the ending
