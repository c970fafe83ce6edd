// Package metrics holds the Prometheus metrics for a bridge.
package metrics

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wagiedev/workerbridge/internal/errors"
)

// Outcome labels for workerbridge_requests_total.
const (
	OutcomeOK                = "ok"
	OutcomeTimeout           = "timeout"
	OutcomeBackpressure      = "backpressure"
	OutcomeNotRunning        = "not_running"
	OutcomeProtocolViolation = "protocol_violation"
	OutcomeProcessExited     = "process_exited"
	OutcomeWriteError        = "write_error"
	OutcomeInvalidPayload    = "invalid_payload"
	OutcomeCancelled         = "cancelled"
	OutcomeError             = "error"
)

// Orphan reasons for workerbridge_orphan_lines_total.
const (
	OrphanUnmatched      = "unmatched"
	OrphanUnattributable = "unattributable"
)

// Metrics holds Prometheus metrics for one bridge.
//
// Metrics:
//   - workerbridge_requests_total{outcome} - Count of finished requests
//   - workerbridge_request_duration_seconds - Histogram of answered request latency
//   - workerbridge_pending_requests - Current number of requests awaiting a response
//   - workerbridge_worker_restarts_total - Count of automatic restarts
//   - workerbridge_spawn_failures_total - Count of failed spawn attempts
//   - workerbridge_orphan_lines_total{reason} - Count of output lines no request claimed
//   - workerbridge_worker_up - 1 while a worker is ready, else 0
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	Pending         prometheus.Gauge
	RestartsTotal   prometheus.Counter
	SpawnFailures   prometheus.Counter
	OrphanLines     *prometheus.CounterVec
	WorkerUp        prometheus.Gauge
}

// New creates the bridge metrics and registers them with reg.
// A nil reg leaves the metrics unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workerbridge_requests_total",
				Help: "Total number of worker requests by outcome",
			},
			[]string{"outcome"},
		),

		RequestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "workerbridge_request_duration_seconds",
				Help:    "Time from submission to response for answered requests",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
			},
		),

		Pending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "workerbridge_pending_requests",
				Help: "Current number of requests awaiting a worker response",
			},
		),

		RestartsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "workerbridge_worker_restarts_total",
				Help: "Total number of automatic worker restarts",
			},
		),

		SpawnFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "workerbridge_spawn_failures_total",
				Help: "Total number of failed worker spawn attempts",
			},
		),

		OrphanLines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workerbridge_orphan_lines_total",
				Help: "Total number of worker output lines not matched to a request",
			},
			[]string{"reason"},
		),

		WorkerUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "workerbridge_worker_up",
				Help: "Whether a worker process is ready (1) or not (0)",
			},
		),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{
		m.RequestsTotal,
		m.RequestDuration,
		m.Pending,
		m.RestartsTotal,
		m.SpawnFailures,
		m.OrphanLines,
		m.WorkerUp,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordRequest records a finished request. Latency is observed only for
// answered requests.
func (m *Metrics) RecordRequest(err error, latency time.Duration) {
	m.RequestsTotal.WithLabelValues(Outcome(err)).Inc()

	if err == nil {
		m.RequestDuration.Observe(latency.Seconds())
	}
}

// RecordOrphan records an output line that no request claimed.
func (m *Metrics) RecordOrphan(reason string) {
	m.OrphanLines.WithLabelValues(reason).Inc()
}

// SetPending updates the pending requests gauge.
func (m *Metrics) SetPending(n int) {
	m.Pending.Set(float64(n))
}

// SetWorkerUp updates the worker availability gauge.
func (m *Metrics) SetWorkerUp(up bool) {
	if up {
		m.WorkerUp.Set(1)
	} else {
		m.WorkerUp.Set(0)
	}
}

// Outcome maps a request error to its outcome label.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}

	if _, ok := stderrors.AsType[*errors.ProtocolViolationError](err); ok {
		return OutcomeProtocolViolation
	}

	if _, ok := stderrors.AsType[*errors.ProcessExitedError](err); ok {
		return OutcomeProcessExited
	}

	if _, ok := stderrors.AsType[*errors.PayloadError](err); ok {
		return OutcomeInvalidPayload
	}

	if _, ok := stderrors.AsType[*errors.WriteError](err); ok {
		return OutcomeWriteError
	}

	switch {
	case stderrors.Is(err, errors.ErrRequestTimeout):
		return OutcomeTimeout
	case stderrors.Is(err, errors.ErrBackpressure):
		return OutcomeBackpressure
	case stderrors.Is(err, errors.ErrNotRunning):
		return OutcomeNotRunning
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	default:
		return OutcomeError
	}
}
