// Package metrics exposes Prometheus collectors for the import pipeline and
// the RPC surface.
package metrics

import (
	"context"
	"errors"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
)

// Row outcome labels.
const (
	OutcomeEmitted = "emitted"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Import collects statement parsing metrics.
type Import struct {
	FilesParsed       *prometheus.CounterVec
	Rows              *prometheus.CounterVec
	ParseDuration     prometheus.Histogram
	MappingConfidence prometheus.Histogram
	BatchesExpired    prometheus.Counter
}

// NewImport registers the import collectors with reg.
func NewImport(reg prometheus.Registerer) *Import {
	m := &Import{
		FilesParsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statements_files_parsed_total",
				Help: "Statement files parsed, by result",
			},
			[]string{"result"},
		),
		Rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statements_rows_total",
				Help: "Data rows processed, by outcome",
			},
			[]string{"outcome"},
		),
		ParseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "statements_parse_duration_seconds",
			Help:    "Time spent parsing one import request",
			Buckets: prometheus.DefBuckets,
		}),
		MappingConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "statements_mapping_confidence",
			Help:    "Field mapping confidence per parsed file",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		BatchesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statements_batches_expired_total",
			Help: "Import batches expired while pending review",
		}),
	}
	reg.MustRegister(m.FilesParsed, m.Rows, m.ParseDuration, m.MappingConfidence, m.BatchesExpired)
	return m
}

// ObserveFile records the outcome of one parsed file.
func (m *Import) ObserveFile(ok bool, confidence, emitted, skipped, failed int) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.FilesParsed.WithLabelValues(result).Inc()
	m.MappingConfidence.Observe(float64(confidence))
	m.Rows.WithLabelValues(OutcomeEmitted).Add(float64(emitted))
	m.Rows.WithLabelValues(OutcomeSkipped).Add(float64(skipped))
	m.Rows.WithLabelValues(OutcomeFailed).Add(float64(failed))
}

// ObserveParse records the wall time of a parse call.
func (m *Import) ObserveParse(start time.Time) {
	if m == nil {
		return
	}
	m.ParseDuration.Observe(time.Since(start).Seconds())
}

// RPC collects request metrics for connect handlers.
type RPC struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  *prometheus.GaugeVec
}

// NewRPC registers the RPC collectors with reg.
func NewRPC(reg prometheus.Registerer) *RPC {
	m := &RPC{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statements_rpc_requests_total",
				Help: "Total number of RPC requests",
			},
			[]string{"procedure", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "statements_rpc_duration_seconds",
				Help:    "RPC request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"procedure"},
		),
		ActiveRequests: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "statements_rpc_active_requests",
				Help: "Number of active RPC requests",
			},
			[]string{"procedure"},
		),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.ActiveRequests)
	return m
}

// Interceptor returns a unary interceptor that records RPC metrics.
func (m *RPC) Interceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			procedure := req.Spec().Procedure

			m.ActiveRequests.WithLabelValues(procedure).Inc()
			defer m.ActiveRequests.WithLabelValues(procedure).Dec()

			start := time.Now()
			defer func() {
				m.RequestDuration.WithLabelValues(procedure).Observe(time.Since(start).Seconds())
			}()

			resp, err := next(ctx, req)

			code := "ok"
			if err != nil {
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					code = connectErr.Code().String()
				} else {
					code = "unknown"
				}
			}
			m.RequestsTotal.WithLabelValues(procedure, code).Inc()

			return resp, err
		}
	}
}
