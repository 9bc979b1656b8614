// Package metrics provides operational metrics collection.
//
// Metrics are collected via gRPC interceptors and ledger hooks, registered
// on a dedicated Prometheus registry, and exposed over HTTP for scraping.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const namespace = "divination"

// Submission outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeTooShort = "too_short"
	OutcomeTooLong  = "too_long"
	OutcomeError    = "error"
)

// Metrics holds Prometheus collectors for a service.
type Metrics struct {
	Registry         *prometheus.Registry
	Submissions      *prometheus.CounterVec
	LedgerCount      prometheus.Gauge
	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight *prometheus.GaugeVec
}

// New creates collectors for service on a fresh registry, including the Go
// runtime and process collectors.
func New(service string) *Metrics {
	registry := prometheus.NewRegistry()
	register := func(c prometheus.Collector) { registry.MustRegister(c) }

	m := &Metrics{
		Registry: registry,
		Submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Question submissions by outcome",
			},
			[]string{"outcome"},
		),
		LedgerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_count",
			Help:      "Accepted questions recorded in the ledger",
		}),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: service,
				Name:      "requests_total",
				Help:      "Total number of gRPC requests",
			},
			[]string{"method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: service,
				Name:      "request_duration_seconds",
				Help:      "gRPC request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RequestsInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: service,
				Name:      "requests_in_flight",
				Help:      "Number of gRPC requests currently being processed",
			},
			[]string{"method"},
		),
	}
	register(m.Submissions)
	register(m.LedgerCount)
	register(m.RequestCounter)
	register(m.RequestDuration)
	register(m.RequestsInFlight)
	register(collectors.NewGoCollector())
	register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// ObserveSubmission counts one submission outcome.
func (m *Metrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

// SetLedgerCount records the current ledger counter.
func (m *Metrics) SetLedgerCount(count uint64) {
	if m == nil {
		return
	}
	m.LedgerCount.Set(float64(count))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// UnaryServerInterceptor records request count, latency, and in-flight calls.
func UnaryServerInterceptor(m *Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		done := m.track(info.FullMethod)
		resp, err := handler(ctx, req)
		done(err)
		return resp, err
	}
}

// StreamServerInterceptor records request count, latency, and in-flight streams.
func StreamServerInterceptor(m *Metrics) grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		done := m.track(info.FullMethod)
		err := handler(srv, stream)
		done(err)
		return err
	}
}

func (m *Metrics) track(method string) func(error) {
	if m == nil {
		return func(error) {}
	}
	m.RequestsInFlight.WithLabelValues(method).Inc()
	start := time.Now()
	return func(err error) {
		m.RequestsInFlight.WithLabelValues(method).Dec()
		m.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		statusCode := "ok"
		if err != nil {
			statusCode = status.Code(err).String()
		}
		m.RequestCounter.WithLabelValues(method, statusCode).Inc()
	}
}
