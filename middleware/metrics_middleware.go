package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rpc-stack/message"
	"rpc-stack/rpcerr"
)

// Metrics groups the collectors fed by MetricsMiddleware.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewMetrics registers the pipeline collectors on reg. Collectors already
// registered under the same names are reused.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	calls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "Total RPC calls by method and outcome",
		},
		[]string{"method", "outcome"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_call_duration_seconds",
			Help:      "RPC call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rpc_calls_in_flight",
			Help:      "RPC calls currently in flight",
		},
	)

	m := &Metrics{}
	var err error
	if m.calls, err = register(reg, calls); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if m.inFlight, err = register(reg, inFlight); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// MetricsMiddleware records every call passing through it.
func MetricsMiddleware(m *Metrics) Layer {
	return func(next Stage) Stage {
		return &metricsStage{wrapped: wrapped{next}, m: m}
	}
}

type metricsStage struct {
	wrapped
	m *Metrics
}

func (s *metricsStage) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	s.m.inFlight.Inc()
	defer s.m.inFlight.Dec()

	start := time.Now()
	resp, err := s.next.Call(ctx, req)
	s.m.duration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = rpcerr.KindOf(err).String()
	}
	s.m.calls.WithLabelValues(req.Method, outcome).Inc()
	return resp, err
}
