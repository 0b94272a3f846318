package session

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mahmudulhsn/shopping-cart/internal/session"

var (
	storeOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_session_store_operations_total",
			Help: "Total number of session store operations",
		},
		[]string{"backend", "operation", "result"},
	)

	storeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cart_session_store_operation_duration_seconds",
			Help:    "Duration of session store operations in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
		[]string{"backend", "operation"},
	)
)

// Instrument wraps b so every store operation is counted, timed and traced.
func Instrument(b Backend) Backend {
	return &instrumented{Backend: b, tracer: otel.Tracer(tracerName)}
}

type instrumented struct {
	Backend
	tracer trace.Tracer
}

func (i *instrumented) Open(sessionID string) Store {
	return &instrumentedStore{inner: i.Backend.Open(sessionID), backend: i.Backend.Name(), tracer: i.tracer}
}

type instrumentedStore struct {
	inner   Store
	backend string
	tracer  trace.Tracer
}

func (s *instrumentedStore) observe(ctx context.Context, op, key string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "session."+op,
		trace.WithAttributes(
			attribute.String("session.backend", s.backend),
			attribute.String("session.key", key),
		),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	storeDuration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	storeOperations.WithLabelValues(s.backend, op, result).Inc()
	return err
}

func (s *instrumentedStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	var found bool
	err := s.observe(ctx, "get", key, func(ctx context.Context) error {
		var err error
		found, err = s.inner.Get(ctx, key, dst)
		return err
	})
	return found, err
}

func (s *instrumentedStore) Put(ctx context.Context, key string, value any) error {
	return s.observe(ctx, "put", key, func(ctx context.Context) error {
		return s.inner.Put(ctx, key, value)
	})
}

func (s *instrumentedStore) Forget(ctx context.Context, key string) error {
	return s.observe(ctx, "forget", key, func(ctx context.Context) error {
		return s.inner.Forget(ctx, key)
	})
}
