package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/mahmudulhsn/shopping-cart/internal/session"
	"github.com/mahmudulhsn/shopping-cart/internal/session/memory"
)

type failingBackend struct{}

func (failingBackend) Name() string             { return "failing" }
func (failingBackend) Open(string) session.Store { return failingStore{} }

type failingStore struct{}

func (failingStore) Get(context.Context, string, any) (bool, error) { return false, errors.New("down") }
func (failingStore) Put(context.Context, string, any) error         { return errors.New("down") }
func (failingStore) Forget(context.Context, string) error           { return errors.New("down") }

func TestInstrument_DelegatesAndKeepsName(t *testing.T) {
	b := session.Instrument(memory.New())
	assert.Equal(t, "memory", b.Name())

	ctx := context.Background()
	s := b.Open("sess-1")
	require.NoError(t, s.Put(ctx, "k", "v"))

	var v string
	found, err := s.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)
	require.NoError(t, s.Forget(ctx, "k"))
}

func TestInstrument_RecordsSpansAndErrors(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	s := session.Instrument(failingBackend{}).Open("sess-1")
	err := s.Put(context.Background(), "root.total", 1)
	require.EqualError(t, err, "down")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "session.put", spans[0].Name)
	assert.NotEmpty(t, spans[0].Events)
}

// counterValue reads cart_session_store_operations_total for one label set
// from the default registry.
func counterValue(t *testing.T, backend, op, result string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != "cart_session_store_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["backend"] == backend && labels["operation"] == op && labels["result"] == result {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestInstrument_CountsOperations(t *testing.T) {
	s := session.Instrument(failingBackend{}).Open("sess-1")
	before := counterValue(t, "failing", "get", "error")

	_, _ = s.Get(context.Background(), "k", new(int))
	_, _ = s.Get(context.Background(), "k", new(int))

	assert.Equal(t, before+2, counterValue(t, "failing", "get", "error"))
}
