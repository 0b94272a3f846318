package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracer_Disabled(t *testing.T) {
	prev := otel.GetTracerProvider()

	shutdown, err := InitTracer(context.Background(), DefaultConfig("cart-service"))
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	assert.Equal(t, prev, otel.GetTracerProvider())
	assert.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, otel.GetTextMapPropagator().Fields())
}

func TestInitTracer_Enabled(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cfg := DefaultConfig("cart-service")
	cfg.Enabled = true
	cfg.OTLPEndpoint = "127.0.0.1:1"

	shutdown, err := InitTracer(context.Background(), cfg)
	require.NoError(t, err)

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok, "global provider should be the SDK provider")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "ParentBased{root:AlwaysOnSampler"},
		{2, "ParentBased{root:AlwaysOnSampler"},
		{0, "ParentBased{root:AlwaysOffSampler"},
		{-1, "ParentBased{root:AlwaysOffSampler"},
		{0.5, "ParentBased{root:TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		assert.Contains(t, Sampler(tt.rate).Description(), tt.want, "rate %v", tt.rate)
	}
}

func TestTracer_ReturnsNamedTracer(t *testing.T) {
	assert.NotNil(t, Tracer("cart"))
}
