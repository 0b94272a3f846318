package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Event ---

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent("cart.updated", "sess-1", "cart", "cart-service", map[string]int{"count": 2})
	require.NoError(t, err)

	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, 1, ev.Version)
	assert.Equal(t, time.UTC, ev.Timestamp.Location())

	raw, err := ev.WithCorrelationID("corr-1").WithMetadata("k", "v").Marshal()
	require.NoError(t, err)

	back, err := UnmarshalEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "corr-1", back.CorrelationID)
	assert.Equal(t, "v", back.Metadata["k"])

	var payload map[string]int
	require.NoError(t, back.UnmarshalData(&payload))
	assert.Equal(t, 2, payload["count"])
}

func TestNewEvent_UnmarshalablePayload(t *testing.T) {
	_, err := NewEvent("cart.updated", "s", "cart", "svc", make(chan int))
	assert.Error(t, err)
}

func TestUnmarshalEvent_Rejects(t *testing.T) {
	_, err := UnmarshalEvent([]byte("not json"))
	assert.Error(t, err)

	_, err = UnmarshalEvent([]byte(`{"event_id":"x"}`))
	assert.ErrorContains(t, err, "missing event_type")
}

// --- headerCarrier ---

func TestHeaderCarrier(t *testing.T) {
	headers := []kafka.Header{{Key: "existing", Value: []byte("v1")}}
	c := headerCarrier{headers: &headers}

	assert.Equal(t, "v1", c.Get("existing"))
	assert.Empty(t, c.Get("missing"))

	c.Set("existing", "v2")
	c.Set("new", "n")
	assert.Equal(t, "v2", c.Get("existing"))
	assert.ElementsMatch(t, []string{"existing", "new"}, c.Keys())
	assert.Len(t, headers, 2)
}

// --- Producer ---

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducer_Publish(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	w := &fakeWriter{}
	p := &Producer{writer: w, logger: discardLogger()}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	ev, err := NewEvent("cart.cleared", "sess-9", "cart", "cart-service", struct{}{})
	require.NoError(t, err)
	ev.WithCorrelationID("corr-9")

	require.NoError(t, p.Publish(ctx, "ecommerce.cart.cleared", ev))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "ecommerce.cart.cleared", msg.Topic)
	assert.Equal(t, "sess-9", string(msg.Key))

	headers := msg.Headers
	c := headerCarrier{headers: &headers}
	assert.Equal(t, "cart.cleared", c.Get("event_type"))
	assert.Equal(t, "corr-9", c.Get("correlation_id"))
	assert.Contains(t, c.Get("traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")
}

func TestProducer_PublishError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("broker down")}, logger: discardLogger()}
	ev, _ := NewEvent("cart.updated", "s", "cart", "svc", nil)

	err := p.Publish(context.Background(), "ecommerce.cart.updated", ev)
	assert.ErrorContains(t, err, "broker down")
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	assert.ErrorContains(t, PingBrokers(context.Background(), nil), "no brokers")
}

// --- Consumer ---

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func eventMessage(t *testing.T, offset int64, eventType string) kafka.Message {
	t.Helper()
	ev, err := NewEvent(eventType, "sess", "user", "user-service", map[string]string{"session_id": "sess"})
	require.NoError(t, err)
	raw, err := ev.Marshal()
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: raw}
}

func runConsumer(t *testing.T, r *fakeReader, h Handler, wantCommits int) {
	t.Helper()
	c := newConsumer(r, "ecommerce.user.logged_out", "cart-service", h, discardLogger())
	c.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(r.committedOffsets()) >= wantCommits }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.True(t, r.closed)
}

func TestConsumer_CommitsAfterSuccess(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		eventMessage(t, 1, "user.logged_out"),
		eventMessage(t, 2, "user.logged_out"),
	}}

	var handled int
	var mu sync.Mutex
	runConsumer(t, r, func(context.Context, *Event) error {
		mu.Lock()
		handled++
		mu.Unlock()
		return nil
	}, 2)

	assert.Equal(t, []int64{1, 2}, r.committedOffsets())
	assert.Equal(t, 2, handled)
}

func TestConsumer_SkipsPoisonAndUndecodable(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte("garbage")},
		eventMessage(t, 2, "user.logged_out"),
	}}

	var attempts int
	var mu sync.Mutex
	runConsumer(t, r, func(context.Context, *Event) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("always fails")
	}, 2)

	assert.Equal(t, []int64{1, 2}, r.committedOffsets())
	assert.Equal(t, maxHandlerRetries, attempts)
}

func TestConsumer_RetriesThenSucceeds(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{eventMessage(t, 5, "user.logged_out")}}

	var calls int
	var mu sync.Mutex
	runConsumer(t, r, func(context.Context, *Event) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	}, 1)

	assert.Equal(t, 2, calls)
}

// --- Idempotency ---

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	s := NewMemoryIdempotencyStore(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "ev-1"))

	seen, _ := s.Contains(ctx, "ev-1")
	assert.True(t, seen)

	now = now.Add(2 * time.Minute)
	seen, _ = s.Contains(ctx, "ev-1")
	assert.False(t, seen)
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisIdempotencyStore(client, "cart:processed:", time.Hour)
	ctx := context.Background()

	seen, err := s.Contains(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.Add(ctx, "ev-1"))
	seen, err = s.Contains(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, time.Hour, mr.TTL("cart:processed:ev-1"))
}

func TestIdempotentHandler(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	var calls int
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		calls++
		return nil
	}, discardLogger())

	ev := &Event{EventID: "ev-1", EventType: "user.logged_out"}
	require.NoError(t, h(context.Background(), ev))
	require.NoError(t, h(context.Background(), ev))
	assert.Equal(t, 1, calls)

	require.NoError(t, h(context.Background(), &Event{EventType: "user.logged_out"}))
	assert.Equal(t, 2, calls)
}

func TestIdempotentHandler_FailureNotRecorded(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		return errors.New("nope")
	}, discardLogger())

	ev := &Event{EventID: "ev-2", EventType: "user.logged_out"}
	assert.Error(t, h(context.Background(), ev))

	seen, _ := store.Contains(context.Background(), "ev-2")
	assert.False(t, seen)
}
