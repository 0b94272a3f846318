package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahmudulhsn/shopping-cart/internal/domain"
	pkgkafka "github.com/mahmudulhsn/shopping-cart/pkg/kafka"
	"github.com/mahmudulhsn/shopping-cart/pkg/logger"
)

type published struct {
	topic string
	event *pkgkafka.Event
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, event *pkgkafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{topic: topic, event: event})
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleSummary() *domain.Summary {
	return &domain.Summary{
		Items: []domain.LineItem{
			{RowID: "r1", ID: "P1", Name: "Widget", Price: 12, Quantity: 5, Subtotal: 60},
		},
		ItemCount: 5,
		Totals: domain.Totals{
			Subtotal:     60,
			Discount:     10,
			DiscountType: domain.DiscountFix,
			Total:        50,
		},
	}
}

func TestProducer_PublishCartUpdated(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, discardLogger())
	ctx := logger.WithCorrelationID(context.Background(), "corr-1")

	require.NoError(t, p.PublishCartUpdated(ctx, "sess-1", sampleSummary()))
	require.Len(t, pub.sent, 1)

	got := pub.sent[0]
	assert.Equal(t, TopicCartUpdated, got.topic)
	assert.Equal(t, TopicCartUpdated, got.event.EventType)
	assert.Equal(t, "sess-1", got.event.AggregateID)
	assert.Equal(t, AggregateTypeCart, got.event.AggregateType)
	assert.Equal(t, SourceCartService, got.event.Source)
	assert.Equal(t, "corr-1", got.event.CorrelationID)

	var data CartUpdatedData
	require.NoError(t, got.event.UnmarshalData(&data))
	assert.Equal(t, "sess-1", data.SessionID)
	assert.Equal(t, 5.0, data.ItemCount)
	assert.Equal(t, 50.0, data.Total)
	require.Len(t, data.Items, 1)
	assert.Equal(t, "r1", data.Items[0].RowID)
}

func TestProducer_PublishDiscountApplied(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, discardLogger())

	require.NoError(t, p.PublishDiscountApplied(context.Background(), "sess-1", 10, sampleSummary()))
	require.Len(t, pub.sent, 1)
	assert.Equal(t, TopicCartDiscountApplied, pub.sent[0].topic)
	assert.Empty(t, pub.sent[0].event.CorrelationID)

	var data DiscountAppliedData
	require.NoError(t, pub.sent[0].event.UnmarshalData(&data))
	assert.Equal(t, domain.DiscountFix, data.DiscountType)
	assert.Equal(t, 10.0, data.Amount)
	assert.Equal(t, 50.0, data.Total)
}

func TestProducer_PublishCartCleared_Error(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	p := NewProducer(pub, discardLogger())

	err := p.PublishCartCleared(context.Background(), "sess-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), TopicCartCleared)
}

type recordingLogout struct {
	sessions []string
	err      error
}

func (r *recordingLogout) HandleLogout(_ context.Context, sessionID string) error {
	r.sessions = append(r.sessions, sessionID)
	return r.err
}

func logoutEvent(t *testing.T, data any) *pkgkafka.Event {
	t.Helper()
	ev, err := pkgkafka.NewEvent(TopicUserLoggedOut, "user-1", "user", "user-service", data)
	require.NoError(t, err)
	return ev
}

func TestLogoutHandler(t *testing.T) {
	rec := &recordingLogout{}
	h := NewLogoutHandler(rec, discardLogger())

	require.NoError(t, h(context.Background(), logoutEvent(t, UserLoggedOutData{SessionID: "sess-1", UserID: "user-1"})))
	assert.Equal(t, []string{"sess-1"}, rec.sessions)
}

func TestLogoutHandler_MissingSessionIsDropped(t *testing.T) {
	rec := &recordingLogout{}
	h := NewLogoutHandler(rec, discardLogger())

	require.NoError(t, h(context.Background(), logoutEvent(t, UserLoggedOutData{UserID: "user-1"})))
	assert.Empty(t, rec.sessions)
}

func TestLogoutHandler_Errors(t *testing.T) {
	rec := &recordingLogout{err: errors.New("store down")}
	h := NewLogoutHandler(rec, discardLogger())

	err := h(context.Background(), logoutEvent(t, UserLoggedOutData{SessionID: "sess-1"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, rec.err)

	err = h(context.Background(), logoutEvent(t, "not an object"))
	require.Error(t, err)
}
