package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

const (
	// maxHandlerRetries bounds handler attempts before a message is committed
	// and skipped.
	maxHandlerRetries = 3
	retryBaseBackoff  = 100 * time.Millisecond
)

// Handler processes one decoded event.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic as part of a consumer group and feeds each event
// to a Handler. Offsets are committed after the handler succeeds, or after
// retries are exhausted so a poison message cannot stall the partition.
type Consumer struct {
	reader    messageReader
	topic     string
	group     string
	handler   Handler
	logger    *slog.Logger
	backoff   time.Duration
	closeOnce sync.Once
}

// NewConsumer creates a consumer for cfg.Topic in group cfg.GroupID.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
	return newConsumer(r, cfg.Topic, cfg.GroupID, handler, logger)
}

func newConsumer(r messageReader, topic, group string, handler Handler, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:  r,
		topic:   topic,
		group:   group,
		handler: handler,
		logger:  logger.With(slog.String("topic", topic), slog.String("group", group)),
		backoff: retryBaseBackoff,
	}
}

// Start consumes until ctx is canceled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer func() {
		c.logger.Info("consumer stopping")
		_ = c.Close()
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}

		if !c.process(ctx, msg) {
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
		}
	}
}

// process runs the handler with retries. It returns false only when ctx was
// canceled mid-retry, in which case the message must not be committed.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		consumerFailed.WithLabelValues(c.topic, c.group).Inc()
		c.logger.Error("dropping undecodable message",
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		return true
	}

	headers := msg.Headers
	ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier{headers: &headers})

	var lastErr error
	for attempt := 1; attempt <= maxHandlerRetries; attempt++ {
		if lastErr = c.handler(ctx, event); lastErr == nil {
			consumerProcessed.WithLabelValues(c.topic, c.group).Inc()
			return true
		}

		c.logger.Warn("handler failed",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
		if attempt == maxHandlerRetries {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}

	consumerFailed.WithLabelValues(c.topic, c.group).Inc()
	c.logger.Error("handler failed after all retries, skipping message",
		slog.String("event_type", event.EventType),
		slog.String("event_id", event.EventID),
		slog.Int64("offset", msg.Offset),
		slog.String("error", lastErr.Error()),
	)
	return true
}

// Close closes the reader. It is safe to call more than once.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}
