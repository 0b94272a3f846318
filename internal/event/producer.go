package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mahmudulhsn/shopping-cart/internal/domain"
	pkgkafka "github.com/mahmudulhsn/shopping-cart/pkg/kafka"
	"github.com/mahmudulhsn/shopping-cart/pkg/logger"
)

// Kafka topic constants for cart domain events.
const (
	TopicCartUpdated         = "ecommerce.cart.updated"
	TopicCartCleared         = "ecommerce.cart.cleared"
	TopicCartDiscountApplied = "ecommerce.cart.discount_applied"
)

// Aggregate type constant.
const AggregateTypeCart = "cart"

// Source identifier for events originating from the cart service.
const SourceCartService = "cart-service"

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	SessionID string         `json:"session_id"`
	Items     []CartItemData `json:"items"`
	ItemCount float64        `json:"item_count"`
	Subtotal  float64        `json:"subtotal"`
	Discount  float64        `json:"discount"`
	Total     float64        `json:"total"`
}

// CartItemData is the item payload within cart events.
type CartItemData struct {
	RowID    string  `json:"row_id"`
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Subtotal float64 `json:"subtotal"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	SessionID string `json:"session_id"`
}

// DiscountAppliedData is the payload for a cart.discount_applied event.
type DiscountAppliedData struct {
	SessionID    string              `json:"session_id"`
	DiscountType domain.DiscountType `json:"discount_type"`
	Amount       float64             `json:"amount"`
	Discount     float64             `json:"discount"`
	Subtotal     float64             `json:"subtotal"`
	Total        float64             `json:"total"`
}

// Publisher sends an envelope to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes cart domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the cart service.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func (p *Producer) publish(ctx context.Context, topic, sessionID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, sessionID, AggregateTypeCart, SourceCartService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published cart event",
		slog.String("topic", topic),
		slog.String("session_id", sessionID),
		slog.String("event_id", event.EventID),
	)
	return nil
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, sessionID string, summary *domain.Summary) error {
	items := make([]CartItemData, len(summary.Items))
	for i, item := range summary.Items {
		items[i] = CartItemData{
			RowID:    item.RowID,
			ID:       item.ID,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
			Subtotal: item.Subtotal,
		}
	}

	return p.publish(ctx, TopicCartUpdated, sessionID, CartUpdatedData{
		SessionID: sessionID,
		Items:     items,
		ItemCount: summary.ItemCount,
		Subtotal:  summary.Subtotal,
		Discount:  summary.Discount,
		Total:     summary.Total,
	})
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, sessionID string) error {
	return p.publish(ctx, TopicCartCleared, sessionID, CartClearedData{SessionID: sessionID})
}

// PublishDiscountApplied publishes a cart.discount_applied event. amount is
// the value the caller asked for; summary carries the resulting discount.
func (p *Producer) PublishDiscountApplied(ctx context.Context, sessionID string, amount float64, summary *domain.Summary) error {
	return p.publish(ctx, TopicCartDiscountApplied, sessionID, DiscountAppliedData{
		SessionID:    sessionID,
		DiscountType: summary.DiscountType,
		Amount:       amount,
		Discount:     summary.Discount,
		Subtotal:     summary.Subtotal,
		Total:        summary.Total,
	})
}
