package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mahmudulhsn/shopping-cart/internal/cart"
	"github.com/mahmudulhsn/shopping-cart/internal/domain"
	apperrors "github.com/mahmudulhsn/shopping-cart/pkg/errors"
	"github.com/mahmudulhsn/shopping-cart/pkg/validator"
)

// Upper bounds on request values, checked before the cart is touched.
const (
	// MaxQuantityPerItem is the largest quantity a row may hold, including
	// what an Add merges into it.
	MaxQuantityPerItem = 1000
	// MaxItemsPerCart is the maximum number of distinct rows in a cart.
	MaxItemsPerCart = 100
)

// AddItemInput holds the parameters for adding an item to the cart. The tags
// match the HTTP request DTO and are checked again here for other callers.
type AddItemInput struct {
	ID        string         `json:"id" validate:"required,max=255"`
	Name      string         `json:"name" validate:"required,max=255"`
	Price     float64        `json:"price" validate:"gte=0"`
	Quantity  float64        `json:"quantity" validate:"gte=0,lte=1000"`
	ExtraInfo map[string]any `json:"extra_info"`
}

// UpdateItemInput holds the optional fields of an item update.
type UpdateItemInput struct {
	Quantity  *float64       `json:"quantity" validate:"omitempty,gte=0,lte=1000"`
	Price     *float64       `json:"price" validate:"omitempty,gte=0"`
	ExtraInfo map[string]any `json:"extra_info"`
}

// ApplyDiscountInput holds a discount request. Type defaults to "fix".
// Bounds are checked by the cart so they surface as INVALID_DISCOUNT.
type ApplyDiscountInput struct {
	Amount float64 `json:"amount"`
	Type   string  `json:"type"`
}

// EventPublisher is the subset of the event producer the service needs.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, sessionID string, summary *domain.Summary) error
	PublishCartCleared(ctx context.Context, sessionID string) error
	PublishDiscountApplied(ctx context.Context, sessionID string, amount float64, summary *domain.Summary) error
}

// CartService implements the business logic for cart operations. Calls for
// the same session are serialized within this process.
type CartService struct {
	carts           *cart.Factory
	events          EventPublisher
	logger          *slog.Logger
	locks           *sessionLocks
	destroyOnLogout bool
}

// NewCartService creates a new cart service. events may be nil, in which
// case no domain events are published.
func NewCartService(carts *cart.Factory, events EventPublisher, logger *slog.Logger, destroyOnLogout bool) *CartService {
	return &CartService{
		carts:           carts,
		events:          events,
		logger:          logger,
		locks:           newSessionLocks(),
		destroyOnLogout: destroyOnLogout,
	}
}

// withCart locks the session, opens its cart and runs fn.
func (s *CartService) withCart(ctx context.Context, sessionID string, fn func(c *cart.Cart) error) error {
	if sessionID == "" {
		return apperrors.Unauthorized("session id is required")
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	c, err := s.carts.For(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("open cart: %w", err)
	}
	return fn(c)
}

// GetCart returns the full cart summary.
func (s *CartService) GetCart(ctx context.Context, sessionID string) (*domain.Summary, error) {
	var summary *domain.Summary
	err := s.withCart(ctx, sessionID, func(c *cart.Cart) error {
		var err error
		summary, err = c.Summary(ctx)
		return err
	})
	if err != nil {
		return nil, translateError(err)
	}
	return summary, nil
}

// ListItems returns every line item in insertion order.
func (s *CartService) ListItems(ctx context.Context, sessionID string) ([]domain.LineItem, error) {
	var items []domain.LineItem
	err := s.withCart(ctx, sessionID, func(c *cart.Cart) error {
		var err error
		items, err = c.Content(ctx)
		return err
	})
	if err != nil {
		return nil, translateError(err)
	}
	return items, nil
}

// GetItem returns one line item, or a CART_ITEM_NOT_FOUND error.
func (s *CartService) GetItem(ctx context.Context, sessionID, rowID string) (*domain.LineItem, error) {
	var item *domain.LineItem
	err := s.withCart(ctx, sessionID, func(c *cart.Cart) error {
		var err error
		item, err = c.Get(ctx, rowID)
		if err == nil && item == nil {
			err = fmt.Errorf("row %s: %w", rowID, domain.ErrCartItemNotFound)
		}
		return err
	})
	if err != nil {
		return nil, translateError(err)
	}
	return item, nil
}

// Totals returns the stored figures without the items.
func (s *CartService) Totals(ctx context.Context, sessionID string) (*domain.Totals, error) {
	summary, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &summary.Totals, nil
}

// AddItem adds an item, merging it into an existing row with the same identity.
func (s *CartService) AddItem(ctx context.Context, sessionID string, input AddItemInput) (*domain.LineItem, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.Quantity > MaxQuantityPerItem {
		return nil, quantityLimitError()
	}

	var (
		item    *domain.LineItem
		summary *domain.Summary
	)
	err := s.withCart(ctx, sessionID, func(c *cart.Cart) error {
		existing, err := c.Get(ctx, c.RowIDFor(input.ID, input.Name, input.Price, input.Quantity))
		if err != nil {
			return err
		}
		if existing != nil && existing.Quantity+max(1, input.Quantity) > MaxQuantityPerItem {
			return quantityLimitError()
		}
		if existing == nil {
			items, err := c.Content(ctx)
			if err != nil {
				return err
			}
			if len(items) >= MaxItemsPerCart {
				return apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", MaxItemsPerCart))
			}
		}

		item, err = c.Add(ctx, input.ID, input.Name, input.Price, input.Quantity, input.ExtraInfo)
		if err != nil {
			return err
		}
		summary, err = c.Summary(ctx)
		return err
	})
	recordOperation("add", err)
	if err != nil {
		return nil, translateError(err)
	}

	s.publishUpdated(ctx, sessionID, summary)
	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("session_id", sessionID),
		slog.String("row_id", item.RowID),
		slog.String("product_id", item.ID),
		slog.Float64("quantity", item.Quantity),
	)
	return item, nil
}

// UpdateItem patches one line item.
func (s *CartService) UpdateItem(ctx context.Context, sessionID, rowID string, input UpdateItemInput) (*domain.LineItem, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.Quantity != nil && *input.Quantity > MaxQuantityPerItem {
		return nil, quantityLimitError()
	}

	var (
		item    *domain.LineItem
		summary *domain.Summary
	)
	err := s.withCart(ctx, sessionID, func(c *cart.Cart) error {
		var err error
		item, err = c.Update(ctx, rowID, domain.ItemPatch{
			Quantity:  input.Quantity,
			Price:     input.Price,
			ExtraInfo: input.ExtraInfo,
		})
		if err != nil {
			return err
		}
		summary, err = c.Summary(ctx)
		return err
	})
	recordOperation("update", err)
	if err != nil {
		return nil, translateError(err)
	}

	s.publishUpdated(ctx, sessionID, summary)
	s.logger.InfoContext(ctx, "cart item updated",
		slog.String("session_id", sessionID),
		slog.String("row_id", rowID),
		slog.Float64("quantity", item.Quantity),
	)
	return item, nil
}

// RemoveItem deletes one line item.
func (s *CartService) RemoveItem(ctx context.Context, sessionID, rowID string) error {
	var summary *domain.Summary
	err := s.withCart(ctx, sessionID, func(c *cart.Cart) error {
		if err := c.Remove(ctx, rowID); err != nil {
			return err
		}
		var err error
		summary, err = c.Summary(ctx)
		return err
	})
	recordOperation("remove", err)
	if err != nil {
		return translateError(err)
	}

	s.publishUpdated(ctx, sessionID, summary)
	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("session_id", sessionID),
		slog.String("row_id", rowID),
	)
	return nil
}

// ClearCart empties the cart.
func (s *CartService) ClearCart(ctx context.Context, sessionID string) error {
	err := s.withCart(ctx, sessionID, func(c *cart.Cart) error {
		return c.Destroy(ctx)
	})
	recordOperation("clear", err)
	if err != nil {
		return translateError(err)
	}

	if s.events != nil {
		if err := s.events.PublishCartCleared(ctx, sessionID); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("session_id", sessionID),
	)
	return nil
}

// ApplyDiscount replaces the cart discount and returns the new summary.
func (s *CartService) ApplyDiscount(ctx context.Context, sessionID string, input ApplyDiscountInput) (*domain.Summary, error) {
	dt, err := domain.ParseDiscountType(input.Type)
	if err != nil {
		recordOperation("discount", err)
		return nil, translateError(err)
	}

	var summary *domain.Summary
	err = s.withCart(ctx, sessionID, func(c *cart.Cart) error {
		if err := c.ApplyDiscount(ctx, input.Amount, dt); err != nil {
			return err
		}
		var err error
		summary, err = c.Summary(ctx)
		return err
	})
	recordOperation("discount", err)
	if err != nil {
		return nil, translateError(err)
	}

	if s.events != nil {
		if err := s.events.PublishDiscountApplied(ctx, sessionID, input.Amount, summary); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish cart.discount_applied event",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "discount applied",
		slog.String("session_id", sessionID),
		slog.String("discount_type", string(dt)),
		slog.Float64("discount", summary.Discount),
		slog.Float64("total", summary.Total),
	)
	return summary, nil
}

// HandleLogout destroys the session's cart when the service is configured
// to do so, and is a no-op otherwise.
func (s *CartService) HandleLogout(ctx context.Context, sessionID string) error {
	if !s.destroyOnLogout {
		s.logger.DebugContext(ctx, "logout ignored, destroy on logout disabled",
			slog.String("session_id", sessionID),
		)
		return nil
	}
	if err := s.ClearCart(ctx, sessionID); err != nil {
		return fmt.Errorf("destroy cart on logout: %w", err)
	}
	return nil
}

func (s *CartService) publishUpdated(ctx context.Context, sessionID string, summary *domain.Summary) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishCartUpdated(ctx, sessionID, summary); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}

func validateInput(input any) error {
	if err := validator.Validate(input); err != nil {
		return apperrors.InvalidInput(err.Error())
	}
	return nil
}

func quantityLimitError() error {
	return apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d per item", MaxQuantityPerItem))
}

// translateError turns cart errors into AppErrors with stable codes. Other
// errors pass through and surface as 500s.
func translateError(err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, domain.ErrCartItemNotFound):
		return apperrors.CartItemNotFound(err)
	case errors.Is(err, domain.ErrInvalidDiscount):
		return apperrors.InvalidDiscount(err)
	case errors.Is(err, domain.ErrInvalidItem):
		appErr := apperrors.InvalidInput(err.Error())
		appErr.Err = err
		return appErr
	default:
		return err
	}
}
