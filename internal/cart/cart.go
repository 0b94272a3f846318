package cart

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/mahmudulhsn/shopping-cart/internal/domain"
	"github.com/mahmudulhsn/shopping-cart/internal/session"
)

type keys struct {
	products     string
	total        string
	subtotal     string
	discount     string
	discountType string
}

func keysFor(root string) keys {
	return keys{
		products:     root + ".products",
		total:        root + ".total",
		subtotal:     root + ".subtotal",
		discount:     root + ".discount",
		discountType: root + ".discount_type",
	}
}

// Cart mutates the line items of one session and keeps the stored totals in
// step with them. A Cart is not safe for concurrent writers; callers that
// share a session must serialize access.
type Cart struct {
	store    session.Store
	root     string
	keys     keys
	identity []IdentityField
}

// Option configures a Cart.
type Option func(*Cart)

// WithIdentityFields sets which attributes decide whether two adds land on
// the same row.
func WithIdentityFields(fields ...IdentityField) Option {
	return func(c *Cart) {
		if len(fields) > 0 {
			c.identity = slices.Clone(fields)
		}
	}
}

// New returns a Cart over store without touching it.
func New(store session.Store, root string, opts ...Option) *Cart {
	c := &Cart{
		store:    store,
		root:     root,
		keys:     keysFor(root),
		identity: DefaultIdentityFields,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open returns a Cart and seeds empty state when the session has none.
func Open(ctx context.Context, store session.Store, root string, opts ...Option) (*Cart, error) {
	c := New(store, root, opts...)
	if err := c.init(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cart) init(ctx context.Context) error {
	var dt domain.DiscountType
	found, err := c.store.Get(ctx, c.keys.discountType, &dt)
	if err != nil {
		return fmt.Errorf("read discount type: %w", err)
	}
	if found {
		return nil
	}

	seed := []struct {
		key   string
		value any
	}{
		{c.keys.products, domain.Products{}},
		{c.keys.total, 0},
		{c.keys.subtotal, 0},
		{c.keys.discount, 0},
		{c.keys.discountType, domain.DiscountFix},
	}
	for _, s := range seed {
		if err := c.store.Put(ctx, s.key, s.value); err != nil {
			return fmt.Errorf("initialize cart: %w", err)
		}
	}
	return nil
}

func (c *Cart) products(ctx context.Context) (domain.Products, error) {
	products := domain.Products{}
	if _, err := c.store.Get(ctx, c.keys.products, &products); err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	return products, nil
}

// commit stores products and recomputes the totals that depend on them.
func (c *Cart) commit(ctx context.Context, products domain.Products) error {
	if err := c.store.Put(ctx, c.keys.products, products); err != nil {
		return fmt.Errorf("store products: %w", err)
	}
	if _, err := RecomputeTotals(ctx, c.store, c.root); err != nil {
		return err
	}
	return nil
}

func validPrice(price float64) bool {
	return price >= 0 && !math.IsNaN(price) && !math.IsInf(price, 0)
}

// Add puts quantity units of a product into the cart. A row with the same
// identity is merged: quantities add up, the new price wins and extraInfo is
// replaced when the new one is non-empty. Quantities below 1 are raised to 1.
func (c *Cart) Add(ctx context.Context, id, name string, price, quantity float64, extraInfo map[string]any) (*domain.LineItem, error) {
	if !validPrice(price) {
		return nil, fmt.Errorf("price %v: %w", price, domain.ErrInvalidItem)
	}
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return nil, fmt.Errorf("quantity %v: %w", quantity, domain.ErrInvalidItem)
	}
	quantity = max(1, quantity)

	products, err := c.products(ctx)
	if err != nil {
		return nil, err
	}

	rowID := c.RowIDFor(id, name, price, quantity)

	var item domain.LineItem
	if i := products.FindItemIndex(rowID); i >= 0 {
		merged := products[i].Quantity + quantity
		item = ApplyPatch(products[i], domain.ItemPatch{
			Quantity:  &merged,
			Price:     &price,
			ExtraInfo: extraInfo,
		})
		products[i] = item
	} else {
		item = domain.LineItem{
			RowID:     rowID,
			ID:        id,
			Name:      name,
			Price:     price,
			Quantity:  quantity,
			Subtotal:  LineSubtotal(quantity, price),
			ExtraInfo: maps.Clone(extraInfo),
		}
		products = append(products, item)
	}

	if err := c.commit(ctx, products); err != nil {
		return nil, err
	}
	return &item, nil
}

// RowIDFor reports the row an Add with these values would land on.
func (c *Cart) RowIDFor(id, name string, price, quantity float64) string {
	return GenerateRowID(id, IdentityFor(c.identity, id, name, price, max(1, quantity)))
}

// Get returns the row with rowID, or nil when there is none.
func (c *Cart) Get(ctx context.Context, rowID string) (*domain.LineItem, error) {
	products, err := c.products(ctx)
	if err != nil {
		return nil, err
	}
	i := products.FindItemIndex(rowID)
	if i < 0 {
		return nil, nil
	}
	item := products[i]
	return &item, nil
}

// Update applies patch to an existing row. Quantity is taken as given.
func (c *Cart) Update(ctx context.Context, rowID string, patch domain.ItemPatch) (*domain.LineItem, error) {
	if patch.Price != nil && !validPrice(*patch.Price) {
		return nil, fmt.Errorf("price %v: %w", *patch.Price, domain.ErrInvalidItem)
	}
	if patch.Quantity != nil && (math.IsNaN(*patch.Quantity) || math.IsInf(*patch.Quantity, 0)) {
		return nil, fmt.Errorf("quantity %v: %w", *patch.Quantity, domain.ErrInvalidItem)
	}

	products, err := c.products(ctx)
	if err != nil {
		return nil, err
	}
	i := products.FindItemIndex(rowID)
	if i < 0 {
		return nil, fmt.Errorf("row %s: %w", rowID, domain.ErrCartItemNotFound)
	}

	item := ApplyPatch(products[i], patch)
	products[i] = item

	if err := c.commit(ctx, products); err != nil {
		return nil, err
	}
	return &item, nil
}

// Remove deletes a row.
func (c *Cart) Remove(ctx context.Context, rowID string) error {
	products, err := c.products(ctx)
	if err != nil {
		return err
	}
	i := products.FindItemIndex(rowID)
	if i < 0 {
		return fmt.Errorf("row %s: %w", rowID, domain.ErrCartItemNotFound)
	}
	return c.commit(ctx, products.Remove(i))
}

// Destroy empties the cart and zeroes its totals. The last discount type is
// kept.
func (c *Cart) Destroy(ctx context.Context) error {
	if err := c.store.Put(ctx, c.keys.products, domain.Products{}); err != nil {
		return fmt.Errorf("clear products: %w", err)
	}
	for _, key := range []string{c.keys.total, c.keys.subtotal, c.keys.discount} {
		if err := c.store.Put(ctx, key, 0); err != nil {
			return fmt.Errorf("reset %s: %w", key, err)
		}
	}
	return nil
}

func (c *Cart) readFloat(ctx context.Context, key string) (float64, error) {
	var v float64
	if _, err := c.store.Get(ctx, key, &v); err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

// Total is the stored subtotal minus discount.
func (c *Cart) Total(ctx context.Context) (float64, error) {
	return c.readFloat(ctx, c.keys.total)
}

// Subtotal is the stored pre-discount sum of all rows.
func (c *Cart) Subtotal(ctx context.Context) (float64, error) {
	return c.readFloat(ctx, c.keys.subtotal)
}

// DiscountTotal is the absolute discount currently applied.
func (c *Cart) DiscountTotal(ctx context.Context) (float64, error) {
	return c.readFloat(ctx, c.keys.discount)
}

// DiscountType reports the type of the last applied discount.
func (c *Cart) DiscountType(ctx context.Context) (domain.DiscountType, error) {
	dt := domain.DiscountFix
	if _, err := c.store.Get(ctx, c.keys.discountType, &dt); err != nil {
		return "", fmt.Errorf("read discount type: %w", err)
	}
	return dt, nil
}

// Content returns every row in insertion order.
func (c *Cart) Content(ctx context.Context) ([]domain.LineItem, error) {
	products, err := c.products(ctx)
	if err != nil {
		return nil, err
	}
	return []domain.LineItem(products), nil
}

// ApplyDiscount replaces the cart discount. The amount is checked against the
// freshly recomputed subtotal; on failure nothing about the discount changes.
func (c *Cart) ApplyDiscount(ctx context.Context, amount float64, dt domain.DiscountType) error {
	totals, err := RecomputeTotals(ctx, c.store, c.root)
	if err != nil {
		return err
	}

	discount, err := ComputeDiscount(totals.Subtotal, amount, dt)
	if err != nil {
		return err
	}

	if err := c.store.Put(ctx, c.keys.discountType, dt); err != nil {
		return fmt.Errorf("store discount type: %w", err)
	}
	if err := c.store.Put(ctx, c.keys.discount, discount); err != nil {
		return fmt.Errorf("store discount: %w", err)
	}
	total := decimal.NewFromFloat(totals.Subtotal).Sub(decimal.NewFromFloat(discount)).InexactFloat64()
	if err := c.store.Put(ctx, c.keys.total, total); err != nil {
		return fmt.Errorf("store total: %w", err)
	}
	return nil
}

// Summary reads the rows and totals in one pass.
func (c *Cart) Summary(ctx context.Context) (*domain.Summary, error) {
	products, err := c.products(ctx)
	if err != nil {
		return nil, err
	}
	subtotal, err := c.Subtotal(ctx)
	if err != nil {
		return nil, err
	}
	discount, err := c.DiscountTotal(ctx)
	if err != nil {
		return nil, err
	}
	dt, err := c.DiscountType(ctx)
	if err != nil {
		return nil, err
	}
	total, err := c.Total(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.Summary{
		Items:     []domain.LineItem(products),
		ItemCount: products.ItemCount(),
		Totals: domain.Totals{
			Subtotal:     subtotal,
			Discount:     discount,
			DiscountType: dt,
			Total:        total,
		},
	}, nil
}
