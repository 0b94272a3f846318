package cart

import (
	"context"
	"fmt"
	"maps"
	"math"

	"github.com/shopspring/decimal"

	"github.com/mahmudulhsn/shopping-cart/internal/domain"
	"github.com/mahmudulhsn/shopping-cart/internal/session"
)

var hundred = decimal.NewFromInt(100)

// LineSubtotal returns quantity * price.
func LineSubtotal(quantity, price float64) float64 {
	return decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(price)).InexactFloat64()
}

func sumSubtotals(items domain.Products) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(decimal.NewFromFloat(item.Subtotal))
	}
	return sum
}

// ComputeDiscount turns a requested discount into an absolute amount.
// A percentage must lie in [0, 100]; a fixed amount in [0, baseline].
func ComputeDiscount(baseline, amount float64, dt domain.DiscountType) (float64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("amount %v is not a finite number: %w", amount, domain.ErrInvalidDiscount)
	}
	if amount < 0 {
		return 0, fmt.Errorf("amount %v is negative: %w", amount, domain.ErrInvalidDiscount)
	}

	switch dt {
	case domain.DiscountPercentage:
		if amount > 100 {
			return 0, fmt.Errorf("percentage %v exceeds 100: %w", amount, domain.ErrInvalidDiscount)
		}
		return decimal.NewFromFloat(baseline).
			Mul(decimal.NewFromFloat(amount)).
			Div(hundred).
			InexactFloat64(), nil
	case domain.DiscountFix:
		if amount > baseline {
			return 0, fmt.Errorf("fixed amount %v exceeds subtotal %v: %w", amount, baseline, domain.ErrInvalidDiscount)
		}
		return amount, nil
	default:
		return 0, fmt.Errorf("unknown discount type %q: %w", dt, domain.ErrInvalidDiscount)
	}
}

// ApplyPatch returns item with patch applied and its subtotal recomputed.
// ExtraInfo is replaced only by a non-empty patch value. item is not modified.
func ApplyPatch(item domain.LineItem, patch domain.ItemPatch) domain.LineItem {
	out := item
	if patch.Quantity != nil {
		out.Quantity = *patch.Quantity
	}
	if patch.Price != nil {
		out.Price = *patch.Price
	}
	if len(patch.ExtraInfo) > 0 {
		out.ExtraInfo = maps.Clone(patch.ExtraInfo)
	} else {
		out.ExtraInfo = maps.Clone(item.ExtraInfo)
	}
	out.Subtotal = LineSubtotal(out.Quantity, out.Price)
	return out
}

// RecomputeTotals sums the stored line items and writes subtotal and
// total = subtotal - discount back under root. Running it twice over the
// same products stores the same figures.
func RecomputeTotals(ctx context.Context, store session.Store, root string) (domain.Totals, error) {
	k := keysFor(root)

	var products domain.Products
	if _, err := store.Get(ctx, k.products, &products); err != nil {
		return domain.Totals{}, fmt.Errorf("load products: %w", err)
	}

	var discount float64
	if _, err := store.Get(ctx, k.discount, &discount); err != nil {
		return domain.Totals{}, fmt.Errorf("load discount: %w", err)
	}

	discountType := domain.DiscountFix
	if _, err := store.Get(ctx, k.discountType, &discountType); err != nil {
		return domain.Totals{}, fmt.Errorf("load discount type: %w", err)
	}

	sum := sumSubtotals(products)
	totals := domain.Totals{
		Subtotal:     sum.InexactFloat64(),
		Discount:     discount,
		DiscountType: discountType,
		Total:        sum.Sub(decimal.NewFromFloat(discount)).InexactFloat64(),
	}

	if err := store.Put(ctx, k.subtotal, totals.Subtotal); err != nil {
		return domain.Totals{}, fmt.Errorf("store subtotal: %w", err)
	}
	if err := store.Put(ctx, k.total, totals.Total); err != nil {
		return domain.Totals{}, fmt.Errorf("store total: %w", err)
	}
	return totals, nil
}
