package domain

import (
	"fmt"

	apperrors "github.com/mahmudulhsn/shopping-cart/pkg/errors"
)

var (
	// ErrCartItemNotFound is returned by Update and Remove for an unknown row.
	ErrCartItemNotFound = fmt.Errorf("cart item not found: %w", apperrors.ErrNotFound)

	// ErrInvalidDiscount is returned when an amount/type pair is out of bounds.
	ErrInvalidDiscount = fmt.Errorf("invalid discount: %w", apperrors.ErrInvalidInput)

	// ErrInvalidItem is returned for line item input that can never be stored,
	// such as a negative price.
	ErrInvalidItem = fmt.Errorf("invalid cart item: %w", apperrors.ErrInvalidInput)
)
