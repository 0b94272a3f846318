package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mahmudulhsn/shopping-cart/internal/domain"
	"github.com/mahmudulhsn/shopping-cart/internal/service"
	"github.com/mahmudulhsn/shopping-cart/pkg/httputil"
	"github.com/mahmudulhsn/shopping-cart/pkg/logger"
	"github.com/mahmudulhsn/shopping-cart/pkg/validator"
)

// CartService is the behavior the handlers need. *service.CartService
// implements it.
type CartService interface {
	GetCart(ctx context.Context, sessionID string) (*domain.Summary, error)
	ListItems(ctx context.Context, sessionID string) ([]domain.LineItem, error)
	GetItem(ctx context.Context, sessionID, rowID string) (*domain.LineItem, error)
	Totals(ctx context.Context, sessionID string) (*domain.Totals, error)
	AddItem(ctx context.Context, sessionID string, input service.AddItemInput) (*domain.LineItem, error)
	UpdateItem(ctx context.Context, sessionID, rowID string, input service.UpdateItemInput) (*domain.LineItem, error)
	RemoveItem(ctx context.Context, sessionID, rowID string) error
	ClearCart(ctx context.Context, sessionID string) error
	ApplyDiscount(ctx context.Context, sessionID string, input service.ApplyDiscountInput) (*domain.Summary, error)
}

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding an item to the cart.
type AddItemRequest struct {
	ID        string         `json:"id" validate:"required,max=255"`
	Name      string         `json:"name" validate:"required,max=255"`
	Price     float64        `json:"price" validate:"gte=0"`
	Quantity  *float64       `json:"quantity" validate:"omitempty,gte=0,lte=1000"`
	ExtraInfo map[string]any `json:"extra_info"`
}

// UpdateItemRequest is the JSON request body for patching an item. Absent
// fields keep their current value.
type UpdateItemRequest struct {
	Quantity  *float64       `json:"quantity" validate:"omitempty,gte=0,lte=1000"`
	Price     *float64       `json:"price" validate:"omitempty,gte=0"`
	ExtraInfo map[string]any `json:"extra_info"`
}

// ApplyDiscountRequest is the JSON request body for applying a discount.
type ApplyDiscountRequest struct {
	Amount float64 `json:"amount"`
	Type   string  `json:"type"`
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetCart(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, summary)
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearCart(r.Context(), sessionID(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListItems handles GET /api/v1/cart/items
func (h *CartHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, items)
}

// GetItem handles GET /api/v1/cart/items/{rowId}
func (h *CartHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), sessionID(r), chi.URLParam(r, "rowId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, item)
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	quantity := 1.0
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	item, err := h.service.AddItem(r.Context(), sessionID(r), service.AddItemInput{
		ID:        req.ID,
		Name:      req.Name,
		Price:     req.Price,
		Quantity:  quantity,
		ExtraInfo: req.ExtraInfo,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, item)
}

// UpdateItem handles PATCH /api/v1/cart/items/{rowId}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	item, err := h.service.UpdateItem(r.Context(), sessionID(r), chi.URLParam(r, "rowId"), service.UpdateItemInput{
		Quantity:  req.Quantity,
		Price:     req.Price,
		ExtraInfo: req.ExtraInfo,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, item)
}

// RemoveItem handles DELETE /api/v1/cart/items/{rowId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveItem(r.Context(), sessionID(r), chi.URLParam(r, "rowId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Totals handles GET /api/v1/cart/totals
func (h *CartHandler) Totals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.service.Totals(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, totals)
}

// ApplyDiscount handles POST /api/v1/cart/discount
func (h *CartHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req ApplyDiscountRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	summary, err := h.service.ApplyDiscount(r.Context(), sessionID(r), service.ApplyDiscountInput{
		Amount: req.Amount,
		Type:   req.Type,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, summary)
}

// --- Helpers ---

func sessionID(r *http.Request) string {
	return logger.SessionIDFromContext(r.Context())
}

func (h *CartHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, err, h.logger)
}
