package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned in the "code" field of API error responses.
const (
	CodeNotFound             = "NOT_FOUND"
	CodeCartItemNotFound     = "CART_ITEM_NOT_FOUND"
	CodeInvalidInput         = "INVALID_INPUT"
	CodeInvalidDiscount      = "INVALID_DISCOUNT"
	CodeValidation           = "VALIDATION_ERROR"
	CodeUnprocessable        = "UNPROCESSABLE_ENTITY"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	CodeInternal             = "INTERNAL_ERROR"
)

// Sentinels that domain errors wrap so transports can classify them.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnprocessable = errors.New("unprocessable entity")
	ErrUnauthorized  = errors.New("unauthorized")
)

// internalMessage is shown to clients instead of the text of unexpected errors.
const internalMessage = "an internal error occurred"

// AppError carries a stable code and HTTP status next to the underlying error.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// CartItemNotFound creates a 404 for a row id missing from the cart. cause
// is kept for errors.Is and defaults to ErrNotFound.
func CartItemNotFound(cause error) *AppError {
	if cause == nil {
		cause = ErrNotFound
	}
	return &AppError{
		Code:    CodeCartItemNotFound,
		Message: "cart item not found",
		Status:  http.StatusNotFound,
		Err:     cause,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// UnprocessableEntity creates a 422 error with a caller-chosen code. The
// cause is kept for errors.Is matching and defaults to ErrUnprocessable.
func UnprocessableEntity(code, message string, cause error) *AppError {
	if cause == nil {
		cause = ErrUnprocessable
	}
	return &AppError{
		Code:    code,
		Message: message,
		Status:  http.StatusUnprocessableEntity,
		Err:     cause,
	}
}

// InvalidDiscount creates the 422 returned for a rejected discount.
func InvalidDiscount(cause error) *AppError {
	msg := "invalid discount"
	if cause != nil {
		msg = cause.Error()
	}
	return UnprocessableEntity(CodeInvalidDiscount, msg, cause)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Classify maps err to the status, code and client-facing message of an
// error response. An AppError keeps its own values. Bare sentinels get a
// generic code; anything else is an internal error whose text is hidden.
func Classify(err error) (status int, code, message string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status, appErr.Code, appErr.Message
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, CodeNotFound, "resource not found"
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalidInput, err.Error()
	case errors.Is(err, ErrUnprocessable):
		return http.StatusUnprocessableEntity, CodeUnprocessable, err.Error()
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized, "authentication required"
	default:
		return http.StatusInternalServerError, CodeInternal, internalMessage
	}
}

// HTTPStatus returns the HTTP status code for err.
func HTTPStatus(err error) int {
	status, _, _ := Classify(err)
	return status
}

// InternalMessage is the client-facing text of a 500 response.
func InternalMessage() string { return internalMessage }
