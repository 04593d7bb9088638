package usecase

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// エラーの種類。errors.Isで判定できる
var (
	ErrValidation          = errors.New("validation_error")
	ErrNotFound            = errors.New("not_found")
	ErrInsufficientStock   = errors.New("insufficient_stock")
	ErrEmptyCart           = errors.New("empty_cart")
	ErrInsufficientCredits = errors.New("insufficient_credits")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("conflict")
	ErrPaymentFailed       = errors.New("payment_failed")
	ErrInternal            = errors.New("internal_error")
)

type HTTPError struct {
	Status  int
	Code    string
	Message string
	kind    error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.kind
}

// statusから種類を決める
func NewHTTPError(status int, message string) error {
	return newError(kindForStatus(status), status, message)
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func newError(kind error, status int, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    kind.Error(),
		Message: message,
		kind:    kind,
	}
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusBadRequest:
		return ErrValidation
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	default:
		return ErrInternal
	}
}

func validationError(message string) error {
	return newError(ErrValidation, http.StatusBadRequest, message)
}

// 他人のリソースも「存在しない」扱い
func notFound() error {
	return newError(ErrNotFound, http.StatusNotFound, "Not found.")
}

func unauthorized() error {
	return newError(ErrUnauthorized, http.StatusUnauthorized, "unauthorized")
}

func conflict(message string) error {
	return newError(ErrConflict, http.StatusConflict, message)
}

func internalError() error {
	return newError(ErrInternal, http.StatusInternalServerError, "internal error")
}

func emptyCart() error {
	return newError(ErrEmptyCart, http.StatusBadRequest, "Your cart is empty. Add items before placing an order.")
}

func insufficientStock(message string) error {
	return newError(ErrInsufficientStock, http.StatusBadRequest, message)
}

func insufficientCredits(need, have decimal.Decimal) error {
	return newError(ErrInsufficientCredits, http.StatusBadRequest,
		fmt.Sprintf("Insufficient credits. You need $%s but only have $%s.", need.StringFixed(2), have.StringFixed(2)))
}

func paymentFailed(message string) error {
	return newError(ErrPaymentFailed, http.StatusBadRequest, message)
}
