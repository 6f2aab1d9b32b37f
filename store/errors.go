package store

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrRuleConflict      = errors.New("inventory rule conflicts with an existing rule")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNoAddress         = errors.New("no delivery address selected")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// HTTPStatus maps a store error to the response status handlers send for it.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRuleConflict), errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrNoAddress), errors.Is(err, ErrInvalidQuantity):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
