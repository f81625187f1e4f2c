package model

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Errors shared by the pricing, lifecycle and order packages.
var (
	ErrInvalidQuantity         = errors.New("quantity must be between 1 and 2147483647")
	ErrNotFound                = errors.New("not found")
	ErrIllegalTransition       = errors.New("illegal status transition")
	ErrTerminalState           = errors.New("order is in a terminal state")
	ErrConflictingUpdate       = errors.New("order status changed concurrently")
	ErrUpstreamUnavailable     = errors.New("upstream unavailable")
	ErrInvalidStatus           = errors.New("invalid status")
	ErrEmptyItems              = errors.New("items are required")
	ErrInvalidChannel          = errors.New("invalid channel")
	ErrInvalidDeliveryType     = errors.New("invalid delivery_type")
	ErrDeliveryAddressRequired = errors.New("delivery_address is required for delivery orders")
	ErrInvalidPaymentMethod    = errors.New("invalid payment_method")
	ErrInvalidAmount           = errors.New("amount must not be negative")
)

// TransitionError describes a rejected status change with enough context to
// render a precise message.
type TransitionError struct {
	OrderID uuid.UUID
	From    OrderStatus
	To      OrderStatus
	Err     error
}

func (e *TransitionError) Error() string {
	switch {
	case errors.Is(e.Err, ErrTerminalState):
		return fmt.Sprintf("order %s is already %s", e.OrderID, e.From)
	case errors.Is(e.Err, ErrConflictingUpdate):
		return fmt.Sprintf("order %s is no longer %s (changed by another device), cannot mark %s", e.OrderID, e.From, e.To)
	default:
		return fmt.Sprintf("cannot move order %s from %s to %s", e.OrderID, e.From, e.To)
	}
}

func (e *TransitionError) Unwrap() error { return e.Err }
