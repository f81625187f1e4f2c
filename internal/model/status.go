package model

import (
	"fmt"
	"strings"
)

// OrderStatus is the lifecycle state of an order. The set is closed: every
// valid value is one of the constants below.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusPaid       OrderStatus = "paid"
	StatusPreparing  OrderStatus = "preparing"
	StatusReady      OrderStatus = "ready"
	StatusDispatched OrderStatus = "dispatched"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// forwardChain is the only legal forward path. next(status) is the element
// after status; cancelled is reachable from every non-terminal entry.
var forwardChain = [...]OrderStatus{
	StatusPending,
	StatusPaid,
	StatusPreparing,
	StatusReady,
	StatusDispatched,
	StatusDelivered,
}

var statusLabels = map[OrderStatus]string{
	StatusPending:    "Pending",
	StatusPaid:       "Paid",
	StatusPreparing:  "Preparing",
	StatusReady:      "Ready",
	StatusDispatched: "Dispatched",
	StatusDelivered:  "Delivered",
	StatusCancelled:  "Cancelled",
}

// AllStatuses returns the seven statuses in display order.
func AllStatuses() []OrderStatus {
	out := make([]OrderStatus, 0, len(forwardChain)+1)
	out = append(out, forwardChain[:]...)
	return append(out, StatusCancelled)
}

// ForwardChain returns the forward stages, pending first.
func ForwardChain() []OrderStatus {
	out := make([]OrderStatus, len(forwardChain))
	copy(out, forwardChain[:])
	return out
}

// ParseOrderStatus parses s case-insensitively. "completed" is accepted as an
// alias for delivered.
func ParseOrderStatus(s string) (OrderStatus, error) {
	v := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if v == "completed" {
		return StatusDelivered, nil
	}
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return v, nil
}

// Valid reports whether s is one of the enumerated statuses.
func (s OrderStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Rank is the position of s in the forward chain, or -1 for cancelled and
// unknown values.
func (s OrderStatus) Rank() int {
	for i, st := range forwardChain {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the immediate forward successor of s.
func (s OrderStatus) Next() (OrderStatus, bool) {
	r := s.Rank()
	if r < 0 || r == len(forwardChain)-1 {
		return "", false
	}
	return forwardChain[r+1], true
}

// IsTerminal reports whether no transition may leave s.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Label is the human-facing name of s.
func (s OrderStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func (s OrderStatus) String() string { return string(s) }
