// Package lifecycle holds the order state machine: which status changes are
// legal, what each change stamps on the order, and the derived timeline.
//
// All functions take the event time as an argument and never read a clock.
package lifecycle

import (
	"fmt"
	"sort"
	"time"

	"github.com/kiwari-pos/backoffice/internal/model"
)

var descriptions = map[model.OrderStatus]string{
	model.StatusPending:    "Order placed",
	model.StatusPaid:       "Payment received",
	model.StatusPreparing:  "Kitchen started preparing the order",
	model.StatusReady:      "Order is ready",
	model.StatusDispatched: "Order dispatched",
	model.StatusDelivered:  "Order delivered",
	model.StatusCancelled:  "Order cancelled",
}

// Describe returns the timeline text recorded when an order enters status.
func Describe(status model.OrderStatus) string {
	if s, ok := descriptions[status]; ok {
		return s
	}
	return status.Label()
}

// PlacedEvent is the first timeline entry of every order.
func PlacedEvent(at time.Time) model.TimelineEvent {
	return model.TimelineEvent{
		Status:      model.StatusPending,
		Description: Describe(model.StatusPending),
		OccurredAt:  at,
		Completed:   true,
	}
}

// CanTransition checks a status change without an order at hand. The error
// wraps model.ErrTerminalState, model.ErrIllegalTransition or
// model.ErrInvalidStatus.
func CanTransition(from, to model.OrderStatus) error {
	if !from.Valid() {
		return fmt.Errorf("%w: current %q", model.ErrInvalidStatus, from)
	}
	if from.IsTerminal() {
		return model.ErrTerminalState
	}
	if !to.Valid() {
		return fmt.Errorf("%w: %q", model.ErrInvalidStatus, to)
	}
	if to == model.StatusCancelled {
		return nil
	}
	if next, ok := from.Next(); ok && next == to {
		return nil
	}
	return model.ErrIllegalTransition
}

// Option adjusts a transition.
type Option func(*options)

type options struct {
	paymentMethod    *model.PaymentMethod
	paymentReference *string
}

// WithPayment records how the order was paid. Only honoured when the target
// status is paid.
func WithPayment(method model.PaymentMethod, reference string) Option {
	return func(o *options) {
		o.paymentMethod = &method
		if reference != "" {
			o.paymentReference = &reference
		}
	}
}

// Transition moves order to target at the given time. On success it returns
// the updated order (status set, matching timestamp stamped once, event
// appended) and the new event. The input order is not modified.
func Transition(order model.Order, target model.OrderStatus, at time.Time, opts ...Option) (model.Order, model.TimelineEvent, error) {
	if err := CanTransition(order.Status, target); err != nil {
		return order, model.TimelineEvent{}, &model.TransitionError{
			OrderID: order.ID,
			From:    order.Status,
			To:      target,
			Err:     err,
		}
	}

	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if o.paymentMethod != nil && !o.paymentMethod.Valid() {
		return order, model.TimelineEvent{}, fmt.Errorf("%w: %q", model.ErrInvalidPaymentMethod, *o.paymentMethod)
	}

	updated := order
	updated.Status = target
	updated.UpdatedAt = at
	stamp(&updated, target, at)

	desc := Describe(target)
	if target == model.StatusPaid && o.paymentMethod != nil {
		if updated.PaymentMethod == nil {
			updated.PaymentMethod = o.paymentMethod
		}
		if updated.PaymentReference == nil {
			updated.PaymentReference = o.paymentReference
		}
		desc = fmt.Sprintf("%s via %s", desc, *o.paymentMethod)
	}

	ev := model.TimelineEvent{
		Status:      target,
		Description: desc,
		OccurredAt:  at,
		Completed:   true,
	}
	updated.Events = append(append([]model.TimelineEvent(nil), order.Events...), ev)
	return updated, ev, nil
}

// stamp sets the timestamp field that belongs to status, unless already set.
func stamp(o *model.Order, status model.OrderStatus, at time.Time) {
	var field **time.Time
	switch status {
	case model.StatusPaid:
		field = &o.PaidAt
	case model.StatusReady:
		field = &o.ReadyAt
	case model.StatusDispatched:
		field = &o.DispatchedAt
	case model.StatusDelivered:
		field = &o.DeliveredAt
	default:
		return
	}
	if *field == nil {
		t := at
		*field = &t
	}
}

// Timeline returns the persisted events in time order followed by a pending
// entry for every forward stage the order has not reached yet.
func Timeline(order model.Order) []model.TimelineEvent {
	out := make([]model.TimelineEvent, 0, len(order.Events)+len(model.ForwardChain()))
	for _, ev := range order.Events {
		ev.Completed = true
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})

	rank := order.Status.Rank()
	if rank < 0 {
		return out
	}
	for _, st := range model.ForwardChain()[rank+1:] {
		out = append(out, model.TimelineEvent{
			Status:      st,
			Description: st.Label(),
		})
	}
	return out
}
