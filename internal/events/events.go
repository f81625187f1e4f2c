// Package events carries order notifications out of the back office: to
// live WebSocket dashboards and to a RabbitMQ topic exchange.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/backoffice/internal/enum"
	"github.com/kiwari-pos/backoffice/internal/model"
	"github.com/shopspring/decimal"
)

// OrderEvent is the payload published when an order is placed or moves
// through its lifecycle.
type OrderEvent struct {
	Type           string             `json:"type"`
	OrderID        uuid.UUID          `json:"order_id"`
	BranchID       uuid.UUID          `json:"branch_id"`
	OrderNumber    string             `json:"order_number"`
	Status         model.OrderStatus  `json:"status"`
	PreviousStatus *model.OrderStatus `json:"previous_status,omitempty"`
	Description    string             `json:"description,omitempty"`
	TotalAmount    decimal.Decimal    `json:"total_amount"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

// Created builds the event for a newly placed order.
func Created(o model.Order) OrderEvent {
	return OrderEvent{
		Type:        enum.EventOrderCreated,
		OrderID:     o.ID,
		BranchID:    o.BranchID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Description: "Order placed",
		TotalAmount: o.TotalAmount,
		OccurredAt:  o.CreatedAt,
	}
}

// StatusChanged builds the event for a committed transition out of from.
func StatusChanged(o model.Order, from model.OrderStatus, ev model.TimelineEvent) OrderEvent {
	return OrderEvent{
		Type:           enum.EventOrderStatusChanged,
		OrderID:        o.ID,
		BranchID:       o.BranchID,
		OrderNumber:    o.OrderNumber,
		Status:         o.Status,
		PreviousStatus: &from,
		Description:    ev.Description,
		TotalAmount:    o.TotalAmount,
		OccurredAt:     ev.OccurredAt,
	}
}

// Publisher delivers order events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev OrderEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Noop drops every event. Used when the broker is disabled.
type Noop struct{}

func (Noop) Publish(context.Context, OrderEvent) error { return nil }
