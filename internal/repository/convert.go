package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/backoffice/internal/database"
	"github.com/kiwari-pos/backoffice/internal/model"
)

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func stringPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

// OrderFromRow converts an orders row. Items and events are left empty.
func OrderFromRow(r database.Order) model.Order {
	o := model.Order{
		ID:               r.ID,
		BranchID:         r.BranchID,
		OrderNumber:      r.OrderNumber,
		CustomerName:     r.CustomerName,
		CustomerPhone:    r.CustomerPhone,
		CustomerEmail:    r.CustomerEmail,
		Channel:          model.Channel(r.Channel),
		DeliveryType:     model.DeliveryType(r.DeliveryType),
		DeliveryAddress:  stringPtr(r.DeliveryAddress),
		Subtotal:         database.NumericToDecimal(r.Subtotal),
		DeliveryFee:      database.NumericToDecimal(r.DeliveryFee),
		TotalAmount:      database.NumericToDecimal(r.TotalAmount),
		PaymentReference: stringPtr(r.PaymentReference),
		Notes:            r.Notes.String,
		Status:           model.OrderStatus(r.Status),
		PaidAt:           timePtr(r.PaidAt),
		ReadyAt:          timePtr(r.ReadyAt),
		DispatchedAt:     timePtr(r.DispatchedAt),
		DeliveredAt:      timePtr(r.DeliveredAt),
		CreatedBy:        r.CreatedBy,
		CreatedAt:        r.CreatedAt.Time,
		UpdatedAt:        r.UpdatedAt.Time,
	}
	if r.PaymentMethod.Valid {
		m := model.PaymentMethod(r.PaymentMethod.String)
		o.PaymentMethod = &m
	}
	return o
}

// ItemFromRow converts an order_items row with its add-ons.
func ItemFromRow(r database.OrderItem, addons []database.OrderItemAddon) model.OrderItem {
	it := model.OrderItem{
		ID:          r.ID,
		MenuItemID:  r.MenuItemID,
		Name:        r.Name,
		VariantName: r.VariantName,
		Quantity:    r.Quantity,
		UnitPrice:   database.NumericToDecimal(r.UnitPrice),
		TotalPrice:  database.NumericToDecimal(r.TotalPrice),
		Notes:       r.Notes.String,
	}
	for _, a := range addons {
		it.Addons = append(it.Addons, model.OrderItemAddon{
			ID:       a.ID,
			Name:     a.Name,
			Price:    database.NumericToDecimal(a.Price),
			Quantity: a.Quantity,
		})
	}
	return it
}

// EventFromRow converts a persisted timeline event.
func EventFromRow(r database.OrderEvent) model.TimelineEvent {
	return model.TimelineEvent{
		Status:      model.OrderStatus(r.Status),
		Description: r.Description,
		OccurredAt:  r.OccurredAt.Time,
		Completed:   true,
	}
}

// MenuItemFromRows assembles a menu item with its variants and add-ons.
func MenuItemFromRows(r database.MenuItem, variants []database.MenuItemVariant, addons []database.MenuItemAddon) model.MenuItem {
	mi := model.MenuItem{
		ID:        r.ID,
		BranchID:  r.BranchID,
		Name:      r.Name,
		BasePrice: database.NumericToDecimal(r.BasePrice),
	}
	for _, v := range variants {
		mi.Variants = append(mi.Variants, model.Variant{Name: v.Name, Price: database.NumericToDecimal(v.Price)})
	}
	for _, a := range addons {
		mi.Addons = append(mi.Addons, model.Addon{Name: a.Name, Price: database.NumericToDecimal(a.Price)})
	}
	return mi
}

func orderIDs(rows []database.Order) []uuid.UUID {
	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}
