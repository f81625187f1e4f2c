// Package repository reads order and menu graphs out of the database rows
// and hands them to the rest of the app as model values.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kiwari-pos/backoffice/internal/database"
	"github.com/kiwari-pos/backoffice/internal/model"
	"github.com/rs/zerolog"
)

// OrderQuerier defines the database methods needed to load orders.
// Satisfied by *database.Queries.
type OrderQuerier interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrdersInRange(ctx context.Context, arg database.ListOrdersInRangeParams) ([]database.Order, error)
	ListOrderItemsByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]database.OrderItem, error)
	ListOrderItemAddonsByItemIDs(ctx context.Context, itemIDs []uuid.UUID) ([]database.OrderItemAddon, error)
	ListOrderEvents(ctx context.Context, orderID uuid.UUID) ([]database.OrderEvent, error)
}

// ListFilter narrows ListOrders. Nil fields are not filtered on.
type ListFilter struct {
	BranchID uuid.UUID
	Status   *model.OrderStatus
	From     *time.Time
	To       *time.Time
	Limit    int32
	Offset   int32
}

// OrderRepository loads orders with their items, add-ons and events.
type OrderRepository struct {
	q      OrderQuerier
	logger zerolog.Logger
}

// NewOrderRepository creates an OrderRepository.
func NewOrderRepository(q OrderQuerier, logger zerolog.Logger) *OrderRepository {
	return &OrderRepository{
		q:      q,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// storeError maps no-rows to model.ErrNotFound and everything else to
// model.ErrUpstreamUnavailable.
func storeError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", model.ErrUpstreamUnavailable, op, err)
}

// GetOrder loads one order of a branch with items and timeline events.
func (r *OrderRepository) GetOrder(ctx context.Context, branchID, id uuid.UUID) (model.Order, error) {
	row, err := r.q.GetOrder(ctx, database.GetOrderParams{ID: id, BranchID: branchID})
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		}
		return model.Order{}, storeError("get order", err)
	}

	orders, err := r.attachItems(ctx, []database.Order{row})
	if err != nil {
		return model.Order{}, err
	}
	o := orders[0]

	events, err := r.q.ListOrderEvents(ctx, id)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to list order events")
		return model.Order{}, storeError("list order events", err)
	}
	for _, ev := range events {
		o.Events = append(o.Events, EventFromRow(ev))
	}
	return o, nil
}

// ListOrders returns a page of a branch's orders, newest first, with items.
func (r *OrderRepository) ListOrders(ctx context.Context, f ListFilter) ([]model.Order, error) {
	params := database.ListOrdersParams{
		BranchID:  f.BranchID,
		StartTime: database.TimestamptzPtr(f.From),
		EndTime:   database.TimestamptzPtr(f.To),
		Limit:     f.Limit,
		Offset:    f.Offset,
	}
	if f.Status != nil {
		params.Status = database.Text(string(*f.Status))
	}
	if params.Limit <= 0 {
		params.Limit = 50
	}

	rows, err := r.q.ListOrders(ctx, params)
	if err != nil {
		r.logger.Error().Err(err).Str("branch_id", f.BranchID.String()).Msg("failed to list orders")
		return nil, storeError("list orders", err)
	}
	return r.attachItems(ctx, rows)
}

// ListOrdersInRange returns every order of a branch created in [from, to).
func (r *OrderRepository) ListOrdersInRange(ctx context.Context, branchID uuid.UUID, from, to time.Time) ([]model.Order, error) {
	rows, err := r.q.ListOrdersInRange(ctx, database.ListOrdersInRangeParams{
		BranchID:  branchID,
		StartTime: database.Timestamptz(from),
		EndTime:   database.Timestamptz(to),
	})
	if err != nil {
		r.logger.Error().Err(err).Str("branch_id", branchID.String()).Msg("failed to list orders in range")
		return nil, storeError("list orders in range", err)
	}
	return r.attachItems(ctx, rows)
}

// attachItems converts rows and loads their items and add-ons in two
// queries regardless of how many orders there are.
func (r *OrderRepository) attachItems(ctx context.Context, rows []database.Order) ([]model.Order, error) {
	out := make([]model.Order, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	itemRows, err := r.q.ListOrderItemsByOrderIDs(ctx, orderIDs(rows))
	if err != nil {
		r.logger.Error().Err(err).Int("orders", len(rows)).Msg("failed to list order items")
		return nil, storeError("list order items", err)
	}

	var addonRows []database.OrderItemAddon
	if len(itemRows) > 0 {
		itemIDs := make([]uuid.UUID, len(itemRows))
		for i, it := range itemRows {
			itemIDs[i] = it.ID
		}
		addonRows, err = r.q.ListOrderItemAddonsByItemIDs(ctx, itemIDs)
		if err != nil {
			r.logger.Error().Err(err).Int("items", len(itemRows)).Msg("failed to list order item addons")
			return nil, storeError("list order item addons", err)
		}
	}

	addonsByItem := make(map[uuid.UUID][]database.OrderItemAddon)
	for _, a := range addonRows {
		addonsByItem[a.OrderItemID] = append(addonsByItem[a.OrderItemID], a)
	}
	itemsByOrder := make(map[uuid.UUID][]model.OrderItem)
	for _, it := range itemRows {
		itemsByOrder[it.OrderID] = append(itemsByOrder[it.OrderID], ItemFromRow(it, addonsByItem[it.ID]))
	}

	for i, row := range rows {
		o := OrderFromRow(row)
		o.Items = itemsByOrder[row.ID]
		out[i] = o
	}
	return out, nil
}
