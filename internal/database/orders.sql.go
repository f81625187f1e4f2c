package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, branch_id, order_number, customer_name, customer_phone, customer_email,
channel, delivery_type, delivery_address, subtotal, delivery_fee, total_amount,
payment_method, payment_reference, notes, status,
paid_at, ready_at, dispatched_at, delivered_at, created_by, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row scanner) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.BranchID,
		&i.OrderNumber,
		&i.CustomerName,
		&i.CustomerPhone,
		&i.CustomerEmail,
		&i.Channel,
		&i.DeliveryType,
		&i.DeliveryAddress,
		&i.Subtotal,
		&i.DeliveryFee,
		&i.TotalAmount,
		&i.PaymentMethod,
		&i.PaymentReference,
		&i.Notes,
		&i.Status,
		&i.PaidAt,
		&i.ReadyAt,
		&i.DispatchedAt,
		&i.DeliveredAt,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getNextOrderNumber = `-- name: GetNextOrderNumber :one
SELECT (COALESCE(MAX(CAST(SUBSTRING(order_number FROM 5) AS INTEGER)), 0) + 1)::int4
FROM orders
WHERE branch_id = $1
`

func (q *Queries) GetNextOrderNumber(ctx context.Context, branchID uuid.UUID) (int32, error) {
	row := q.db.QueryRow(ctx, getNextOrderNumber, branchID)
	var next int32
	err := row.Scan(&next)
	return next, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    branch_id, order_number, customer_name, customer_phone, customer_email,
    channel, delivery_type, delivery_address, subtotal, delivery_fee, total_amount,
    notes, status, created_by, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	BranchID        uuid.UUID          `json:"branch_id"`
	OrderNumber     string             `json:"order_number"`
	CustomerName    string             `json:"customer_name"`
	CustomerPhone   string             `json:"customer_phone"`
	CustomerEmail   string             `json:"customer_email"`
	Channel         string             `json:"channel"`
	DeliveryType    string             `json:"delivery_type"`
	DeliveryAddress pgtype.Text        `json:"delivery_address"`
	Subtotal        pgtype.Numeric     `json:"subtotal"`
	DeliveryFee     pgtype.Numeric     `json:"delivery_fee"`
	TotalAmount     pgtype.Numeric     `json:"total_amount"`
	Notes           pgtype.Text        `json:"notes"`
	Status          string             `json:"status"`
	CreatedBy       uuid.UUID          `json:"created_by"`
	CreatedAt       pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.BranchID,
		arg.OrderNumber,
		arg.CustomerName,
		arg.CustomerPhone,
		arg.CustomerEmail,
		arg.Channel,
		arg.DeliveryType,
		arg.DeliveryAddress,
		arg.Subtotal,
		arg.DeliveryFee,
		arg.TotalAmount,
		arg.Notes,
		arg.Status,
		arg.CreatedBy,
		arg.CreatedAt,
	)
	return scanOrder(row)
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, menu_item_id, name, variant_name, quantity, unit_price, total_price, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, order_id, menu_item_id, name, variant_name, quantity, unit_price, total_price, notes
`

type CreateOrderItemParams struct {
	OrderID     uuid.UUID      `json:"order_id"`
	MenuItemID  uuid.UUID      `json:"menu_item_id"`
	Name        string         `json:"name"`
	VariantName string         `json:"variant_name"`
	Quantity    int32          `json:"quantity"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
	TotalPrice  pgtype.Numeric `json:"total_price"`
	Notes       pgtype.Text    `json:"notes"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.MenuItemID,
		arg.Name,
		arg.VariantName,
		arg.Quantity,
		arg.UnitPrice,
		arg.TotalPrice,
		arg.Notes,
	)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.MenuItemID,
		&i.Name,
		&i.VariantName,
		&i.Quantity,
		&i.UnitPrice,
		&i.TotalPrice,
		&i.Notes,
	)
	return i, err
}

const createOrderItemAddon = `-- name: CreateOrderItemAddon :one
INSERT INTO order_item_addons (order_item_id, name, price, quantity)
VALUES ($1, $2, $3, $4)
RETURNING id, order_item_id, name, price, quantity
`

type CreateOrderItemAddonParams struct {
	OrderItemID uuid.UUID      `json:"order_item_id"`
	Name        string         `json:"name"`
	Price       pgtype.Numeric `json:"price"`
	Quantity    int32          `json:"quantity"`
}

func (q *Queries) CreateOrderItemAddon(ctx context.Context, arg CreateOrderItemAddonParams) (OrderItemAddon, error) {
	row := q.db.QueryRow(ctx, createOrderItemAddon,
		arg.OrderItemID,
		arg.Name,
		arg.Price,
		arg.Quantity,
	)
	var i OrderItemAddon
	err := row.Scan(
		&i.ID,
		&i.OrderItemID,
		&i.Name,
		&i.Price,
		&i.Quantity,
	)
	return i, err
}

const createOrderEvent = `-- name: CreateOrderEvent :one
INSERT INTO order_events (order_id, status, description, occurred_at, created_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, order_id, status, description, occurred_at, created_by
`

type CreateOrderEventParams struct {
	OrderID     uuid.UUID          `json:"order_id"`
	Status      string             `json:"status"`
	Description string             `json:"description"`
	OccurredAt  pgtype.Timestamptz `json:"occurred_at"`
	CreatedBy   pgtype.UUID        `json:"created_by"`
}

func (q *Queries) CreateOrderEvent(ctx context.Context, arg CreateOrderEventParams) (OrderEvent, error) {
	row := q.db.QueryRow(ctx, createOrderEvent,
		arg.OrderID,
		arg.Status,
		arg.Description,
		arg.OccurredAt,
		arg.CreatedBy,
	)
	var i OrderEvent
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Status,
		&i.Description,
		&i.OccurredAt,
		&i.CreatedBy,
	)
	return i, err
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND branch_id = $2
`

type GetOrderParams struct {
	ID       uuid.UUID `json:"id"`
	BranchID uuid.UUID `json:"branch_id"`
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, arg.ID, arg.BranchID)
	return scanOrder(row)
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + `
FROM orders
WHERE branch_id = $1
  AND ($2::text IS NULL OR status = $2)
  AND ($3::timestamptz IS NULL OR created_at >= $3)
  AND ($4::timestamptz IS NULL OR created_at < $4)
ORDER BY created_at DESC
LIMIT $5 OFFSET $6
`

type ListOrdersParams struct {
	BranchID  uuid.UUID          `json:"branch_id"`
	Status    pgtype.Text        `json:"status"`
	StartTime pgtype.Timestamptz `json:"start_time"`
	EndTime   pgtype.Timestamptz `json:"end_time"`
	Limit     int32              `json:"limit"`
	Offset    int32              `json:"offset"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.BranchID,
		arg.Status,
		arg.StartTime,
		arg.EndTime,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrdersInRange = `-- name: ListOrdersInRange :many
SELECT ` + orderColumns + `
FROM orders
WHERE branch_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at
`

type ListOrdersInRangeParams struct {
	BranchID  uuid.UUID          `json:"branch_id"`
	StartTime pgtype.Timestamptz `json:"start_time"`
	EndTime   pgtype.Timestamptz `json:"end_time"`
}

func (q *Queries) ListOrdersInRange(ctx context.Context, arg ListOrdersInRangeParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersInRange, arg.BranchID, arg.StartTime, arg.EndTime)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrderItemsByOrderIDs = `-- name: ListOrderItemsByOrderIDs :many
SELECT id, order_id, menu_item_id, name, variant_name, quantity, unit_price, total_price, notes
FROM order_items
WHERE order_id = ANY($1::uuid[])
ORDER BY order_id, id
`

func (q *Queries) ListOrderItemsByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrderIDs, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.MenuItemID,
			&i.Name,
			&i.VariantName,
			&i.Quantity,
			&i.UnitPrice,
			&i.TotalPrice,
			&i.Notes,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrderItemAddonsByItemIDs = `-- name: ListOrderItemAddonsByItemIDs :many
SELECT id, order_item_id, name, price, quantity
FROM order_item_addons
WHERE order_item_id = ANY($1::uuid[])
ORDER BY order_item_id, name
`

func (q *Queries) ListOrderItemAddonsByItemIDs(ctx context.Context, itemIDs []uuid.UUID) ([]OrderItemAddon, error) {
	rows, err := q.db.Query(ctx, listOrderItemAddonsByItemIDs, itemIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItemAddon
	for rows.Next() {
		var i OrderItemAddon
		if err := rows.Scan(
			&i.ID,
			&i.OrderItemID,
			&i.Name,
			&i.Price,
			&i.Quantity,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrderEvents = `-- name: ListOrderEvents :many
SELECT id, order_id, status, description, occurred_at, created_by
FROM order_events
WHERE order_id = $1
ORDER BY occurred_at, id
`

func (q *Queries) ListOrderEvents(ctx context.Context, orderID uuid.UUID) ([]OrderEvent, error) {
	rows, err := q.db.Query(ctx, listOrderEvents, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderEvent
	for rows.Next() {
		var i OrderEvent
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.Status,
			&i.Description,
			&i.OccurredAt,
			&i.CreatedBy,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders SET
    status            = $4,
    paid_at           = COALESCE(paid_at, $5),
    ready_at          = COALESCE(ready_at, $6),
    dispatched_at     = COALESCE(dispatched_at, $7),
    delivered_at      = COALESCE(delivered_at, $8),
    payment_method    = COALESCE(payment_method, $9),
    payment_reference = COALESCE(payment_reference, $10),
    updated_at        = $11
WHERE id = $1 AND branch_id = $2 AND status = $3
RETURNING ` + orderColumns

// UpdateOrderStatusParams drives a compare-and-set: the row only changes
// while its status still equals ExpectedStatus. Timestamps and payment
// details already set are kept.
type UpdateOrderStatusParams struct {
	ID               uuid.UUID          `json:"id"`
	BranchID         uuid.UUID          `json:"branch_id"`
	ExpectedStatus   string             `json:"expected_status"`
	Status           string             `json:"status"`
	PaidAt           pgtype.Timestamptz `json:"paid_at"`
	ReadyAt          pgtype.Timestamptz `json:"ready_at"`
	DispatchedAt     pgtype.Timestamptz `json:"dispatched_at"`
	DeliveredAt      pgtype.Timestamptz `json:"delivered_at"`
	PaymentMethod    pgtype.Text        `json:"payment_method"`
	PaymentReference pgtype.Text        `json:"payment_reference"`
	UpdatedAt        pgtype.Timestamptz `json:"updated_at"`
}

// UpdateOrderStatus returns pgx.ErrNoRows when the order is missing or its
// status moved on since it was read.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus,
		arg.ID,
		arg.BranchID,
		arg.ExpectedStatus,
		arg.Status,
		arg.PaidAt,
		arg.ReadyAt,
		arg.DispatchedAt,
		arg.DeliveredAt,
		arg.PaymentMethod,
		arg.PaymentReference,
		arg.UpdatedAt,
	)
	return scanOrder(row)
}
