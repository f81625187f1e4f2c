package database

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type MenuItem struct {
	ID        uuid.UUID          `json:"id"`
	BranchID  uuid.UUID          `json:"branch_id"`
	Name      string             `json:"name"`
	BasePrice pgtype.Numeric     `json:"base_price"`
	IsActive  bool               `json:"is_active"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}

type MenuItemAddon struct {
	ID         uuid.UUID      `json:"id"`
	MenuItemID uuid.UUID      `json:"menu_item_id"`
	Name       string         `json:"name"`
	Price      pgtype.Numeric `json:"price"`
}

type MenuItemVariant struct {
	ID         uuid.UUID      `json:"id"`
	MenuItemID uuid.UUID      `json:"menu_item_id"`
	Name       string         `json:"name"`
	Price      pgtype.Numeric `json:"price"`
	SortOrder  int32          `json:"sort_order"`
}

type Order struct {
	ID               uuid.UUID          `json:"id"`
	BranchID         uuid.UUID          `json:"branch_id"`
	OrderNumber      string             `json:"order_number"`
	CustomerName     string             `json:"customer_name"`
	CustomerPhone    string             `json:"customer_phone"`
	CustomerEmail    string             `json:"customer_email"`
	Channel          string             `json:"channel"`
	DeliveryType     string             `json:"delivery_type"`
	DeliveryAddress  pgtype.Text        `json:"delivery_address"`
	Subtotal         pgtype.Numeric     `json:"subtotal"`
	DeliveryFee      pgtype.Numeric     `json:"delivery_fee"`
	TotalAmount      pgtype.Numeric     `json:"total_amount"`
	PaymentMethod    pgtype.Text        `json:"payment_method"`
	PaymentReference pgtype.Text        `json:"payment_reference"`
	Notes            pgtype.Text        `json:"notes"`
	Status           string             `json:"status"`
	PaidAt           pgtype.Timestamptz `json:"paid_at"`
	ReadyAt          pgtype.Timestamptz `json:"ready_at"`
	DispatchedAt     pgtype.Timestamptz `json:"dispatched_at"`
	DeliveredAt      pgtype.Timestamptz `json:"delivered_at"`
	CreatedBy        uuid.UUID          `json:"created_by"`
	CreatedAt        pgtype.Timestamptz `json:"created_at"`
	UpdatedAt        pgtype.Timestamptz `json:"updated_at"`
}

type OrderEvent struct {
	ID          uuid.UUID          `json:"id"`
	OrderID     uuid.UUID          `json:"order_id"`
	Status      string             `json:"status"`
	Description string             `json:"description"`
	OccurredAt  pgtype.Timestamptz `json:"occurred_at"`
	CreatedBy   pgtype.UUID        `json:"created_by"`
}

type OrderItem struct {
	ID          uuid.UUID      `json:"id"`
	OrderID     uuid.UUID      `json:"order_id"`
	MenuItemID  uuid.UUID      `json:"menu_item_id"`
	Name        string         `json:"name"`
	VariantName string         `json:"variant_name"`
	Quantity    int32          `json:"quantity"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
	TotalPrice  pgtype.Numeric `json:"total_price"`
	Notes       pgtype.Text    `json:"notes"`
}

type OrderItemAddon struct {
	ID          uuid.UUID      `json:"id"`
	OrderItemID uuid.UUID      `json:"order_item_id"`
	Name        string         `json:"name"`
	Price       pgtype.Numeric `json:"price"`
	Quantity    int32          `json:"quantity"`
}
