package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createMenuItem = `-- name: CreateMenuItem :one
INSERT INTO menu_items (branch_id, name, base_price)
VALUES ($1, $2, $3)
RETURNING id, branch_id, name, base_price, is_active, created_at, updated_at
`

type CreateMenuItemParams struct {
	BranchID  uuid.UUID      `json:"branch_id"`
	Name      string         `json:"name"`
	BasePrice pgtype.Numeric `json:"base_price"`
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, createMenuItem, arg.BranchID, arg.Name, arg.BasePrice)
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.BranchID,
		&i.Name,
		&i.BasePrice,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createMenuItemAddon = `-- name: CreateMenuItemAddon :one
INSERT INTO menu_item_addons (menu_item_id, name, price)
VALUES ($1, $2, $3)
RETURNING id, menu_item_id, name, price
`

type CreateMenuItemAddonParams struct {
	MenuItemID uuid.UUID      `json:"menu_item_id"`
	Name       string         `json:"name"`
	Price      pgtype.Numeric `json:"price"`
}

func (q *Queries) CreateMenuItemAddon(ctx context.Context, arg CreateMenuItemAddonParams) (MenuItemAddon, error) {
	row := q.db.QueryRow(ctx, createMenuItemAddon, arg.MenuItemID, arg.Name, arg.Price)
	var i MenuItemAddon
	err := row.Scan(
		&i.ID,
		&i.MenuItemID,
		&i.Name,
		&i.Price,
	)
	return i, err
}

const createMenuItemVariant = `-- name: CreateMenuItemVariant :one
INSERT INTO menu_item_variants (menu_item_id, name, price, sort_order)
VALUES ($1, $2, $3, $4)
RETURNING id, menu_item_id, name, price, sort_order
`

type CreateMenuItemVariantParams struct {
	MenuItemID uuid.UUID      `json:"menu_item_id"`
	Name       string         `json:"name"`
	Price      pgtype.Numeric `json:"price"`
	SortOrder  int32          `json:"sort_order"`
}

func (q *Queries) CreateMenuItemVariant(ctx context.Context, arg CreateMenuItemVariantParams) (MenuItemVariant, error) {
	row := q.db.QueryRow(ctx, createMenuItemVariant,
		arg.MenuItemID,
		arg.Name,
		arg.Price,
		arg.SortOrder,
	)
	var i MenuItemVariant
	err := row.Scan(
		&i.ID,
		&i.MenuItemID,
		&i.Name,
		&i.Price,
		&i.SortOrder,
	)
	return i, err
}

const getMenuItem = `-- name: GetMenuItem :one
SELECT id, branch_id, name, base_price, is_active, created_at, updated_at
FROM menu_items
WHERE id = $1 AND branch_id = $2 AND is_active = true
`

type GetMenuItemParams struct {
	ID       uuid.UUID `json:"id"`
	BranchID uuid.UUID `json:"branch_id"`
}

func (q *Queries) GetMenuItem(ctx context.Context, arg GetMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, getMenuItem, arg.ID, arg.BranchID)
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.BranchID,
		&i.Name,
		&i.BasePrice,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listMenuItemAddons = `-- name: ListMenuItemAddons :many
SELECT id, menu_item_id, name, price
FROM menu_item_addons
WHERE menu_item_id = $1
ORDER BY name
`

func (q *Queries) ListMenuItemAddons(ctx context.Context, menuItemID uuid.UUID) ([]MenuItemAddon, error) {
	rows, err := q.db.Query(ctx, listMenuItemAddons, menuItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItemAddon
	for rows.Next() {
		var i MenuItemAddon
		if err := rows.Scan(
			&i.ID,
			&i.MenuItemID,
			&i.Name,
			&i.Price,
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

const listMenuItemVariants = `-- name: ListMenuItemVariants :many
SELECT id, menu_item_id, name, price, sort_order
FROM menu_item_variants
WHERE menu_item_id = $1
ORDER BY sort_order, name
`

func (q *Queries) ListMenuItemVariants(ctx context.Context, menuItemID uuid.UUID) ([]MenuItemVariant, error) {
	rows, err := q.db.Query(ctx, listMenuItemVariants, menuItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItemVariant
	for rows.Next() {
		var i MenuItemVariant
		if err := rows.Scan(
			&i.ID,
			&i.MenuItemID,
			&i.Name,
			&i.Price,
			&i.SortOrder,
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
