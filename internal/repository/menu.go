package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kiwari-pos/backoffice/internal/database"
	"github.com/kiwari-pos/backoffice/internal/model"
)

// MenuQuerier defines the database methods needed to load a menu item.
// Satisfied by *database.Queries, inside or outside a transaction.
type MenuQuerier interface {
	GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	ListMenuItemVariants(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemVariant, error)
	ListMenuItemAddons(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemAddon, error)
}

// LoadMenuItem loads an active menu item of a branch with its variants and
// add-ons. Unknown or inactive items give model.ErrNotFound.
func LoadMenuItem(ctx context.Context, q MenuQuerier, branchID, id uuid.UUID) (model.MenuItem, error) {
	row, err := q.GetMenuItem(ctx, database.GetMenuItemParams{ID: id, BranchID: branchID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.MenuItem{}, fmt.Errorf("menu item %s: %w", id, model.ErrNotFound)
		}
		return model.MenuItem{}, storeError("get menu item", err)
	}
	variants, err := q.ListMenuItemVariants(ctx, id)
	if err != nil {
		return model.MenuItem{}, storeError("list variants", err)
	}
	addons, err := q.ListMenuItemAddons(ctx, id)
	if err != nil {
		return model.MenuItem{}, storeError("list addons", err)
	}
	return MenuItemFromRows(row, variants, addons), nil
}

// MenuCache memoises LoadMenuItem for the lifetime of one request, so a
// cart naming the same item twice hits the store once.
type MenuCache struct {
	q        MenuQuerier
	branchID uuid.UUID
	items    map[uuid.UUID]model.MenuItem
}

func NewMenuCache(q MenuQuerier, branchID uuid.UUID) *MenuCache {
	return &MenuCache{q: q, branchID: branchID, items: map[uuid.UUID]model.MenuItem{}}
}

func (c *MenuCache) Get(ctx context.Context, id uuid.UUID) (model.MenuItem, error) {
	if mi, ok := c.items[id]; ok {
		return mi, nil
	}
	mi, err := LoadMenuItem(ctx, c.q, c.branchID, id)
	if err != nil {
		return model.MenuItem{}, err
	}
	c.items[id] = mi
	return mi, nil
}
