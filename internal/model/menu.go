package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MenuItem is a catalog entry as read from the menu store at cart-build time.
type MenuItem struct {
	ID        uuid.UUID
	BranchID  uuid.UUID
	Name      string
	BasePrice decimal.Decimal
	Variants  []Variant
	Addons    []Addon
}

// Variant replaces the base price when chosen.
type Variant struct {
	Name  string
	Price decimal.Decimal
}

// Addon is billed on top of the line's unit price.
type Addon struct {
	Name  string
	Price decimal.Decimal
}

// CartLine is a line being composed before the order exists.
type CartLine struct {
	MenuItem    MenuItem
	VariantName string
	Quantity    int
	Addons      []CartAddon
	Notes       string
}

// CartAddon is a chosen add-on. Quantity counts add-on instances on the
// whole line, not per unit of the item.
type CartAddon struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
}
