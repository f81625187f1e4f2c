package pricing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/kiwari-pos/backoffice/internal/model"
	"github.com/shopspring/decimal"
)

// Cart is the caller-side list of lines being composed into an order.
// Lines are keyed by (menu item, variant); adding an existing key increases
// its quantity instead of appending a new line.
type Cart struct {
	lines []model.CartLine
}

func lineKeyMatches(l model.CartLine, menuItemID uuid.UUID, variantName string) bool {
	return l.MenuItem.ID == menuItemID && l.VariantName == variantName
}

func (c *Cart) find(menuItemID uuid.UUID, variantName string) int {
	for i, l := range c.lines {
		if lineKeyMatches(l, menuItemID, variantName) {
			return i
		}
	}
	return -1
}

// Add puts quantity units of item (optionally a variant) into the cart.
func (c *Cart) Add(item model.MenuItem, variantName string, quantity int, addons []model.CartAddon, notes string) error {
	if err := checkQuantity(quantity); err != nil {
		return err
	}
	if _, err := UnitPrice(item, variantName); err != nil {
		return err
	}
	if err := checkAddons(addons); err != nil {
		return err
	}

	if i := c.find(item.ID, variantName); i >= 0 {
		line := &c.lines[i]
		if err := checkQuantity(line.Quantity + quantity); err != nil {
			return err
		}
		merged := mergeAddons(line.Addons, addons)
		if err := checkAddons(merged); err != nil {
			return err
		}
		line.Quantity += quantity
		line.Addons = merged
		if line.Notes == "" {
			line.Notes = notes
		}
		return nil
	}

	c.lines = append(c.lines, model.CartLine{
		MenuItem:    item,
		VariantName: variantName,
		Quantity:    quantity,
		Addons:      mergeAddons(nil, addons),
		Notes:       notes,
	})
	return nil
}

// SetQuantity changes a line's quantity. Zero removes the line.
func (c *Cart) SetQuantity(menuItemID uuid.UUID, variantName string, quantity int) error {
	if quantity < 0 || quantity > MaxQuantity {
		return fmt.Errorf("%w: got %d", model.ErrInvalidQuantity, quantity)
	}
	i := c.find(menuItemID, variantName)
	if i < 0 {
		return fmt.Errorf("%w: cart line %s/%q", model.ErrNotFound, menuItemID, variantName)
	}
	if quantity == 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
		return nil
	}
	c.lines[i].Quantity = quantity
	return nil
}

// Decrement lowers a line's quantity by one, removing it at zero.
func (c *Cart) Decrement(menuItemID uuid.UUID, variantName string) error {
	i := c.find(menuItemID, variantName)
	if i < 0 {
		return fmt.Errorf("%w: cart line %s/%q", model.ErrNotFound, menuItemID, variantName)
	}
	return c.SetQuantity(menuItemID, variantName, c.lines[i].Quantity-1)
}

// Remove drops a line and reports whether it existed.
func (c *Cart) Remove(menuItemID uuid.UUID, variantName string) bool {
	i := c.find(menuItemID, variantName)
	if i < 0 {
		return false
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return true
}

// Lines returns a copy of the cart's lines in insertion order.
func (c *Cart) Lines() []model.CartLine {
	out := make([]model.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len is the number of distinct lines.
func (c *Cart) Len() int { return len(c.lines) }

// Totals prices the cart.
func (c *Cart) Totals(deliveryType model.DeliveryType, deliveryFee decimal.Decimal) (Totals, error) {
	return CartTotal(c.lines, deliveryType, deliveryFee)
}

// mergeAddons sums quantities of add-ons sharing a name, keeping first-seen order.
func mergeAddons(dst, src []model.CartAddon) []model.CartAddon {
	out := make([]model.CartAddon, len(dst), len(dst)+len(src))
	copy(out, dst)
	for _, a := range src {
		merged := false
		for i := range out {
			if out[i].Name == a.Name {
				out[i].Quantity += a.Quantity
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, a)
		}
	}
	return out
}
