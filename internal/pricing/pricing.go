// Package pricing turns menu items and cart lines into prices. Everything here
// is a pure function of its arguments.
package pricing

import (
	"fmt"
	"math"

	"github.com/kiwari-pos/backoffice/internal/model"
	"github.com/shopspring/decimal"
)

// Totals is the priced result of a cart.
type Totals struct {
	Lines       []decimal.Decimal
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// UnitPrice returns the price of the named variant, or the base price when
// variantName is empty.
func UnitPrice(item model.MenuItem, variantName string) (decimal.Decimal, error) {
	if variantName == "" {
		return item.BasePrice, nil
	}
	for _, v := range item.Variants {
		if v.Name == variantName {
			return v.Price, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: variant %q of %q", model.ErrNotFound, variantName, item.Name)
}

// FindAddon looks up an add-on of item by name.
func FindAddon(item model.MenuItem, name string) (model.Addon, error) {
	for _, a := range item.Addons {
		if a.Name == name {
			return a, nil
		}
	}
	return model.Addon{}, fmt.Errorf("%w: addon %q of %q", model.ErrNotFound, name, item.Name)
}

// MaxQuantity bounds line and add-on quantities so they fit the int32 columns
// an order item is stored in.
const MaxQuantity = math.MaxInt32

func checkQuantity(quantity int) error {
	if quantity <= 0 || quantity > MaxQuantity {
		return fmt.Errorf("%w: got %d", model.ErrInvalidQuantity, quantity)
	}
	return nil
}

func checkAddons(addons []model.CartAddon) error {
	for _, a := range addons {
		if a.Quantity <= 0 || a.Quantity > MaxQuantity {
			return fmt.Errorf("%w: addon %q quantity %d", model.ErrInvalidQuantity, a.Name, a.Quantity)
		}
	}
	return nil
}

// LineTotal is quantity x unitPrice plus price x quantity of every add-on.
func LineTotal(unitPrice decimal.Decimal, quantity int, addons []model.CartAddon) (decimal.Decimal, error) {
	if err := checkQuantity(quantity); err != nil {
		return decimal.Zero, err
	}
	if err := checkAddons(addons); err != nil {
		return decimal.Zero, err
	}
	total := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	for _, a := range addons {
		total = total.Add(a.Price.Mul(decimal.NewFromInt(int64(a.Quantity))))
	}
	return total, nil
}

// EffectiveDeliveryFee forces the fee to zero unless the order is delivered.
func EffectiveDeliveryFee(deliveryType model.DeliveryType, fee decimal.Decimal) (decimal.Decimal, error) {
	if deliveryType != model.DeliveryTypeDelivery {
		return decimal.Zero, nil
	}
	if fee.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: delivery_fee %s", model.ErrInvalidAmount, fee.StringFixed(2))
	}
	return fee, nil
}

// CartTotal prices every line and adds the effective delivery fee.
func CartTotal(lines []model.CartLine, deliveryType model.DeliveryType, deliveryFee decimal.Decimal) (Totals, error) {
	fee, err := EffectiveDeliveryFee(deliveryType, deliveryFee)
	if err != nil {
		return Totals{}, err
	}

	t := Totals{
		Lines:       make([]decimal.Decimal, len(lines)),
		Subtotal:    decimal.Zero,
		DeliveryFee: fee,
	}
	for i, line := range lines {
		unit, err := UnitPrice(line.MenuItem, line.VariantName)
		if err != nil {
			return Totals{}, fmt.Errorf("line[%d]: %w", i, err)
		}
		lt, err := LineTotal(unit, line.Quantity, line.Addons)
		if err != nil {
			return Totals{}, fmt.Errorf("line[%d]: %w", i, err)
		}
		t.Lines[i] = lt
		t.Subtotal = t.Subtotal.Add(lt)
	}
	t.Total = t.Subtotal.Add(fee)
	return t, nil
}

// Snapshot freezes a cart line into an order item. TotalPrice excludes
// add-ons, which keep their own price and quantity.
func Snapshot(line model.CartLine) (model.OrderItem, error) {
	unit, err := UnitPrice(line.MenuItem, line.VariantName)
	if err != nil {
		return model.OrderItem{}, err
	}
	if _, err := LineTotal(unit, line.Quantity, line.Addons); err != nil {
		return model.OrderItem{}, err
	}

	item := model.OrderItem{
		MenuItemID:  line.MenuItem.ID,
		Name:        line.MenuItem.Name,
		VariantName: line.VariantName,
		Quantity:    int32(line.Quantity),
		UnitPrice:   unit,
		TotalPrice:  unit.Mul(decimal.NewFromInt(int64(line.Quantity))),
		Notes:       line.Notes,
	}
	for _, a := range line.Addons {
		item.Addons = append(item.Addons, model.OrderItemAddon{
			Name:     a.Name,
			Price:    a.Price,
			Quantity: int32(a.Quantity),
		})
	}
	return item, nil
}
