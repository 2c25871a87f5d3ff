// Package cart is the client-side pricing mirror: a running order projection
// kept by the POS terminal for display and pre-validation. It is never the
// source of truth, since the sale engine re-prices everything from the
// catalog at checkout, but it must round exactly like the server. Both go
// through the pricing package for that reason.
package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"qahwa-pos/internal/database/models"
	"qahwa-pos/internal/pricing"
)

// Item is one prospective sale line. BasePrice, VATAmount and LineTotal are
// line-level amounts, recomputed from UnitPrice and Quantity on every
// mutation of the cart.
type Item struct {
	LineID    string
	ProductID string
	Name      string
	UnitPrice decimal.Decimal // tax-inclusive, frozen at add time
	Quantity  int
	BasePrice decimal.Decimal
	VATAmount decimal.Decimal
	LineTotal decimal.Decimal
}

// Cart holds the lines and their aggregate totals. Not safe for concurrent
// use; a cart belongs to a single terminal session.
type Cart struct {
	items []Item

	TotalExVAT  decimal.Decimal
	TotalVAT    decimal.Decimal
	TotalAmount decimal.Decimal
}

func New() *Cart {
	c := &Cart{}
	c.recalculate()
	return c
}

// AddItem merges into an existing line for the same product, or appends a new
// line frozen at the product's current price. Quantities below 1 count as 1.
func (c *Cart) AddItem(product models.Product, quantity int) {
	if quantity < 1 {
		quantity = 1
	}

	for i := range c.items {
		if c.items[i].ProductID == product.ID {
			c.items[i].Quantity += quantity
			c.recalculate()
			return
		}
	}

	c.items = append(c.items, Item{
		LineID:    uuid.NewString(),
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  quantity,
	})
	c.recalculate()
}

// RemoveItem drops the line with the given id. Unknown ids are a no-op.
func (c *Cart) RemoveItem(lineID string) {
	kept := c.items[:0]
	for _, item := range c.items {
		if item.LineID != lineID {
			kept = append(kept, item)
		}
	}
	c.items = kept
	c.recalculate()
}

// UpdateQuantity sets a line's quantity; zero or negative removes the line.
func (c *Cart) UpdateQuantity(lineID string, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(lineID)
		return
	}
	for i := range c.items {
		if c.items[i].LineID == lineID {
			c.items[i].Quantity = quantity
			break
		}
	}
	c.recalculate()
}

func (c *Cart) Clear() {
	c.items = nil
	c.recalculate()
}

// Items returns a copy of the current lines in insertion order.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Len() int { return len(c.items) }

// Fee reports the merchant fee the chosen payment method would cost on the
// current cart. Display-only: it is never added to TotalAmount.
func (c *Cart) Fee(method models.PaymentMethod) decimal.Decimal {
	return pricing.Fee(c.TotalExVAT, method)
}

// recalculate reprices every line and resums the aggregates from scratch.
// Totals are never adjusted incrementally, so they cannot drift from the
// lines.
func (c *Cart) recalculate() {
	lines := make([]pricing.Line, len(c.items))
	for i := range c.items {
		line := pricing.SplitLine(c.items[i].UnitPrice, c.items[i].Quantity)
		c.items[i].BasePrice = line.Base
		c.items[i].VATAmount = line.VAT
		c.items[i].LineTotal = line.Gross
		lines[i] = line
	}

	totals := pricing.Accumulate(lines)
	c.TotalExVAT = totals.Subtotal
	c.TotalVAT = totals.VAT
	c.TotalAmount = totals.Total
}
