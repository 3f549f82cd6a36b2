// Package cart holds the in-flight sale of a single terminal session.
package cart

import (
	"fmt"

	"familypos/backend/internal/domain"
	"familypos/backend/internal/pricing"
)

// Catalog is the live product view a cart checks quantities against.
type Catalog interface {
	Product(id string) (domain.Product, bool)
}

type Cart struct {
	lines         []domain.CartLine
	customerID    string
	customerClass domain.CustomerClass
}

func New() *Cart {
	return &Cart{customerClass: domain.ClassRetail}
}

// Add appends a new line at quantity 1 or increments an existing one.
// Unknown and out-of-stock products return ErrProductUnavailable and leave the
// cart untouched.
func (c *Cart) Add(cat Catalog, productID string) error {
	product, ok := cat.Product(productID)
	if !ok || product.Stock <= 0 {
		return fmt.Errorf("%w: %s", domain.ErrProductUnavailable, productID)
	}

	if idx := c.index(productID); idx >= 0 {
		next := c.lines[idx].Quantity + 1
		if next > product.Stock {
			return fmt.Errorf("%w: only %d of %s in stock", domain.ErrStockExceeded, product.Stock, product.Name)
		}
		c.lines[idx].Quantity = next
		return nil
	}

	c.lines = append(c.lines, domain.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		PriceTier: product.PriceTier,
		Quantity:  1,
	})
	return nil
}

// ChangeQuantity applies a +1 or -1 step. Dropping to zero removes the line.
func (c *Cart) ChangeQuantity(cat Catalog, productID string, delta int) error {
	if delta != 1 && delta != -1 {
		return fmt.Errorf("%w: delta must be +1 or -1", domain.ErrInvalidInput)
	}
	idx := c.index(productID)
	if idx < 0 {
		return nil
	}

	next := c.lines[idx].Quantity + delta
	if delta > 0 {
		product, ok := cat.Product(productID)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrProductUnavailable, productID)
		}
		if next > product.Stock {
			return fmt.Errorf("%w: only %d of %s in stock", domain.ErrStockExceeded, product.Stock, product.Name)
		}
	}
	if next <= 0 {
		c.Remove(productID)
		return nil
	}
	c.lines[idx].Quantity = next
	return nil
}

func (c *Cart) Remove(productID string) {
	idx := c.index(productID)
	if idx < 0 {
		return
	}
	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
}

// Clear empties the cart and resets the customer to walk-in retail.
func (c *Cart) Clear() {
	c.lines = nil
	c.customerID = ""
	c.customerClass = domain.ClassRetail
}

func (c *Cart) SetCustomer(customerID string, class domain.CustomerClass) {
	if customerID == domain.WalkInCustomerID {
		customerID = ""
	}
	if !class.Valid() {
		class = domain.ClassRetail
	}
	c.customerID = customerID
	c.customerClass = class
}

func (c *Cart) CustomerID() string {
	return c.customerID
}

func (c *Cart) CustomerClass() domain.CustomerClass {
	return c.customerClass
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Subtotal prices every line at the cart's current customer class.
func (c *Cart) Subtotal() int64 {
	var sum int64
	for _, line := range c.lines {
		sum += pricing.LineTotal(line.PriceTier, c.customerClass, line.Quantity)
	}
	return sum
}

// Total equals Subtotal; there is no discount or tax layer.
func (c *Cart) Total() int64 {
	return c.Subtotal()
}

func (c *Cart) Profit() int64 {
	var sum int64
	for _, line := range c.lines {
		sum += pricing.LineMargin(line.PriceTier, c.customerClass, line.Quantity)
	}
	return sum
}

func (c *Cart) State() domain.CartState {
	return domain.CartState{
		Lines:         c.Lines(),
		CustomerID:    c.customerID,
		CustomerClass: c.customerClass,
	}
}

// Restore replaces the cart contents with a previously captured state.
func (c *Cart) Restore(state domain.CartState) {
	c.Clear()
	c.lines = make([]domain.CartLine, 0, len(state.Lines))
	for _, line := range state.Lines {
		if line.Quantity <= 0 {
			continue
		}
		c.lines = append(c.lines, line)
	}
	c.SetCustomer(state.CustomerID, state.CustomerClass)
}

// View renders the cart with per-line prices at the current class.
func (c *Cart) View() domain.CartView {
	view := domain.CartView{
		Lines:         make([]domain.CartLineView, 0, len(c.lines)),
		CustomerID:    c.customerID,
		CustomerClass: c.customerClass,
		Subtotal:      c.Subtotal(),
		Total:         c.Total(),
		Profit:        c.Profit(),
	}
	for _, line := range c.lines {
		view.Lines = append(view.Lines, domain.CartLineView{
			CartLine:   line,
			UnitPrice:  pricing.UnitPrice(line.PriceTier, c.customerClass),
			UnitMargin: pricing.UnitMargin(line.PriceTier, c.customerClass),
			LineTotal:  pricing.LineTotal(line.PriceTier, c.customerClass, line.Quantity),
		})
	}
	return view
}

func (c *Cart) index(productID string) int {
	for i, line := range c.lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}
