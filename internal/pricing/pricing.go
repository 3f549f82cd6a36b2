// Package pricing resolves the per-unit price and margin of a product or cart
// line for a customer class.
package pricing

import "familypos/backend/internal/domain"

// UnitPrice returns the bulk price for wholesale customers and the individual
// price for everyone else.
func UnitPrice(tier domain.PriceTier, class domain.CustomerClass) int64 {
	if class == domain.ClassWholesale {
		return tier.BulkPrice
	}
	return tier.IndividualPrice
}

func UnitMargin(tier domain.PriceTier, class domain.CustomerClass) int64 {
	return UnitPrice(tier, class) - tier.PurchasePrice
}

// LineTotal is the extended price of qty units.
func LineTotal(tier domain.PriceTier, class domain.CustomerClass, qty int) int64 {
	return UnitPrice(tier, class) * int64(qty)
}

func LineMargin(tier domain.PriceTier, class domain.CustomerClass, qty int) int64 {
	return UnitMargin(tier, class) * int64(qty)
}
