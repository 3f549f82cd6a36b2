package pricing

import (
	"testing"

	"familypos/backend/internal/domain"
)

func TestUnitPriceSelectsTierByClass(t *testing.T) {
	tier := domain.PriceTier{PurchasePrice: 300, BulkPrice: 420, IndividualPrice: 500}

	if got := UnitPrice(tier, domain.ClassRetail); got != 500 {
		t.Fatalf("expected retail price 500, got %d", got)
	}
	if got := UnitPrice(tier, domain.ClassWholesale); got != 420 {
		t.Fatalf("expected wholesale price 420, got %d", got)
	}
	if got := UnitPrice(tier, ""); got != 500 {
		t.Fatalf("expected unset class to price as retail, got %d", got)
	}
}

func TestUnitMarginDefaultsMissingPricesToZero(t *testing.T) {
	if got := UnitMargin(domain.PriceTier{IndividualPrice: 800}, domain.ClassRetail); got != 800 {
		t.Fatalf("expected margin 800 with no purchase price, got %d", got)
	}
	if got := UnitMargin(domain.PriceTier{PurchasePrice: 300}, domain.ClassWholesale); got != -300 {
		t.Fatalf("expected margin -300 with no bulk price, got %d", got)
	}
}

func TestLineTotals(t *testing.T) {
	tier := domain.PriceTier{PurchasePrice: 300, BulkPrice: 420, IndividualPrice: 500}
	if got := LineTotal(tier, domain.ClassRetail, 3); got != 1500 {
		t.Fatalf("expected line total 1500, got %d", got)
	}
	if got := LineMargin(tier, domain.ClassRetail, 3); got != 600 {
		t.Fatalf("expected line margin 600, got %d", got)
	}
}
