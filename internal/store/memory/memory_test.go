package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"familypos/backend/internal/domain"
	"familypos/backend/internal/store"
)

var zeroTime time.Time

func saleFor(lines ...domain.SaleLine) domain.Sale {
	var total int64
	for _, l := range lines {
		total += l.LineTotal
	}
	return domain.Sale{
		Lines:         lines,
		CustomerID:    domain.WalkInCustomerID,
		CustomerName:  domain.WalkInCustomerName,
		CustomerClass: domain.ClassRetail,
		TotalAmount:   total,
		PaymentMethod: domain.PaymentCash,
		CashReceived:  total,
	}
}

func TestCommitSaleAppliesAllEffects(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	sale := saleFor(domain.SaleLine{ProductID: "prod-milk-tea", Name: "Milk Tea", Quantity: 3, UnitPrice: 1200, LineTotal: 3600})
	sale.CustomerID = "cust-daw-mya"
	sale.PaymentMethod = domain.PaymentCredit
	sale.CashReceived = 0
	sale.CreditPayment = 3600

	saved, err := s.CommitSale(ctx, sale)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if saved.ID == "" || saved.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", saved)
	}

	product, _ := s.GetProduct(ctx, "prod-milk-tea")
	if product.Stock != 37 || product.SalesCount != 3 {
		t.Fatalf("expected stock 37 sales 3, got %d/%d", product.Stock, product.SalesCount)
	}
	customer, _ := s.GetCustomer(ctx, "cust-daw-mya")
	if customer.Credit != 3600 {
		t.Fatalf("expected credit 3600, got %d", customer.Credit)
	}
	if _, err := s.GetSale(ctx, saved.ID); err != nil {
		t.Fatalf("get sale: %v", err)
	}
}

func TestCommitSaleIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	sale := saleFor(
		domain.SaleLine{ProductID: "prod-milk-tea", Name: "Milk Tea", Quantity: 2, LineTotal: 2400},
		domain.SaleLine{ProductID: "prod-candle-set", Name: "Birthday Candle Set", Quantity: 5, LineTotal: 3500},
	)
	if _, err := s.CommitSale(ctx, sale); !errors.Is(err, store.ErrConcurrentStockChange) {
		t.Fatalf("expected ErrConcurrentStockChange, got %v", err)
	}

	tea, _ := s.GetProduct(ctx, "prod-milk-tea")
	if tea.Stock != 40 || tea.SalesCount != 0 {
		t.Fatalf("expected milk tea untouched, got stock=%d sales=%d", tea.Stock, tea.SalesCount)
	}
	sales, _ := s.ListSales(ctx, zeroTime, zeroTime)
	if len(sales) != 0 {
		t.Fatalf("expected no sale appended, got %d", len(sales))
	}

	if err := s.DeleteProduct(ctx, "prod-candle-set"); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	vanished := saleFor(domain.SaleLine{ProductID: "prod-candle-set", Quantity: 1, LineTotal: 700})
	if _, err := s.CommitSale(ctx, vanished); !errors.Is(err, store.ErrConcurrentStockChange) {
		t.Fatalf("expected ErrConcurrentStockChange for vanished product, got %v", err)
	}
}

func TestCommitSaleRejectsUnknownCreditCustomer(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	sale := saleFor(domain.SaleLine{ProductID: "prod-milk-tea", Quantity: 1, LineTotal: 1200})
	sale.CustomerID = "cust-missing"
	sale.CreditPayment = 1200
	if _, err := s.CommitSale(ctx, sale); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	tea, _ := s.GetProduct(ctx, "prod-milk-tea")
	if tea.Stock != 40 {
		t.Fatalf("expected stock untouched, got %d", tea.Stock)
	}
}

func TestApplyReturnRestocksOnce(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	saved, err := s.CommitSale(ctx, saleFor(domain.SaleLine{ProductID: "prod-butter-cake", Quantity: 3, LineTotal: 15000}))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	refund := domain.Expense{Description: "Refund", Amount: 15000, Supplier: domain.NoSupplier}
	exp, restocked, err := s.ApplyReturn(ctx, saved.ID, refund)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if exp.Type != domain.ExpenseRefund || exp.SaleID != saved.ID {
		t.Fatalf("unexpected refund expense: %+v", exp)
	}
	if restocked != 3 {
		t.Fatalf("expected 3 units restocked, got %d", restocked)
	}
	cake, _ := s.GetProduct(ctx, "prod-butter-cake")
	if cake.Stock != 20 || cake.SalesCount != 3 {
		t.Fatalf("expected stock back to 20 with sales count kept, got %d/%d", cake.Stock, cake.SalesCount)
	}

	if _, _, err := s.ApplyReturn(ctx, saved.ID, refund); !errors.Is(err, store.ErrInvalidReturnRequest) {
		t.Fatalf("expected duplicate return rejection, got %v", err)
	}
	if err := s.DeleteExpense(ctx, exp.ID); !errors.Is(err, store.ErrInvalidRecord) {
		t.Fatalf("expected refund delete rejection, got %v", err)
	}
	if _, _, err := s.ApplyReturn(ctx, "sale-missing", refund); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyReturnCountsOnlyExistingProducts(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	saved, err := s.CommitSale(ctx, saleFor(
		domain.SaleLine{ProductID: "prod-milk-tea", Quantity: 2, LineTotal: 2400},
		domain.SaleLine{ProductID: "prod-candle-set", Quantity: 3, LineTotal: 2100},
	))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := s.DeleteProduct(ctx, "prod-candle-set"); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	_, restocked, err := s.ApplyReturn(ctx, saved.ID, domain.Expense{Description: "Refund", Amount: 4500, Supplier: domain.NoSupplier})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if restocked != 2 {
		t.Fatalf("expected only the 2 milk tea units counted, got %d", restocked)
	}
	tea, _ := s.GetProduct(ctx, "prod-milk-tea")
	if tea.Stock != 40 {
		t.Fatalf("expected milk tea stock back to 40, got %d", tea.Stock)
	}
	if _, err := s.GetProduct(ctx, "prod-candle-set"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected deleted product to stay deleted, got %v", err)
	}
}

func TestHeldCartsAreOwnerScoped(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	held, err := s.CreateHeldCart(ctx, domain.HeldCart{
		Owner: "cashier",
		Lines: []domain.CartLine{{ProductID: "prod-milk-tea", Name: "Milk Tea", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}

	others, _ := s.ListHeldCarts(ctx, "admin")
	if len(others) != 0 {
		t.Fatalf("expected admin to see no held carts, got %d", len(others))
	}
	if _, err := s.PopHeldCart(ctx, "admin", held.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign owner, got %v", err)
	}

	popped, err := s.PopHeldCart(ctx, "cashier", held.ID)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if len(popped.Lines) != 1 || popped.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected popped cart: %+v", popped)
	}
	if err := s.DeleteHeldCart(ctx, "cashier", held.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected popped cart to be gone, got %v", err)
	}

	if _, err := s.CreateHeldCart(ctx, domain.HeldCart{Owner: "cashier"}); !errors.Is(err, store.ErrInvalidRecord) {
		t.Fatalf("expected empty held cart rejection, got %v", err)
	}
}

func TestUpdateProductKeepsSalesCount(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	if _, err := s.CommitSale(ctx, saleFor(domain.SaleLine{ProductID: "prod-potato-chips", Quantity: 4, LineTotal: 4000})); err != nil {
		t.Fatalf("commit: %v", err)
	}
	updated, err := s.UpdateProduct(ctx, domain.Product{ID: "prod-potato-chips", Name: "Potato Chips XL", Category: "snacks", Stock: 60})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.SalesCount != 4 || updated.Stock != 60 {
		t.Fatalf("unexpected product after update: %+v", updated)
	}
	if _, err := s.UpdateProduct(ctx, domain.Product{ID: "prod-potato-chips", Name: "Chips", Stock: -1}); !errors.Is(err, store.ErrInvalidRecord) {
		t.Fatalf("expected negative stock rejection, got %v", err)
	}
}
