package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"familypos/backend/internal/catalog"
	"familypos/backend/internal/domain"
	"familypos/backend/internal/store/memory"
)

type publishedEvent struct {
	eventType   string
	key         string
	ctxErr      error
	hasDeadline bool
}

type recordingPublisher struct {
	mu        sync.Mutex
	events    []publishedEvent
	onPublish func()
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType string, key string, _ any) error {
	_, hasDeadline := ctx.Deadline()
	p.mu.Lock()
	p.events = append(p.events, publishedEvent{eventType: eventType, key: key, ctxErr: ctx.Err(), hasDeadline: hasDeadline})
	hook := p.onPublish
	p.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (p *recordingPublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

func TestWalkInSplitWithCreditPortionCommits(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := cashierContext()
	product := createTestProduct(t, svc)

	before, err := repo.ListCustomers(context.Background())
	if err != nil {
		t.Fatalf("list customers: %v", err)
	}

	addUnits(t, svc, ctx, product.ID, 3)
	view, err := svc.SetPayment(ctx, domain.PaymentInput{Method: domain.PaymentSplit, CashAmount: 500, CreditAmount: 500, MobileAmount: 500})
	if err != nil {
		t.Fatalf("set payment: %v", err)
	}
	if view.PaymentError != "" || view.Settlement == nil {
		t.Fatalf("expected settled walk-in split, got %+v", view)
	}

	resp, err := svc.CommitSale(ctx)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if resp.Sale.CustomerID != domain.WalkInCustomerID || resp.Sale.Change != 0 {
		t.Fatalf("unexpected walk-in split sale: %+v", resp.Sale)
	}
	if resp.Sale.CashReceived != 500 || resp.Sale.CreditPayment != 500 || resp.Sale.MobilePayment != 500 {
		t.Fatalf("expected 500 on each channel, got %+v", resp.Sale)
	}

	after, err := repo.ListCustomers(context.Background())
	if err != nil {
		t.Fatalf("list customers: %v", err)
	}
	credit := make(map[string]int64, len(before))
	for _, c := range before {
		credit[c.ID] = c.Credit
	}
	for _, c := range after {
		if credit[c.ID] != c.Credit {
			t.Fatalf("expected credit of %s untouched, got %d -> %d", c.ID, credit[c.ID], c.Credit)
		}
	}
}

func TestReturnOfCreditSaleKeepsCustomerCredit(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := cashierContext()
	product := createTestProduct(t, svc)

	start, err := repo.GetCustomer(context.Background(), "cust-daw-mya")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}

	addUnits(t, svc, ctx, product.ID, 3)
	if _, err := svc.SelectCustomer(ctx, domain.CustomerSelection{CustomerID: "cust-daw-mya", CustomerClass: domain.ClassRetail}); err != nil {
		t.Fatalf("select customer: %v", err)
	}
	if _, err := svc.SetPayment(ctx, domain.PaymentInput{Method: domain.PaymentCredit}); err != nil {
		t.Fatalf("set payment: %v", err)
	}
	resp, err := svc.CommitSale(ctx)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	owed, _ := repo.GetCustomer(context.Background(), "cust-daw-mya")
	if owed.Credit != start.Credit+1500 {
		t.Fatalf("expected credit %d after sale, got %d", start.Credit+1500, owed.Credit)
	}

	ret, err := svc.ProcessReturn(adminContext(), domain.ReturnRequest{SaleID: resp.Sale.ID, Reason: "wrong flavour"})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if ret.Expense.Amount != 1500 || ret.Restocked != 3 {
		t.Fatalf("unexpected return: %+v", ret)
	}

	settled, _ := repo.GetCustomer(context.Background(), "cust-daw-mya")
	if settled.Credit != owed.Credit {
		t.Fatalf("expected return to leave credit at %d, got %d", owed.Credit, settled.Credit)
	}
}

func TestStaleStockRejectsCommitAndKeepsCart(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := cashierContext()
	product := createTestProduct(t, svc)

	addUnits(t, svc, ctx, product.ID, 3)
	if _, err := svc.SetPayment(ctx, domain.PaymentInput{Method: domain.PaymentCash, CashReceived: 2000}); err != nil {
		t.Fatalf("set payment: %v", err)
	}

	// another till sells most of the stock behind this cart's back
	current, err := repo.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	current.Stock = 2
	if _, err := repo.UpdateProduct(context.Background(), *current); err != nil {
		t.Fatalf("update product: %v", err)
	}

	if _, err := svc.CommitSale(ctx); !errors.Is(err, domain.ErrConcurrentStockChange) {
		t.Fatalf("expected ErrConcurrentStockChange, got %v", err)
	}

	view, err := svc.GetCart(ctx)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].ProductID != product.ID || view.Lines[0].Quantity != 3 {
		t.Fatalf("expected cart lines kept, got %+v", view.Lines)
	}
	if view.Payment.Method != domain.PaymentCash || view.Payment.CashReceived != 2000 {
		t.Fatalf("expected payment kept, got %+v", view.Payment)
	}
	saved, _ := repo.GetProduct(context.Background(), product.ID)
	if saved.Stock != 2 || saved.SalesCount != 0 {
		t.Fatalf("expected stock 2 and no sales, got %d/%d", saved.Stock, saved.SalesCount)
	}
}

func TestCommitPublishesOutsideSessionLock(t *testing.T) {
	repo := memory.NewSeeded()
	feed := catalog.NewFeed(repo)
	if _, err := feed.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh catalog: %v", err)
	}
	publisher := &recordingPublisher{}
	svc := New(repo, feed, Options{ShopName: "Family Cake", Publisher: publisher})

	reqCtx, cancel := context.WithCancel(cashierContext())
	addUnits(t, svc, reqCtx, "prod-milk-tea", 2)
	if _, err := svc.SetPayment(reqCtx, domain.PaymentInput{Method: domain.PaymentCash, CashReceived: 3000}); err != nil {
		t.Fatalf("set payment: %v", err)
	}

	cartReadable := make(chan bool, 1)
	publisher.onPublish = func() {
		done := make(chan struct{})
		go func() {
			_, _ = svc.GetCart(cashierContext())
			close(done)
		}()
		select {
		case <-done:
			cartReadable <- true
		case <-time.After(2 * time.Second):
			cartReadable <- false
		}
	}

	// the client has gone away by the time the sale is written
	cancel()
	resp, err := svc.CommitSale(reqCtx)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	events := publisher.published()
	if len(events) != 1 || events[0].key != resp.Sale.ID {
		t.Fatalf("expected one event for sale %s, got %+v", resp.Sale.ID, events)
	}
	if events[0].ctxErr != nil {
		t.Fatalf("expected publish context to outlive the request, got %v", events[0].ctxErr)
	}
	if !events[0].hasDeadline {
		t.Fatalf("expected publish context to carry its own deadline")
	}
	if ok := <-cartReadable; !ok {
		t.Fatalf("expected session to be unlocked while publishing")
	}
}

func TestReturnCountsOnlyProductsStillListed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := cashierContext()
	product := createTestProduct(t, svc)

	addUnits(t, svc, ctx, product.ID, 2)
	addUnits(t, svc, ctx, "prod-milk-tea", 3)
	if _, err := svc.SetPayment(ctx, domain.PaymentInput{Method: domain.PaymentCash, CashReceived: 10000}); err != nil {
		t.Fatalf("set payment: %v", err)
	}
	resp, err := svc.CommitSale(ctx)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	if err := svc.DeleteProduct(adminContext(), product.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	ret, err := svc.ProcessReturn(adminContext(), domain.ReturnRequest{SaleID: resp.Sale.ID, Reason: "closing early"})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if ret.Restocked != 3 {
		t.Fatalf("expected 3 milk tea units restocked, got %d", ret.Restocked)
	}
	if ret.Expense.Amount != resp.Sale.TotalAmount {
		t.Fatalf("expected full refund %d, got %d", resp.Sale.TotalAmount, ret.Expense.Amount)
	}
}
