package service

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"familypos/backend/internal/domain"
	"familypos/backend/internal/events"
	"familypos/backend/internal/metrics"
	"familypos/backend/internal/payment"
	"familypos/backend/internal/pricing"
	"familypos/backend/internal/receipt"
	"familypos/backend/internal/report"
)

const reportCachePrefix = "report:"

// ProcessReturn refunds a whole sale: stock goes back for every product that
// still exists and a refund expense is appended. The sale itself is kept as
// recorded.
func (s *Service) ProcessReturn(ctx context.Context, req domain.ReturnRequest) (domain.ReturnResponse, error) {
	if err := requirePrivilege(ctx); err != nil {
		return domain.ReturnResponse{}, err
	}
	req.SaleID = strings.TrimSpace(req.SaleID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.SaleID == "" || req.Reason == "" {
		return domain.ReturnResponse{}, fmt.Errorf("%w: sale id and reason are required", domain.ErrInvalidReturnRequest)
	}

	sale, err := s.repo.GetSale(ctx, req.SaleID)
	if err != nil {
		return domain.ReturnResponse{}, err
	}

	expense, restocked, err := s.repo.ApplyReturn(ctx, sale.ID, domain.Expense{
		Type:        domain.ExpenseRefund,
		Description: fmt.Sprintf("Refund for sale ID %s (%s) - Reason: %s", sale.ID, sale.CustomerName, req.Reason),
		Amount:      sale.TotalAmount,
		Supplier:    domain.NoSupplier,
		SaleID:      sale.ID,
	})
	if err != nil {
		return domain.ReturnResponse{}, err
	}

	metrics.Returns.Inc()
	s.logAudit(ctx, "sale_return", "sale", sale.ID, fmt.Sprintf("amount=%d,reason=%s", expense.Amount, req.Reason))
	s.refreshCatalog(ctx)
	s.publish(ctx, events.SaleReturned, sale.ID, expense)
	return domain.ReturnResponse{SaleID: sale.ID, Expense: *expense, Restocked: restocked}, nil
}

// RecordManualSale books a single-product sale entered outside the cart.
func (s *Service) RecordManualSale(ctx context.Context, req domain.ManualSaleRequest) (domain.CommitResponse, error) {
	if err := requirePrivilege(ctx); err != nil {
		return domain.CommitResponse{}, err
	}
	if req.Quantity < 1 {
		return domain.CommitResponse{}, fmt.Errorf("%w: quantity must be at least 1", domain.ErrInvalidInput)
	}
	switch req.PaymentMethod {
	case "":
		req.PaymentMethod = domain.PaymentCash
	case domain.PaymentCash, domain.PaymentCredit, domain.PaymentMobile:
	default:
		return domain.CommitResponse{}, fmt.Errorf("%w: unsupported payment method %q", domain.ErrInvalidInput, req.PaymentMethod)
	}

	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(req.ProductID))
	if err != nil {
		return domain.CommitResponse{}, err
	}
	if req.Quantity > product.Stock {
		return domain.CommitResponse{}, fmt.Errorf("%w: only %d of %s in stock", domain.ErrStockExceeded, product.Stock, product.Name)
	}

	class := domain.ClassRetail
	if strings.EqualFold(strings.TrimSpace(req.SaleType), "bulk") {
		class = domain.ClassWholesale
	}

	actor, _ := ActorFromContext(ctx)
	sale := domain.Sale{
		CustomerID:      domain.WalkInCustomerID,
		CustomerName:    domain.WalkInCustomerName,
		CustomerClass:   class,
		TotalAmount:     pricing.LineTotal(product.PriceTier, class, req.Quantity),
		Profit:          pricing.LineMargin(product.PriceTier, class, req.Quantity),
		CashierUsername: actor.Username,
		Source:          domain.SaleSourceManual,
		Lines: []domain.SaleLine{{
			ProductID: product.ID,
			Name:      product.Name,
			PriceTier: product.PriceTier,
			Quantity:  req.Quantity,
			UnitPrice: pricing.UnitPrice(product.PriceTier, class),
			LineTotal: pricing.LineTotal(product.PriceTier, class, req.Quantity),
		}},
	}

	customerID := strings.TrimSpace(req.CustomerID)
	if customerID != "" && customerID != domain.WalkInCustomerID {
		customer, err := s.repo.GetCustomer(ctx, customerID)
		if err != nil {
			return domain.CommitResponse{}, err
		}
		sale.CustomerID = customer.ID
		sale.CustomerName = customer.Name
	}

	settlement, err := payment.Reconcile(sale.TotalAmount, domain.PaymentInput{
		Method:       req.PaymentMethod,
		CashReceived: sale.TotalAmount,
	}, !sale.IsWalkIn())
	if err != nil {
		metrics.CommitFailures.WithLabelValues(metrics.FailureReason(err)).Inc()
		return domain.CommitResponse{}, err
	}
	payment.Apply(&sale, settlement)

	saved, err := s.commit(ctx, sale)
	if err != nil {
		return domain.CommitResponse{}, err
	}
	s.publish(ctx, events.SaleCommitted, saved.ID, saved)
	return domain.CommitResponse{Sale: saved, Receipt: receipt.Render(saved, s.shopName)}, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// ListSales returns sales between from and to, newest first.
func (s *Service) ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	sales, err := s.repo.ListSales(ctx, from, to)
	if err != nil {
		return nil, err
	}
	slices.Reverse(sales)
	return sales, nil
}

func (s *Service) SaleReceipt(ctx context.Context, id string) (domain.ReceiptResponse, error) {
	sale, err := s.GetSale(ctx, id)
	if err != nil {
		return domain.ReceiptResponse{}, err
	}
	return receipt.Build(sale, s.shopName), nil
}

func (s *Service) AddExpense(ctx context.Context, req domain.ExpenseInput) (domain.Expense, error) {
	if err := requirePrivilege(ctx); err != nil {
		return domain.Expense{}, err
	}
	if !req.Type.Valid() {
		return domain.Expense{}, fmt.Errorf("%w: unknown expense type %q", domain.ErrInvalidInput, req.Type)
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return domain.Expense{}, fmt.Errorf("%w: description is required", domain.ErrInvalidInput)
	}
	if req.Amount <= 0 {
		return domain.Expense{}, fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidInput)
	}
	supplier := strings.TrimSpace(req.Supplier)
	if supplier == "" {
		supplier = domain.NoSupplier
	}

	created, err := s.repo.CreateExpense(ctx, domain.Expense{
		Type:        req.Type,
		Description: description,
		Amount:      req.Amount,
		Supplier:    supplier,
	})
	if err != nil {
		return domain.Expense{}, err
	}
	s.logAudit(ctx, "expense_create", "expense", created.ID, fmt.Sprintf("type=%s,amount=%d", created.Type, created.Amount))
	s.publish(ctx, events.ExpenseRecorded, created.ID, created)
	return *created, nil
}

// ListExpenses returns expenses between from and to, newest first.
func (s *Service) ListExpenses(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	if err := requirePrivilege(ctx); err != nil {
		return nil, err
	}
	expenses, err := s.repo.ListExpenses(ctx, from, to)
	if err != nil {
		return nil, err
	}
	slices.Reverse(expenses)
	return expenses, nil
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	if err := requirePrivilege(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return err
	}
	// Deleting can change a closed period, so every cached report is dropped.
	if err := s.cache.Invalidate(ctx, reportCachePrefix); err != nil {
		log.Printf("[service] WARN: failed to invalidate report cache: %v", err)
	}
	s.logAudit(ctx, "expense_delete", "expense", id, "deleted")
	return nil
}

// ParseReportDay reads YYYY-MM-DD or YYYY-MM in local time. Empty means today.
func (s *Service) ParseReportDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		now := s.now().In(time.Local)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local), nil
	}
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if day, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return day, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD or YYYY-MM", domain.ErrInvalidInput)
}

// BuildReport renders a report for the period containing day. Daily and
// monthly reports for periods that have ended are served from the cache.
func (s *Service) BuildReport(ctx context.Context, t report.Type, day time.Time) (report.Report, error) {
	if err := requirePrivilege(ctx); err != nil {
		return report.Report{}, err
	}

	cacheable := report.Closed(t, day, s.now())
	from, to := report.Window(t, day)
	key := fmt.Sprintf("%s%s:%s", reportCachePrefix, t, from.Format("2006-01-02"))
	if cacheable {
		cached, hit, err := s.cache.Get(ctx, key)
		if err != nil {
			log.Printf("[service] WARN: report cache get key=%s: %v", key, err)
		}
		if hit && cached != nil {
			metrics.ReportCacheLookups.WithLabelValues("hit").Inc()
			return *cached, nil
		}
		metrics.ReportCacheLookups.WithLabelValues("miss").Inc()
	}

	sales, err := s.repo.ListSales(ctx, from, to)
	if err != nil {
		return report.Report{}, err
	}
	expenses, err := s.repo.ListExpenses(ctx, from, to)
	if err != nil {
		return report.Report{}, err
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return report.Report{}, err
	}

	built, err := report.Build(t, day, report.Input{Sales: sales, Expenses: expenses, Products: products})
	if err != nil {
		return report.Report{}, err
	}
	if cacheable {
		if err := s.cache.Set(ctx, key, &built, s.reportTTL); err != nil {
			log.Printf("[service] WARN: report cache set key=%s: %v", key, err)
		}
	}
	return built, nil
}

func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}
	sales, err := s.repo.ListSales(ctx, time.Time{}, time.Time{})
	if err != nil {
		return domain.Dashboard{}, err
	}
	expenses, err := s.repo.ListExpenses(ctx, time.Time{}, time.Time{})
	if err != nil {
		return domain.Dashboard{}, err
	}

	now := s.now().In(time.Local)
	dayFrom, dayTo := report.Window(report.Daily, now)
	monthFrom, monthTo := report.Window(report.Monthly, now)

	dash := domain.Dashboard{ProductCount: len(products), LowStock: []domain.Product{}}
	activity := make([]domain.Activity, 0, len(sales)+len(expenses))
	for _, sale := range sales {
		if !sale.CreatedAt.Before(dayFrom) && sale.CreatedAt.Before(dayTo) {
			dash.TodaySales += sale.TotalAmount
		}
		if !sale.CreatedAt.Before(monthFrom) && sale.CreatedAt.Before(monthTo) {
			dash.MonthSales += sale.TotalAmount
		}
		dash.TotalProfit += sale.Profit
		activity = append(activity, domain.Activity{
			Kind:        "sale",
			At:          sale.CreatedAt,
			Description: fmt.Sprintf("Sale to %s: %s", sale.CustomerName, receipt.Money(sale.TotalAmount)),
			Positive:    true,
		})
	}
	for _, e := range expenses {
		activity = append(activity, domain.Activity{
			Kind:        "expense",
			At:          e.CreatedAt,
			Description: fmt.Sprintf("%s: %s (%s)", report.TypeLabel(e.Type), e.Description, receipt.Money(e.Amount)),
		})
	}
	for _, p := range products {
		if p.Stock <= domain.LowStockThreshold {
			dash.LowStock = append(dash.LowStock, p)
		}
	}

	slices.SortStableFunc(activity, func(a, b domain.Activity) int {
		return b.At.Compare(a.At)
	})
	if len(activity) > 10 {
		activity = activity[:10]
	}
	dash.RecentActivity = activity
	return dash, nil
}
