package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"familypos/backend/internal/cart"
	"familypos/backend/internal/domain"
	"familypos/backend/internal/events"
	"familypos/backend/internal/metrics"
	"familypos/backend/internal/payment"
	"familypos/backend/internal/pricing"
	"familypos/backend/internal/receipt"
)

// session is the terminal state of one signed-in user: the cart being
// assembled and the payment entered for it.
type session struct {
	mu      sync.Mutex
	cart    *cart.Cart
	payment domain.PaymentInput
}

func newSession() *session {
	return &session{cart: cart.New(), payment: domain.PaymentInput{Method: domain.PaymentCash}}
}

func (ss *session) reset() {
	ss.cart.Clear()
	ss.payment = domain.PaymentInput{Method: domain.PaymentCash}
}

func (s *Service) session(ctx context.Context) (*session, domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || strings.TrimSpace(actor.Username) == "" {
		return nil, domain.Actor{}, fmt.Errorf("%w: no signed-in user", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ss, exists := s.sessions[actor.Username]
	if !exists {
		ss = newSession()
		s.sessions[actor.Username] = ss
	}
	return ss, actor, nil
}

func (s *Service) GetCart(ctx context.Context) (domain.CartView, error) {
	ss, _, err := s.session(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return s.cartView(ss), nil
}

// AddToCart adds one unit. An unavailable product is reported as a warning on
// the returned view rather than as an error.
func (s *Service) AddToCart(ctx context.Context, productID string) (domain.CartView, error) {
	ss, _, err := s.session(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if err := ss.cart.Add(s.feed, strings.TrimSpace(productID)); err != nil {
		if errors.Is(err, domain.ErrProductUnavailable) {
			view := s.cartView(ss)
			view.Warning = "Product is not available or out of stock"
			return view, nil
		}
		return domain.CartView{}, err
	}
	return s.cartView(ss), nil
}

func (s *Service) ChangeQuantity(ctx context.Context, productID string, delta int) (domain.CartView, error) {
	ss, _, err := s.session(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if err := ss.cart.ChangeQuantity(s.feed, strings.TrimSpace(productID), delta); err != nil {
		return domain.CartView{}, err
	}
	return s.cartView(ss), nil
}

func (s *Service) RemoveFromCart(ctx context.Context, productID string) (domain.CartView, error) {
	ss, _, err := s.session(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()

	ss.cart.Remove(strings.TrimSpace(productID))
	return s.cartView(ss), nil
}

// ClearCart empties the cart and resets the customer and payment.
func (s *Service) ClearCart(ctx context.Context) (domain.CartView, error) {
	ss, _, err := s.session(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()

	ss.reset()
	return s.cartView(ss), nil
}

func (s *Service) SelectCustomer(ctx context.Context, sel domain.CustomerSelection) (domain.CartView, error) {
	ss, _, err := s.session(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	customerID := strings.TrimSpace(sel.CustomerID)
	if customerID != "" && customerID != domain.WalkInCustomerID {
		if _, ok := s.feed.Customer(customerID); !ok {
			return domain.CartView{}, fmt.Errorf("%w: customer %s", domain.ErrNotFound, customerID)
		}
	}
	if sel.CustomerClass != "" && !sel.CustomerClass.Valid() {
		return domain.CartView{}, fmt.Errorf("%w: unknown customer class %q", domain.ErrInvalidInput, sel.CustomerClass)
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.cart.SetCustomer(customerID, sel.CustomerClass)
	return s.cartView(ss), nil
}

// SetPayment stores the tender. The view reports whether it settles the
// current total; the check is repeated at commit time.
func (s *Service) SetPayment(ctx context.Context, in domain.PaymentInput) (domain.CartView, error) {
	ss, _, err := s.session(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	switch in.Method {
	case "":
		in.Method = domain.PaymentCash
	case domain.PaymentCash, domain.PaymentCredit, domain.PaymentMobile, domain.PaymentSplit:
	default:
		return domain.CartView{}, fmt.Errorf("%w: unknown payment method %q", domain.ErrInvalidInput, in.Method)
	}
	if in.CashReceived < 0 || in.CashAmount < 0 || in.CreditAmount < 0 || in.MobileAmount < 0 {
		return domain.CartView{}, fmt.Errorf("%w: payment amounts must not be negative", domain.ErrInvalidInput)
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.payment = in
	return s.cartView(ss), nil
}

// CommitSale settles the session cart and writes the sale. The store
// re-validates stock, so a cart assembled against a stale catalog fails with
// ErrConcurrentStockChange and leaves the session untouched.
func (s *Service) CommitSale(ctx context.Context) (domain.CommitResponse, error) {
	ss, actor, err := s.session(ctx)
	if err != nil {
		return domain.CommitResponse{}, err
	}

	saved, err := s.commitCart(ctx, ss, actor)
	if err != nil {
		return domain.CommitResponse{}, err
	}
	s.publish(ctx, events.SaleCommitted, saved.ID, saved)

	return domain.CommitResponse{Sale: saved, Receipt: receipt.Render(saved, s.shopName)}, nil
}

// commitCart holds the session lock only while the sale is priced, written
// and the cart reset. Publishing happens after it returns.
func (s *Service) commitCart(ctx context.Context, ss *session, actor domain.Actor) (domain.Sale, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.cart.IsEmpty() {
		metrics.CommitFailures.WithLabelValues(metrics.FailureReason(domain.ErrEmptyCart)).Inc()
		return domain.Sale{}, domain.ErrEmptyCart
	}

	customerID := ss.cart.CustomerID()
	settlement, err := payment.Reconcile(ss.cart.Total(), ss.payment, customerID != "")
	if err != nil {
		metrics.CommitFailures.WithLabelValues(metrics.FailureReason(err)).Inc()
		return domain.Sale{}, err
	}

	sale := domain.Sale{
		CustomerID:      domain.WalkInCustomerID,
		CustomerName:    domain.WalkInCustomerName,
		CustomerClass:   ss.cart.CustomerClass(),
		TotalAmount:     ss.cart.Total(),
		Profit:          ss.cart.Profit(),
		CashierUsername: actor.Username,
		Source:          domain.SaleSourcePOS,
	}
	if customerID != "" {
		sale.CustomerID = customerID
		sale.CustomerName = s.customerName(customerID)
	}
	for _, line := range ss.cart.Lines() {
		sale.Lines = append(sale.Lines, domain.SaleLine{
			ProductID: line.ProductID,
			Name:      line.Name,
			PriceTier: line.PriceTier,
			Quantity:  line.Quantity,
			UnitPrice: pricing.UnitPrice(line.PriceTier, sale.CustomerClass),
			LineTotal: pricing.LineTotal(line.PriceTier, sale.CustomerClass, line.Quantity),
		})
	}
	payment.Apply(&sale, settlement)

	saved, err := s.commit(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}
	ss.reset()
	return saved, nil
}

// commit writes a fully priced sale and runs the post-commit effects other
// than publishing, which callers do once no session lock is held.
func (s *Service) commit(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	saved, err := s.repo.CommitSale(ctx, sale)
	if err != nil {
		metrics.CommitFailures.WithLabelValues(metrics.FailureReason(err)).Inc()
		return domain.Sale{}, err
	}

	metrics.SalesCommitted.WithLabelValues(string(saved.PaymentMethod), saved.Source).Inc()
	metrics.SalesAmount.WithLabelValues(string(saved.PaymentMethod)).Add(float64(saved.TotalAmount))
	s.logAudit(ctx, "sale_commit", "sale", saved.ID, fmt.Sprintf("total=%d,method=%s,source=%s", saved.TotalAmount, saved.PaymentMethod, saved.Source))
	s.refreshCatalog(ctx)
	return *saved, nil
}

func (s *Service) HoldCart(ctx context.Context) (domain.HeldCart, error) {
	ss, actor, err := s.session(ctx)
	if err != nil {
		return domain.HeldCart{}, err
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.cart.IsEmpty() {
		return domain.HeldCart{}, domain.ErrEmptyCart
	}
	state := ss.cart.State()
	held := domain.HeldCart{
		Owner:         actor.Username,
		Lines:         state.Lines,
		CustomerID:    state.CustomerID,
		CustomerName:  domain.WalkInCustomerName,
		CustomerClass: state.CustomerClass,
	}
	if state.CustomerID != "" {
		held.CustomerName = s.customerName(state.CustomerID)
	}

	saved, err := s.repo.CreateHeldCart(ctx, held)
	if err != nil {
		return domain.HeldCart{}, err
	}
	ss.reset()

	metrics.HeldCartOps.WithLabelValues("hold").Inc()
	s.logAudit(ctx, "cart_hold", "held_cart", saved.ID, fmt.Sprintf("items=%d", len(saved.Lines)))
	return *saved, nil
}

func (s *Service) ListHeldCarts(ctx context.Context) (domain.HeldCartListResponse, error) {
	_, actor, err := s.session(ctx)
	if err != nil {
		return domain.HeldCartListResponse{}, err
	}
	items, err := s.repo.ListHeldCarts(ctx, actor.Username)
	if err != nil {
		return domain.HeldCartListResponse{}, err
	}
	return domain.HeldCartListResponse{Items: items}, nil
}

// ResumeHeldCart replaces the session cart with a held one. The held record
// is consumed.
func (s *Service) ResumeHeldCart(ctx context.Context, holdID string) (domain.CartView, error) {
	ss, actor, err := s.session(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	holdID = strings.TrimSpace(holdID)
	if holdID == "" {
		return domain.CartView{}, fmt.Errorf("%w: hold id is required", domain.ErrInvalidInput)
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	held, err := s.repo.PopHeldCart(ctx, actor.Username, holdID)
	if err != nil {
		return domain.CartView{}, err
	}
	ss.reset()
	ss.cart.Restore(domain.CartState{
		Lines:         held.Lines,
		CustomerID:    held.CustomerID,
		CustomerClass: held.CustomerClass,
	})

	metrics.HeldCartOps.WithLabelValues("resume").Inc()
	s.logAudit(ctx, "cart_resume", "held_cart", held.ID, fmt.Sprintf("items=%d", len(held.Lines)))
	return s.cartView(ss), nil
}

func (s *Service) DiscardHeldCart(ctx context.Context, holdID string) error {
	_, actor, err := s.session(ctx)
	if err != nil {
		return err
	}
	holdID = strings.TrimSpace(holdID)
	if holdID == "" {
		return fmt.Errorf("%w: hold id is required", domain.ErrInvalidInput)
	}

	if err := s.repo.DeleteHeldCart(ctx, actor.Username, holdID); err != nil {
		return err
	}
	metrics.HeldCartOps.WithLabelValues("discard").Inc()
	s.logAudit(ctx, "cart_discard", "held_cart", holdID, "discarded")
	return nil
}

// cartView renders the session. Called with ss.mu held.
func (s *Service) cartView(ss *session) domain.CartView {
	view := ss.cart.View()
	view.Payment = ss.payment
	view.CustomerName = domain.WalkInCustomerName
	if id := ss.cart.CustomerID(); id != "" {
		view.CustomerName = s.customerName(id)
	}
	if ss.cart.IsEmpty() {
		return view
	}

	settlement, err := payment.Reconcile(view.Total, ss.payment, ss.cart.CustomerID() != "")
	if err != nil {
		view.PaymentError = err.Error()
		return view
	}
	view.Settlement = &settlement
	return view
}

func (s *Service) customerName(id string) string {
	if customer, ok := s.feed.Customer(id); ok {
		return customer.Name
	}
	return domain.UnknownCustomerName
}
