package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"familypos/backend/internal/domain"
	"familypos/backend/internal/store"
	"familypos/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	customers       map[string]domain.Customer
	suppliers       map[string]domain.Supplier
	sales           []domain.Sale
	salesByID       map[string]int
	expenses        []domain.Expense
	heldCartsByID   map[string]domain.HeldCart
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "prod-butter-cake", Name: "Butter Cake", Category: "sweets", Supplier: "Yangon Flour Mill", PriceTier: domain.PriceTier{PurchasePrice: 3000, BulkPrice: 4200, IndividualPrice: 5000}, Stock: 20},
		{ID: "prod-choc-cupcake", Name: "Chocolate Cupcake", Category: "sweets", Supplier: "Golden Cocoa Co", PriceTier: domain.PriceTier{PurchasePrice: 800, BulkPrice: 1100, IndividualPrice: 1500}, Stock: 36},
		{ID: "prod-potato-chips", Name: "Potato Chips", Category: "snacks", Supplier: "Shwe Snack Trading", PriceTier: domain.PriceTier{PurchasePrice: 500, BulkPrice: 700, IndividualPrice: 1000}, Stock: 50},
		{ID: "prod-milk-tea", Name: "Milk Tea", Category: "beverages", Supplier: "Shwe Snack Trading", PriceTier: domain.PriceTier{PurchasePrice: 600, BulkPrice: 900, IndividualPrice: 1200}, Stock: 40},
		{ID: "prod-candle-set", Name: "Birthday Candle Set", Category: "other", Supplier: "Golden Cocoa Co", PriceTier: domain.PriceTier{PurchasePrice: 300, BulkPrice: 450, IndividualPrice: 700}, Stock: 4},
	}
	customers := []domain.Customer{
		{ID: "cust-daw-mya", Name: "Daw Mya", Contact: "09-450-112233", Address: "Sanchaung"},
		{ID: "cust-golden-tea", Name: "Golden Tea Shop", Contact: "09-777-445566", Address: "Bahan"},
	}
	suppliers := []domain.Supplier{
		{ID: "sup-yangon-flour", Name: "Yangon Flour Mill", Contact: "01-551122", Address: "Hlaing Tharyar"},
		{ID: "sup-golden-cocoa", Name: "Golden Cocoa Co", Contact: "01-223344", Address: "Mayangone"},
		{ID: "sup-shwe-snack", Name: "Shwe Snack Trading", Contact: "01-998877", Address: "Thingangyun"},
	}

	s := &Store{
		products:        make(map[string]domain.Product, len(products)),
		customers:       make(map[string]domain.Customer, len(customers)),
		suppliers:       make(map[string]domain.Supplier, len(suppliers)),
		sales:           make([]domain.Sale, 0, 128),
		salesByID:       make(map[string]int),
		expenses:        make([]domain.Expense, 0, 64),
		heldCartsByID:   make(map[string]domain.HeldCart),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
	for _, p := range products {
		p.CreatedAt, p.UpdatedAt = now, now
		s.products[p.ID] = p
	}
	for _, c := range customers {
		c.CreatedAt = now
		s.customers[c.ID] = c
	}
	for _, sup := range suppliers {
		sup.CreatedAt = now
		s.suppliers[sup.ID] = sup
	}
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !validProduct(product) {
		return nil, store.ErrInvalidRecord
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrDuplicate
	}
	now := time.Now().UTC()
	product.CreatedAt, product.UpdatedAt = now, now

	s.products[product.ID] = product
	created := product
	return &created, nil
}

// UpdateProduct replaces the editable fields. SalesCount and CreatedAt are
// owned by the store and kept.
func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" || !validProduct(product) {
		return nil, store.ErrInvalidRecord
	}
	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.SalesCount = existing.SalesCount
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()

	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return nil, store.ErrInvalidRecord
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.ID == domain.WalkInCustomerID {
		return nil, store.ErrInvalidRecord
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	s.customers[customer.ID] = customer
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer.Name = strings.TrimSpace(customer.Name)
	if customer.ID == "" || customer.Name == "" {
		return nil, store.ErrInvalidRecord
	}
	existing, exists := s.customers[customer.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	customer.CreatedAt = existing.CreatedAt

	s.customers[customer.ID] = customer
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliers))
	for _, supplier := range s.suppliers {
		suppliers = append(suppliers, supplier)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return cmpString(a.Name, b.Name)
	})
	return suppliers, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return nil, store.ErrInvalidRecord
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}

	s.suppliers[supplier.ID] = supplier
	copySupplier := supplier
	return &copySupplier, nil
}

func (s *Store) UpdateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.ID == "" || supplier.Name == "" {
		return nil, store.ErrInvalidRecord
	}
	existing, exists := s.suppliers[supplier.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	supplier.CreatedAt = existing.CreatedAt

	s.suppliers[supplier.ID] = supplier
	copySupplier := supplier
	return &copySupplier, nil
}

func (s *Store) DeleteSupplier(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.suppliers[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.suppliers, id)
	return nil
}

// CommitSale validates every line and the credit customer before touching
// any record, so a rejected sale leaves the store exactly as it was.
func (s *Store) CommitSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Lines) == 0 {
		return nil, store.ErrInvalidRecord
	}

	want := make(map[string]int, len(sale.Lines))
	for _, line := range sale.Lines {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidRecord
		}
		want[line.ProductID] += line.Quantity
	}
	for productID, qty := range want {
		product, exists := s.products[productID]
		if !exists {
			return nil, fmt.Errorf("%w: product %s no longer exists", store.ErrConcurrentStockChange, productID)
		}
		if product.Stock < qty {
			return nil, fmt.Errorf("%w: %s has %d left, sale needs %d", store.ErrConcurrentStockChange, product.Name, product.Stock, qty)
		}
	}

	var customer domain.Customer
	creditCustomer := sale.CreditPayment > 0 && !sale.IsWalkIn()
	if creditCustomer {
		c, exists := s.customers[sale.CustomerID]
		if !exists {
			return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, sale.CustomerID)
		}
		customer = c
	}

	now := time.Now().UTC()
	for productID, qty := range want {
		product := s.products[productID]
		product.Stock -= qty
		product.SalesCount += qty
		product.UpdatedAt = now
		s.products[productID] = product
	}
	if creditCustomer {
		customer.Credit += sale.CreditPayment
		s.customers[customer.ID] = customer
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	saved := cloneSale(sale)
	s.salesByID[saved.ID] = len(s.sales)
	s.sales = append(s.sales, saved)

	result := cloneSale(saved)
	return &result, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	sale := cloneSale(s.sales[idx])
	return &sale, nil
}

// ListSales returns sales in ledger order.
func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if !store.InRange(sale.CreatedAt, from, to) {
			continue
		}
		result = append(result, cloneSale(sale))
	}
	return result, nil
}

func (s *Store) ApplyReturn(_ context.Context, saleID string, refund domain.Expense) (*domain.Expense, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, exists := s.salesByID[saleID]
	if !exists {
		return nil, 0, store.ErrNotFound
	}
	for _, e := range s.expenses {
		if e.SaleID == saleID {
			return nil, 0, fmt.Errorf("%w: sale %s already refunded", store.ErrInvalidReturnRequest, saleID)
		}
	}

	now := time.Now().UTC()
	restocked := 0
	for _, line := range s.sales[idx].Lines {
		product, ok := s.products[line.ProductID]
		if !ok {
			continue
		}
		product.Stock += line.Quantity
		product.UpdatedAt = now
		s.products[line.ProductID] = product
		restocked += line.Quantity
	}

	if refund.ID == "" {
		refund.ID = xid.New("exp")
	}
	if refund.CreatedAt.IsZero() {
		refund.CreatedAt = now
	}
	refund.Type = domain.ExpenseRefund
	refund.SaleID = saleID
	s.expenses = append(s.expenses, refund)
	saved := refund
	return &saved, restocked, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !expense.Type.Valid() || strings.TrimSpace(expense.Description) == "" || expense.Amount <= 0 {
		return nil, store.ErrInvalidRecord
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	s.expenses = append(s.expenses, expense)
	saved := expense
	return &saved, nil
}

func (s *Store) ListExpenses(_ context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		if !store.InRange(e.CreatedAt, from, to) {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

// DeleteExpense removes a ledger expense. Refunds are tied to restocked
// inventory and cannot be deleted.
func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.expenses {
		if e.ID != id {
			continue
		}
		if e.SaleID != "" {
			return fmt.Errorf("%w: refund for sale %s cannot be deleted", store.ErrInvalidRecord, e.SaleID)
		}
		s.expenses = append(s.expenses[:i], s.expenses[i+1:]...)
		return nil
	}
	return store.ErrNotFound
}

func (s *Store) CreateHeldCart(_ context.Context, held domain.HeldCart) (*domain.HeldCart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if held.ID == "" {
		held.ID = xid.New("hold")
	}
	if held.HeldAt.IsZero() {
		held.HeldAt = time.Now().UTC()
	}
	if strings.TrimSpace(held.Owner) == "" || len(held.Lines) == 0 {
		return nil, store.ErrInvalidRecord
	}

	s.heldCartsByID[held.ID] = cloneHeldCart(held)
	saved := cloneHeldCart(s.heldCartsByID[held.ID])
	return &saved, nil
}

func (s *Store) ListHeldCarts(_ context.Context, owner string) ([]domain.HeldCart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.HeldCart, 0, 16)
	for _, held := range s.heldCartsByID {
		if held.Owner != owner {
			continue
		}
		result = append(result, cloneHeldCart(held))
	}
	slices.SortFunc(result, func(a, b domain.HeldCart) int {
		if a.HeldAt.Equal(b.HeldAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.HeldAt.After(b.HeldAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) PopHeldCart(_ context.Context, owner string, id string) (*domain.HeldCart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, exists := s.heldCartsByID[id]
	if !exists || held.Owner != owner {
		return nil, store.ErrNotFound
	}
	delete(s.heldCartsByID, id)
	result := cloneHeldCart(held)
	return &result, nil
}

func (s *Store) DeleteHeldCart(_ context.Context, owner string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, exists := s.heldCartsByID[id]
	if !exists || held.Owner != owner {
		return store.ErrNotFound
	}
	delete(s.heldCartsByID, id)
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if !store.InRange(entry.CreatedAt, from, to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRecord
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrDuplicate
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRecord
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func validProduct(p domain.Product) bool {
	if strings.TrimSpace(p.Name) == "" || p.Stock < 0 || p.SalesCount < 0 {
		return false
	}
	return p.PurchasePrice >= 0 && p.BulkPrice >= 0 && p.IndividualPrice >= 0
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneSale(src domain.Sale) domain.Sale {
	dup := src
	lines := make([]domain.SaleLine, len(src.Lines))
	copy(lines, src.Lines)
	dup.Lines = lines
	return dup
}

func cloneHeldCart(src domain.HeldCart) domain.HeldCart {
	dup := src
	lines := make([]domain.CartLine, len(src.Lines))
	copy(lines, src.Lines)
	dup.Lines = lines
	return dup
}
