package store

import (
	"context"
	"errors"
	"time"

	"familypos/backend/internal/domain"
)

var (
	ErrNotFound              = domain.ErrNotFound
	ErrConcurrentStockChange = domain.ErrConcurrentStockChange
	ErrInvalidReturnRequest  = domain.ErrInvalidReturnRequest
	ErrInvalidRecord         = errors.New("invalid record")
	ErrDuplicate             = errors.New("duplicate record")
)

// Repository is the catalog store boundary. Zero from/to times mean unbounded.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	DeleteSupplier(ctx context.Context, id string) error

	// CommitSale re-validates stock for every line and applies the stock,
	// sales count, customer credit and ledger writes as one unit.
	CommitSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)

	// ApplyReturn restocks the sale's lines and appends the refund expense as
	// one unit. A sale that already has a refund is rejected. The returned
	// count is the number of units actually put back on products that still
	// exist.
	ApplyReturn(ctx context.Context, saleID string, refund domain.Expense) (*domain.Expense, int, error)

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ListExpenses(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error)
	DeleteExpense(ctx context.Context, id string) error

	CreateHeldCart(ctx context.Context, held domain.HeldCart) (*domain.HeldCart, error)
	ListHeldCarts(ctx context.Context, owner string) ([]domain.HeldCart, error)
	PopHeldCart(ctx context.Context, owner string, id string) (*domain.HeldCart, error)
	DeleteHeldCart(ctx context.Context, owner string, id string) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// InRange reports whether at falls in [from, to), treating zero bounds as open.
func InRange(at, from, to time.Time) bool {
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && !at.Before(to) {
		return false
	}
	return true
}
