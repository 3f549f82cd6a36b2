package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"familypos/backend/internal/domain"
	"familypos/backend/internal/store"
	"familypos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `id, name, category, supplier, purchase_price, bulk_price, individual_price, stock, sales_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Supplier, &p.PurchasePrice, &p.BulkPrice, &p.IndividualPrice,
		&p.Stock, &p.SalesCount, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if !validProduct(product) {
		return nil, store.ErrInvalidRecord
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}

	created, err := scanProduct(s.db.QueryRowContext(ctx, `
		INSERT INTO products (id, name, category, supplier, purchase_price, bulk_price, individual_price, stock, sales_count, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0,now(),now())
		RETURNING `+productColumns,
		product.ID, product.Name, product.Category, product.Supplier,
		product.PurchasePrice, product.BulkPrice, product.IndividualPrice, product.Stock))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || !validProduct(product) {
		return nil, store.ErrInvalidRecord
	}

	updated, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, supplier = $4, purchase_price = $5, bulk_price = $6,
			individual_price = $7, stock = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Name, product.Category, product.Supplier,
		product.PurchasePrice, product.BulkPrice, product.IndividualPrice, product.Stock))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "products", id)
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, contact, address, credit, created_at
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Contact, &c.Address, &c.Credit, &c.CreatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, contact, address, credit, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Contact, &c.Address, &c.Credit, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" || customer.ID == domain.WalkInCustomerID {
		return nil, store.ErrInvalidRecord
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, contact, address, credit, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, customer.ID, customer.Name, customer.Contact, customer.Address, customer.Credit, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	if customer.ID == "" || customer.Name == "" {
		return nil, store.ErrInvalidRecord
	}

	err := s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET name = $2, contact = $3, address = $4, credit = $5
		WHERE id = $1
		RETURNING created_at
	`, customer.ID, customer.Name, customer.Contact, customer.Address, customer.Credit).Scan(&customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	updated := customer
	return &updated, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "customers", id)
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, contact, address, credit, created_at
		FROM suppliers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var sup domain.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Contact, &sup.Address, &sup.Credit, &sup.CreatedAt); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, contact, address, credit, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, supplier.ID, supplier.Name, supplier.Contact, supplier.Address, supplier.Credit, supplier.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	created := supplier
	return &created, nil
}

func (s *Store) UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.ID == "" || supplier.Name == "" {
		return nil, store.ErrInvalidRecord
	}

	err := s.db.QueryRowContext(ctx, `
		UPDATE suppliers
		SET name = $2, contact = $3, address = $4, credit = $5
		WHERE id = $1
		RETURNING created_at
	`, supplier.ID, supplier.Name, supplier.Contact, supplier.Address, supplier.Credit).Scan(&supplier.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	updated := supplier
	return &updated, nil
}

func (s *Store) DeleteSupplier(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "suppliers", id)
}

// CommitSale locks every product row the sale touches, re-checks stock and
// writes all effects in one serializable transaction.
func (s *Store) CommitSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
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
	ids := sortedKeys(want)

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	stockRows, err := pgTx.QueryContext(ctx, `
		SELECT id, name, stock
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	type liveStock struct {
		name  string
		stock int
	}
	live := make(map[string]liveStock, len(ids))
	for stockRows.Next() {
		var id string
		var ls liveStock
		if err := stockRows.Scan(&id, &ls.name, &ls.stock); err != nil {
			_ = stockRows.Close()
			return nil, err
		}
		live[id] = ls
	}
	if err := stockRows.Err(); err != nil {
		_ = stockRows.Close()
		return nil, err
	}
	_ = stockRows.Close()

	for _, id := range ids {
		ls, ok := live[id]
		if !ok {
			return nil, fmt.Errorf("%w: product %s no longer exists", store.ErrConcurrentStockChange, id)
		}
		if ls.stock < want[id] {
			return nil, fmt.Errorf("%w: %s has %d left, sale needs %d", store.ErrConcurrentStockChange, ls.name, ls.stock, want[id])
		}
	}

	if sale.CreditPayment > 0 && !sale.IsWalkIn() {
		res, err := pgTx.ExecContext(ctx, `
			UPDATE customers SET credit = credit + $2 WHERE id = $1
		`, sale.CustomerID, sale.CreditPayment)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, sale.CustomerID)
		}
	}

	for _, id := range ids {
		if _, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $2, sales_count = sales_count + $2, updated_at = now()
			WHERE id = $1
		`, id, want[id]); err != nil {
			return nil, err
		}
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	linesJSON, err := json.Marshal(sale.Lines)
	if err != nil {
		return nil, err
	}
	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO sales (
			id, created_at, lines, customer_id, customer_name, customer_class,
			total_amount, profit, payment_method, cash_received, credit_payment,
			mobile_payment, change_amount, cashier_username, source
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, sale.ID, sale.CreatedAt, linesJSON, sale.CustomerID, sale.CustomerName, string(sale.CustomerClass),
		sale.TotalAmount, sale.Profit, string(sale.PaymentMethod), sale.CashReceived, sale.CreditPayment,
		sale.MobilePayment, sale.Change, sale.CashierUsername, sale.Source); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	committed := sale
	return &committed, nil
}

const saleColumns = `id, created_at, lines, customer_id, customer_name, customer_class, total_amount, profit,
	payment_method, cash_received, credit_payment, mobile_payment, change_amount, cashier_username, source`

func scanSale(row rowScanner) (domain.Sale, error) {
	var sale domain.Sale
	var linesRaw []byte
	var class, method string
	if err := row.Scan(
		&sale.ID,
		&sale.CreatedAt,
		&linesRaw,
		&sale.CustomerID,
		&sale.CustomerName,
		&class,
		&sale.TotalAmount,
		&sale.Profit,
		&method,
		&sale.CashReceived,
		&sale.CreditPayment,
		&sale.MobilePayment,
		&sale.Change,
		&sale.CashierUsername,
		&sale.Source,
	); err != nil {
		return domain.Sale{}, err
	}
	sale.CustomerClass = domain.CustomerClass(class)
	sale.PaymentMethod = domain.PaymentMethod(method)
	if err := json.Unmarshal(linesRaw, &sale.Lines); err != nil {
		return domain.Sale{}, fmt.Errorf("decode sale %s lines: %w", sale.ID, err)
	}
	return sale, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
			AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at, id
	`, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 128)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) ApplyReturn(ctx context.Context, saleID string, refund domain.Expense) (*domain.Expense, int, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var linesRaw []byte
	err = pgTx.QueryRowContext(ctx, `SELECT lines FROM sales WHERE id = $1 FOR UPDATE`, saleID).Scan(&linesRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, store.ErrNotFound
		}
		return nil, 0, err
	}
	var lines []domain.SaleLine
	if err := json.Unmarshal(linesRaw, &lines); err != nil {
		return nil, 0, fmt.Errorf("decode sale %s lines: %w", saleID, err)
	}

	var refunded bool
	if err := pgTx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM expenses WHERE sale_id = $1)`, saleID).Scan(&refunded); err != nil {
		return nil, 0, err
	}
	if refunded {
		return nil, 0, fmt.Errorf("%w: sale %s already refunded", store.ErrInvalidReturnRequest, saleID)
	}

	// products deleted since the sale simply do not match
	restocked := 0
	for _, line := range lines {
		res, err := pgTx.ExecContext(ctx, `
			UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1
		`, line.ProductID, line.Quantity)
		if err != nil {
			return nil, 0, err
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			restocked += line.Quantity
		}
	}

	if refund.ID == "" {
		refund.ID = xid.New("exp")
	}
	if refund.CreatedAt.IsZero() {
		refund.CreatedAt = time.Now().UTC()
	}
	refund.Type = domain.ExpenseRefund
	refund.SaleID = saleID
	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO expenses (id, created_at, type, description, amount, supplier, sale_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, refund.ID, refund.CreatedAt, string(refund.Type), refund.Description, refund.Amount, refund.Supplier, refund.SaleID); err != nil {
		if isUniqueViolation(err) {
			return nil, 0, fmt.Errorf("%w: sale %s already refunded", store.ErrInvalidReturnRequest, saleID)
		}
		return nil, 0, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, 0, err
	}
	saved := refund
	return &saved, restocked, nil
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if !expense.Type.Valid() || strings.TrimSpace(expense.Description) == "" || expense.Amount <= 0 {
		return nil, store.ErrInvalidRecord
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, created_at, type, description, amount, supplier, sale_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, expense.ID, expense.CreatedAt, string(expense.Type), expense.Description, expense.Amount, expense.Supplier, nullIfEmpty(expense.SaleID))
	if err != nil {
		return nil, err
	}
	saved := expense
	return &saved, nil
}

func (s *Store) ListExpenses(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, type, description, amount, supplier, sale_id
		FROM expenses
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
			AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at, id
	`, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 64)
	for rows.Next() {
		var e domain.Expense
		var expenseType string
		var saleID sql.NullString
		if err := rows.Scan(&e.ID, &e.CreatedAt, &expenseType, &e.Description, &e.Amount, &e.Supplier, &saleID); err != nil {
			return nil, err
		}
		e.Type = domain.ExpenseType(expenseType)
		e.SaleID = saleID.String
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	var saleID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM expenses
		WHERE id = $1 AND sale_id IS NULL
		RETURNING sale_id
	`, id).Scan(&saleID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM expenses WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: refund expenses cannot be deleted", store.ErrInvalidRecord)
	}
	return store.ErrNotFound
}

func (s *Store) CreateHeldCart(ctx context.Context, held domain.HeldCart) (*domain.HeldCart, error) {
	if held.ID == "" {
		held.ID = xid.New("hold")
	}
	if held.HeldAt.IsZero() {
		held.HeldAt = time.Now().UTC()
	}
	if strings.TrimSpace(held.Owner) == "" || len(held.Lines) == 0 {
		return nil, store.ErrInvalidRecord
	}

	linesJSON, err := json.Marshal(held.Lines)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO held_carts (id, owner, held_at, lines, customer_id, customer_name, customer_class)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, held.ID, held.Owner, held.HeldAt, linesJSON, nullIfEmpty(held.CustomerID), held.CustomerName, string(held.CustomerClass))
	if err != nil {
		return nil, err
	}
	saved := held
	return &saved, nil
}

func scanHeldCart(row rowScanner) (domain.HeldCart, error) {
	var held domain.HeldCart
	var linesRaw []byte
	var customerID sql.NullString
	var class string
	if err := row.Scan(&held.ID, &held.Owner, &held.HeldAt, &linesRaw, &customerID, &held.CustomerName, &class); err != nil {
		return domain.HeldCart{}, err
	}
	held.CustomerID = customerID.String
	held.CustomerClass = domain.CustomerClass(class)
	if err := json.Unmarshal(linesRaw, &held.Lines); err != nil {
		return domain.HeldCart{}, fmt.Errorf("decode held cart %s: %w", held.ID, err)
	}
	return held, nil
}

func (s *Store) ListHeldCarts(ctx context.Context, owner string) ([]domain.HeldCart, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, held_at, lines, customer_id, customer_name, customer_class
		FROM held_carts
		WHERE owner = $1
		ORDER BY held_at DESC, id DESC
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	helds := make([]domain.HeldCart, 0, 16)
	for rows.Next() {
		held, err := scanHeldCart(rows)
		if err != nil {
			return nil, err
		}
		helds = append(helds, held)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return helds, nil
}

func (s *Store) PopHeldCart(ctx context.Context, owner string, id string) (*domain.HeldCart, error) {
	held, err := scanHeldCart(s.db.QueryRowContext(ctx, `
		DELETE FROM held_carts
		WHERE id = $1 AND owner = $2
		RETURNING id, owner, held_at, lines, customer_id, customer_name, customer_class
	`, id, owner))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &held, nil
}

func (s *Store) DeleteHeldCart(ctx context.Context, owner string, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM held_carts WHERE id = $1 AND owner = $2`, id, owner)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
			AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, nullTime(from), nullTime(to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRecord
	}
	role := user.Role
	if role == "" {
		role = domain.RoleCashier
	}
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,true,$4)
	`, username, user.Password, role, createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRecord
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = $2 WHERE username = $1`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// deleteByID is only called with fixed table names.
func (s *Store) deleteByID(ctx context.Context, table string, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func validProduct(p domain.Product) bool {
	if strings.TrimSpace(p.Name) == "" || p.Stock < 0 {
		return false
	}
	return p.PurchasePrice >= 0 && p.BulkPrice >= 0 && p.IndividualPrice >= 0
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val time.Time) any {
	if val.IsZero() {
		return nil
	}
	return val
}
