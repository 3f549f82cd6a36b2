package domain

import "time"

type CustomerClass string

const (
	ClassRetail    CustomerClass = "retail"
	ClassWholesale CustomerClass = "wholesale"
)

func (c CustomerClass) Valid() bool {
	return c == ClassRetail || c == ClassWholesale
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCredit PaymentMethod = "credit"
	PaymentMobile PaymentMethod = "mobile"
	PaymentSplit  PaymentMethod = "split"
)

type ExpenseType string

const (
	ExpenseSupplierPayment ExpenseType = "supplier_payment"
	ExpenseRent            ExpenseType = "rent"
	ExpenseUtilities       ExpenseType = "utilities"
	ExpenseTransport       ExpenseType = "transport"
	ExpenseSupplies        ExpenseType = "supplies"
	ExpenseOther           ExpenseType = "other"
	ExpenseRefund          ExpenseType = "refund"
)

func (t ExpenseType) Valid() bool {
	switch t {
	case ExpenseSupplierPayment, ExpenseRent, ExpenseUtilities, ExpenseTransport, ExpenseSupplies, ExpenseOther, ExpenseRefund:
		return true
	default:
		return false
	}
}

var ProductCategories = []string{"snacks", "sweets", "beverages", "other"}

const (
	WalkInCustomerID    = "walk-in"
	WalkInCustomerName  = "Walk-in Customer"
	UnknownCustomerName = "Unknown Customer"
	NoSupplier          = "N/A"

	LowStockThreshold = 5
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

const (
	SaleSourcePOS    = "pos"
	SaleSourceManual = "manual"
)

// PriceTier holds the three per-unit prices of a product, in whole MMK.
type PriceTier struct {
	PurchasePrice   int64 `json:"purchase_price"`
	BulkPrice       int64 `json:"bulk_price"`
	IndividualPrice int64 `json:"individual_price"`
}

type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Supplier string `json:"supplier"`
	PriceTier
	Stock      int       `json:"stock"`
	SalesCount int       `json:"sales_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact"`
	Address   string    `json:"address"`
	Credit    int64     `json:"credit"`
	CreatedAt time.Time `json:"created_at"`
}

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact"`
	Address   string    `json:"address"`
	Credit    int64     `json:"credit"`
	CreatedAt time.Time `json:"created_at"`
}

// CartLine snapshots product prices at the time the line was added.
type CartLine struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	PriceTier
	Quantity int `json:"quantity"`
}

type CartState struct {
	Lines         []CartLine    `json:"lines"`
	CustomerID    string        `json:"customer_id,omitempty"`
	CustomerClass CustomerClass `json:"customer_class"`
}

type PaymentInput struct {
	Method       PaymentMethod `json:"method"`
	CashReceived int64         `json:"cash_received"`
	CashAmount   int64         `json:"cash_amount"`
	CreditAmount int64         `json:"credit_amount"`
	MobileAmount int64         `json:"mobile_amount"`
}

type Settlement struct {
	Method     PaymentMethod `json:"method"`
	CashPaid   int64         `json:"cash_paid"`
	CreditPaid int64         `json:"credit_paid"`
	MobilePaid int64         `json:"mobile_paid"`
	Change     int64         `json:"change"`
}

func (s Settlement) Tendered() int64 {
	return s.CashPaid + s.CreditPaid + s.MobilePaid
}

type SaleLine struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	PriceTier
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
	LineTotal int64 `json:"line_total"`
}

// Sale is an append-only ledger entry.
type Sale struct {
	ID              string        `json:"id"`
	CreatedAt       time.Time     `json:"created_at"`
	Lines           []SaleLine    `json:"lines"`
	CustomerID      string        `json:"customer_id"`
	CustomerName    string        `json:"customer_name"`
	CustomerClass   CustomerClass `json:"customer_class"`
	TotalAmount     int64         `json:"total_amount"`
	Profit          int64         `json:"profit"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	CashReceived    int64         `json:"cash_received"`
	CreditPayment   int64         `json:"credit_payment"`
	MobilePayment   int64         `json:"mobile_payment"`
	Change          int64         `json:"change"`
	CashierUsername string        `json:"cashier_username"`
	Source          string        `json:"source"`
}

func (s Sale) IsWalkIn() bool {
	return s.CustomerID == "" || s.CustomerID == WalkInCustomerID
}

type Expense struct {
	ID          string      `json:"id"`
	CreatedAt   time.Time   `json:"created_at"`
	Type        ExpenseType `json:"type"`
	Description string      `json:"description"`
	Amount      int64       `json:"amount"`
	Supplier    string      `json:"supplier"`
	SaleID      string      `json:"sale_id,omitempty"`
}

type HeldCart struct {
	ID            string        `json:"id"`
	Owner         string        `json:"owner"`
	HeldAt        time.Time     `json:"held_at"`
	Lines         []CartLine    `json:"lines"`
	CustomerID    string        `json:"customer_id,omitempty"`
	CustomerName  string        `json:"customer_name"`
	CustomerClass CustomerClass `json:"customer_class"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

// Actor is the authenticated caller. Elevated is set for a single request
// after a manager PIN check.
type Actor struct {
	Username string
	Role     string
	Elevated bool
}

func (a Actor) IsPrivileged() bool {
	return a.Role == RoleAdmin || a.Elevated
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type ProductInput struct {
	Name            string `json:"name"`
	Category        string `json:"category"`
	Supplier        string `json:"supplier"`
	PurchasePrice   int64  `json:"purchase_price"`
	BulkPrice       int64  `json:"bulk_price"`
	IndividualPrice int64  `json:"individual_price"`
	Stock           int    `json:"stock"`
}

// PartyInput is the editable shape shared by customers and suppliers.
type PartyInput struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Address string `json:"address"`
	Credit  int64  `json:"credit"`
}

type AddItemRequest struct {
	ProductID string `json:"product_id"`
}

type ChangeQuantityRequest struct {
	Delta int `json:"delta"`
}

type CustomerSelection struct {
	CustomerID    string        `json:"customer_id"`
	CustomerClass CustomerClass `json:"customer_class"`
}

type CartLineView struct {
	CartLine
	UnitPrice  int64 `json:"unit_price"`
	UnitMargin int64 `json:"unit_margin"`
	LineTotal  int64 `json:"line_total"`
}

type CartView struct {
	Lines         []CartLineView `json:"lines"`
	CustomerID    string         `json:"customer_id,omitempty"`
	CustomerName  string         `json:"customer_name"`
	CustomerClass CustomerClass  `json:"customer_class"`
	Subtotal      int64          `json:"subtotal"`
	Total         int64          `json:"total"`
	Profit        int64          `json:"profit"`
	Payment       PaymentInput   `json:"payment"`
	Settlement    *Settlement    `json:"settlement,omitempty"`
	PaymentError  string         `json:"payment_error,omitempty"`
	Warning       string         `json:"warning,omitempty"`
}

type CommitResponse struct {
	Sale    Sale   `json:"sale"`
	Receipt string `json:"receipt"`
}

type ReceiptResponse struct {
	SaleID       string `json:"sale_id"`
	Text         string `json:"text"`
	EscposBase64 string `json:"escpos_base64"`
	FileName     string `json:"file_name"`
}

type HeldCartListResponse struct {
	Items []HeldCart `json:"items"`
}

type ManualSaleRequest struct {
	ProductID     string        `json:"product_id"`
	CustomerID    string        `json:"customer_id"`
	SaleType      string        `json:"sale_type"`
	Quantity      int           `json:"quantity"`
	PaymentMethod PaymentMethod `json:"payment_method"`
}

type ReturnRequest struct {
	SaleID string `json:"sale_id"`
	Reason string `json:"reason"`
}

type ReturnResponse struct {
	SaleID    string  `json:"sale_id"`
	Expense   Expense `json:"expense"`
	Restocked int     `json:"restocked_units"`
}

type ExpenseInput struct {
	Type        ExpenseType `json:"type"`
	Description string      `json:"description"`
	Amount      int64       `json:"amount"`
	Supplier    string      `json:"supplier"`
}

type Activity struct {
	Kind        string    `json:"kind"`
	At          time.Time `json:"at"`
	Description string    `json:"description"`
	Positive    bool      `json:"positive"`
}

type Dashboard struct {
	ProductCount   int        `json:"product_count"`
	TodaySales     int64      `json:"today_sales"`
	MonthSales     int64      `json:"month_sales"`
	TotalProfit    int64      `json:"total_profit"`
	LowStock       []Product  `json:"low_stock"`
	RecentActivity []Activity `json:"recent_activity"`
}

type ProductImportRow struct {
	Row     int
	Product ProductInput
}

type ImportResult struct {
	Created int      `json:"created"`
	Skipped []string `json:"skipped"`
}
