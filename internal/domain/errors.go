package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrProductUnavailable    = errors.New("product unavailable")
	ErrStockExceeded         = errors.New("stock exceeded")
	ErrInsufficientPayment   = errors.New("insufficient payment")
	ErrNoCreditCustomer      = errors.New("credit payment requires a customer")
	ErrConcurrentStockChange = errors.New("stock changed since cart was assembled")
	ErrInvalidReturnRequest  = errors.New("invalid return request")
	ErrPrivilegeDenied       = errors.New("admin privilege required")
	ErrEmptyCart             = errors.New("cart is empty")
)
