// Package payment reconciles a tender against a sale total.
package payment

import (
	"fmt"

	"familypos/backend/internal/domain"
)

// Reconcile validates in against total and returns how the total is settled
// across channels. hasCustomer reports whether a non walk-in customer is
// selected; only the credit method requires one. For every accepted
// settlement Tendered() - Change == total.
func Reconcile(total int64, in domain.PaymentInput, hasCustomer bool) (domain.Settlement, error) {
	if total < 0 {
		return domain.Settlement{}, fmt.Errorf("%w: negative total", domain.ErrInvalidInput)
	}

	switch in.Method {
	case domain.PaymentCash, "":
		if in.CashReceived < total {
			return domain.Settlement{}, fmt.Errorf("%w: received %d MMK of %d MMK", domain.ErrInsufficientPayment, in.CashReceived, total)
		}
		return domain.Settlement{
			Method:   domain.PaymentCash,
			CashPaid: in.CashReceived,
			Change:   in.CashReceived - total,
		}, nil

	case domain.PaymentCredit:
		if !hasCustomer {
			return domain.Settlement{}, domain.ErrNoCreditCustomer
		}
		return domain.Settlement{Method: domain.PaymentCredit, CreditPaid: total}, nil

	case domain.PaymentMobile:
		return domain.Settlement{Method: domain.PaymentMobile, MobilePaid: total}, nil

	case domain.PaymentSplit:
		if in.CashAmount < 0 || in.CreditAmount < 0 || in.MobileAmount < 0 {
			return domain.Settlement{}, fmt.Errorf("%w: split amounts must not be negative", domain.ErrInvalidInput)
		}
		paid := in.CashAmount + in.CreditAmount + in.MobileAmount
		if paid < total {
			return domain.Settlement{}, fmt.Errorf("%w: paid %d MMK of %d MMK", domain.ErrInsufficientPayment, paid, total)
		}
		return domain.Settlement{
			Method:     domain.PaymentSplit,
			CashPaid:   in.CashAmount,
			CreditPaid: in.CreditAmount,
			MobilePaid: in.MobileAmount,
			Change:     paid - total,
		}, nil

	default:
		return domain.Settlement{}, fmt.Errorf("%w: unknown payment method %q", domain.ErrInvalidInput, in.Method)
	}
}

// Apply copies the settlement onto the sale's per-channel fields.
func Apply(sale *domain.Sale, s domain.Settlement) {
	sale.PaymentMethod = s.Method
	sale.CashReceived = s.CashPaid
	sale.CreditPayment = s.CreditPaid
	sale.MobilePayment = s.MobilePaid
	sale.Change = s.Change
}
