package payment

import (
	"errors"
	"testing"

	"familypos/backend/internal/domain"
)

func TestReconcileCash(t *testing.T) {
	s, err := Reconcile(1500, domain.PaymentInput{Method: domain.PaymentCash, CashReceived: 2000}, false)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if s.Change != 500 || s.CashPaid != 2000 {
		t.Fatalf("unexpected settlement: %+v", s)
	}

	if _, err := Reconcile(1500, domain.PaymentInput{Method: domain.PaymentCash, CashReceived: 1499}, false); !errors.Is(err, domain.ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
}

func TestReconcileCreditNeedsCustomer(t *testing.T) {
	if _, err := Reconcile(1500, domain.PaymentInput{Method: domain.PaymentCredit}, false); !errors.Is(err, domain.ErrNoCreditCustomer) {
		t.Fatalf("expected ErrNoCreditCustomer, got %v", err)
	}
	s, err := Reconcile(1500, domain.PaymentInput{Method: domain.PaymentCredit}, true)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if s.CreditPaid != 1500 || s.Change != 0 {
		t.Fatalf("unexpected settlement: %+v", s)
	}
}

func TestReconcileMobile(t *testing.T) {
	s, err := Reconcile(900, domain.PaymentInput{Method: domain.PaymentMobile}, false)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if s.MobilePaid != 900 || s.Change != 0 {
		t.Fatalf("unexpected settlement: %+v", s)
	}
}

func TestReconcileSplit(t *testing.T) {
	cases := []struct {
		name    string
		in      domain.PaymentInput
		hasCust bool
		change  int64
		wantErr error
	}{
		{name: "exact", in: domain.PaymentInput{Method: domain.PaymentSplit, CashAmount: 500, CreditAmount: 500, MobileAmount: 500}, hasCust: true},
		{name: "over", in: domain.PaymentInput{Method: domain.PaymentSplit, CashAmount: 1000, MobileAmount: 1000}, change: 500},
		{name: "short", in: domain.PaymentInput{Method: domain.PaymentSplit, CashAmount: 700, MobileAmount: 700}, wantErr: domain.ErrInsufficientPayment},
		{name: "credit walk-in", in: domain.PaymentInput{Method: domain.PaymentSplit, CashAmount: 1000, CreditAmount: 500}},
		{name: "walk-in all channels", in: domain.PaymentInput{Method: domain.PaymentSplit, CashAmount: 500, CreditAmount: 500, MobileAmount: 500}},
		{name: "negative", in: domain.PaymentInput{Method: domain.PaymentSplit, CashAmount: 2000, MobileAmount: -1}, wantErr: domain.ErrInvalidInput},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Reconcile(1500, tc.in, tc.hasCust)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("reconcile: %v", err)
			}
			if s.Change != tc.change {
				t.Fatalf("expected change %d, got %d", tc.change, s.Change)
			}
			if s.Tendered()-s.Change != 1500 {
				t.Fatalf("settlement does not reconcile: %+v", s)
			}
		})
	}
}

func TestReconcileUnknownMethod(t *testing.T) {
	if _, err := Reconcile(100, domain.PaymentInput{Method: "voucher"}, false); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
