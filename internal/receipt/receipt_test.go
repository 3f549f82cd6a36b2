package receipt

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"familypos/backend/internal/domain"
)

func sampleSale() domain.Sale {
	return domain.Sale{
		ID:        "sale-1",
		CreatedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.Local),
		Lines: []domain.SaleLine{{
			ProductID: "p-cake",
			Name:      "Butter Cake",
			PriceTier: domain.PriceTier{PurchasePrice: 300, BulkPrice: 420, IndividualPrice: 500},
			Quantity:  3,
			UnitPrice: 500,
			LineTotal: 1500,
		}},
		CustomerID:    domain.WalkInCustomerID,
		CustomerName:  domain.WalkInCustomerName,
		CustomerClass: domain.ClassRetail,
		TotalAmount:   1500,
		Profit:        600,
		PaymentMethod: domain.PaymentCash,
		CashReceived:  2000,
		Change:        500,
	}
}

func TestRenderCashReceipt(t *testing.T) {
	text := Render(sampleSale(), "")

	for _, want := range []string{
		"          Family Cake Receipt",
		"Date: 2026-03-14 09:30:00",
		"Customer: Walk-in Customer",
		"Customer Type: RETAIL",
		"Butter Cake x 3 @ 500 MMK = 1500 MMK",
		"Subtotal: 1500 MMK",
		"Total   : 1500 MMK",
		"Payment : CASH",
		"Cash Recvd: 2000 MMK",
		"Change    : 500 MMK",
		"Profit  : 600 MMK",
		"Thank You!",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("receipt missing %q:\n%s", want, text)
		}
	}
}

func TestRenderSplitOmitsZeroChannels(t *testing.T) {
	sale := sampleSale()
	sale.PaymentMethod = domain.PaymentSplit
	sale.CashReceived = 1000
	sale.CreditPayment = 0
	sale.MobilePayment = 500
	sale.Change = 0

	text := Render(sale, "")
	if !strings.Contains(text, "Cash Paid: 1000 MMK") || !strings.Contains(text, "Mobile Paid: 500 MMK") {
		t.Fatalf("expected non-zero split lines:\n%s", text)
	}
	if strings.Contains(text, "Credit Paid") || strings.Contains(text, "Change") {
		t.Fatalf("expected zero split lines to be omitted:\n%s", text)
	}
}

func TestRenderWholesaleFallsBackToTierPrice(t *testing.T) {
	sale := sampleSale()
	sale.CustomerClass = domain.ClassWholesale
	sale.Lines[0].UnitPrice = 0
	sale.PaymentMethod = domain.PaymentMobile

	text := Render(sale, "Corner Shop")
	if !strings.Contains(text, "Corner Shop Receipt") {
		t.Fatalf("expected custom header:\n%s", text)
	}
	if !strings.Contains(text, "Butter Cake x 3 @ 420 MMK = 1260 MMK") {
		t.Fatalf("expected bulk price line:\n%s", text)
	}
	if strings.Contains(text, "Cash Recvd") {
		t.Fatalf("mobile receipt should not carry cash lines:\n%s", text)
	}
}

func TestBuildEncodesEscPos(t *testing.T) {
	resp := Build(sampleSale(), "")
	raw, err := base64.StdEncoding.DecodeString(resp.EscposBase64)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte{0x1b, 0x40}) || !bytes.HasSuffix(raw, []byte{0x1d, 0x56, 0x41, 0x10}) {
		t.Fatalf("unexpected escpos framing: %x", raw)
	}
	if resp.FileName != "receipt-sale-1.bin" {
		t.Fatalf("unexpected file name %q", resp.FileName)
	}
}
