// Package receipt renders committed sales for the counter printer.
package receipt

import (
	"encoding/base64"
	"fmt"
	"strings"

	"familypos/backend/internal/domain"
	"familypos/backend/internal/pricing"
)

const (
	rule          = "-----------------------------------------"
	dateLayout    = "2006-01-02 15:04:05"
	defaultHeader = "Family Cake Receipt"
)

// Money formats a whole-unit amount with the MMK suffix.
func Money(amount int64) string {
	return fmt.Sprintf("%d MMK", amount)
}

// Lines returns the receipt body one printed line per element.
func Lines(sale domain.Sale, shopName string) []string {
	header := strings.TrimSpace(shopName)
	if header == "" {
		header = defaultHeader
	} else if !strings.HasSuffix(header, "Receipt") {
		header += " Receipt"
	}
	customer := sale.CustomerName
	if customer == "" {
		customer = domain.WalkInCustomerName
	}
	class := sale.CustomerClass
	if class == "" {
		class = domain.ClassRetail
	}

	lines := []string{
		rule,
		center(header, len(rule)),
		rule,
		"Date: " + sale.CreatedAt.Local().Format(dateLayout),
		"Customer: " + customer,
		"Customer Type: " + strings.ToUpper(string(class)),
		rule,
		"Items:",
	}
	for _, item := range sale.Lines {
		price := item.UnitPrice
		if price == 0 {
			price = pricing.UnitPrice(item.PriceTier, class)
		}
		lines = append(lines, fmt.Sprintf("%s x %d @ %s = %s", item.Name, item.Quantity, Money(price), Money(price*int64(item.Quantity))))
	}

	lines = append(lines,
		"",
		rule,
		"Subtotal: "+Money(sale.TotalAmount),
		"Total   : "+Money(sale.TotalAmount),
		"Payment : "+strings.ToUpper(string(sale.PaymentMethod)),
	)
	switch sale.PaymentMethod {
	case domain.PaymentCash:
		lines = append(lines,
			"Cash Recvd: "+Money(sale.CashReceived),
			"Change    : "+Money(sale.Change),
		)
	case domain.PaymentSplit:
		if sale.CashReceived > 0 {
			lines = append(lines, "Cash Paid: "+Money(sale.CashReceived))
		}
		if sale.CreditPayment > 0 {
			lines = append(lines, "Credit Paid: "+Money(sale.CreditPayment))
		}
		if sale.MobilePayment > 0 {
			lines = append(lines, "Mobile Paid: "+Money(sale.MobilePayment))
		}
		if sale.Change > 0 {
			lines = append(lines, "Change    : "+Money(sale.Change))
		}
	}

	lines = append(lines,
		"",
		"Profit  : "+Money(sale.Profit),
		rule,
		center("Thank You!", len(rule)),
		rule,
	)
	return lines
}

func Render(sale domain.Sale, shopName string) string {
	return strings.Join(Lines(sale, shopName), "\n") + "\n"
}

// EscPos wraps text in printer init and partial-cut commands.
func EscPos(text string) []byte {
	out := []byte{0x1b, 0x40}
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		out = append(out, []byte(line)...)
		out = append(out, '\n')
	}
	return append(out, 0x1d, 0x56, 0x41, 0x10)
}

func Build(sale domain.Sale, shopName string) domain.ReceiptResponse {
	text := Render(sale, shopName)
	return domain.ReceiptResponse{
		SaleID:       sale.ID,
		Text:         text,
		EscposBase64: base64.StdEncoding.EncodeToString(EscPos(text)),
		FileName:     fmt.Sprintf("receipt-%s.bin", sale.ID),
	}
}

func center(s string, width int) string {
	pad := (width - len(s)) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}
