// Package report aggregates the sales and expense ledgers into the shop's
// daily, monthly, product and profit reports.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"familypos/backend/internal/domain"
	"familypos/backend/internal/pricing"
)

type Type string

const (
	Daily   Type = "daily"
	Monthly Type = "monthly"
	Product Type = "product"
	Profit  Type = "profit"
)

func ParseType(raw string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(raw))); t {
	case Daily, Monthly, Product, Profit:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown report type %q", domain.ErrInvalidInput, raw)
	}
}

type Metric struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

type Table struct {
	Title  string     `json:"title"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

type Report struct {
	Type    Type     `json:"type"`
	Title   string   `json:"title"`
	Summary []Metric `json:"summary"`
	Tables  []Table  `json:"tables"`
}

// Input carries the ledgers a report is built from. Entries outside the
// report window are ignored.
type Input struct {
	Sales    []domain.Sale
	Expenses []domain.Expense
	Products []domain.Product
}

// Window returns the half-open [from, to) period a report covers. Product and
// profit reports span all time and return zero times.
func Window(t Type, day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	switch t {
	case Daily:
		from := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
		return from, from.AddDate(0, 0, 1)
	case Monthly:
		from := time.Date(y, m, 1, 0, 0, 0, 0, day.Location())
		return from, from.AddDate(0, 1, 0)
	default:
		return time.Time{}, time.Time{}
	}
}

// Closed reports whether the window ended before now, meaning the rendered
// report can no longer change through new sales.
func Closed(t Type, day, now time.Time) bool {
	_, to := Window(t, day)
	return !to.IsZero() && !now.Before(to)
}

func FileName(t Type, day time.Time) string {
	return fmt.Sprintf("%s_report_%s.txt", t, day.Format("2006-01-02"))
}

func Build(t Type, day time.Time, in Input) (Report, error) {
	from, to := Window(t, day)
	sales := filterSales(in.Sales, from, to)
	expenses := filterExpenses(in.Expenses, from, to)

	switch t {
	case Daily:
		return buildDaily(day, sales, expenses), nil
	case Monthly:
		return buildMonthly(day, sales, expenses), nil
	case Product:
		return buildProduct(sales, in.Products), nil
	case Profit:
		return buildProfit(sales, expenses), nil
	default:
		return Report{}, fmt.Errorf("%w: unknown report type %q", domain.ErrInvalidInput, t)
	}
}

func buildDaily(day time.Time, sales []domain.Sale, expenses []domain.Expense) Report {
	r := Report{
		Type:    Daily,
		Title:   "Daily Report for " + day.Format("2006-01-02"),
		Summary: periodSummary(sales, expenses),
	}

	saleRows := Table{Title: "Sales Details", Header: []string{"Time", "Product", "Qty", "Total", "Profit"}}
	for _, sale := range sales {
		for _, line := range sale.Lines {
			saleRows.Rows = append(saleRows.Rows, []string{
				sale.CreatedAt.Local().Format("15:04:05"),
				line.Name,
				strconv.Itoa(line.Quantity),
				money(line.LineTotal),
				money(lineProfit(line, sale.CustomerClass)),
			})
		}
	}

	expenseRows := Table{Title: "Expense Details", Header: []string{"Time", "Type", "Description", "Amount"}}
	for _, e := range expenses {
		desc := e.Description
		if desc == "" {
			desc = domain.NoSupplier
		}
		expenseRows.Rows = append(expenseRows.Rows, []string{
			e.CreatedAt.Local().Format("15:04:05"),
			TypeLabel(e.Type),
			desc,
			money(e.Amount),
		})
	}

	r.Tables = []Table{saleRows, expenseRows}
	return r
}

func buildMonthly(day time.Time, sales []domain.Sale, expenses []domain.Expense) Report {
	r := Report{
		Type:    Monthly,
		Title:   "Monthly Report for " + day.Format("2006-01"),
		Summary: periodSummary(sales, expenses),
	}

	type productTotals struct {
		qty           int
		total, profit int64
	}
	byProduct := map[string]*productTotals{}
	var names []string
	for _, sale := range sales {
		for _, line := range sale.Lines {
			pt, ok := byProduct[line.Name]
			if !ok {
				pt = &productTotals{}
				byProduct[line.Name] = pt
				names = append(names, line.Name)
			}
			pt.qty += line.Quantity
			pt.total += line.LineTotal
			pt.profit += lineProfit(line, sale.CustomerClass)
		}
	}
	productTable := Table{Title: "Sales Summary by Product", Header: []string{"Product", "Qty Sold", "Total Sales", "Total Profit"}}
	for _, name := range names {
		pt := byProduct[name]
		productTable.Rows = append(productTable.Rows, []string{name, strconv.Itoa(pt.qty), money(pt.total), money(pt.profit)})
	}

	byType := map[string]int64{}
	var labels []string
	for _, e := range expenses {
		label := TypeLabel(e.Type)
		if _, ok := byType[label]; !ok {
			labels = append(labels, label)
		}
		byType[label] += e.Amount
	}
	expenseTable := Table{Title: "Expense Summary by Type", Header: []string{"Expense Type", "Total Amount"}}
	for _, label := range labels {
		expenseTable.Rows = append(expenseTable.Rows, []string{label, money(byType[label])})
	}

	r.Tables = []Table{productTable, expenseTable}
	return r
}

func buildProduct(sales []domain.Sale, products []domain.Product) Report {
	type productTotals struct {
		qty             int
		revenue, profit int64
	}
	byID := map[string]*productTotals{}
	for _, sale := range sales {
		for _, line := range sale.Lines {
			pt, ok := byID[line.ProductID]
			if !ok {
				pt = &productTotals{}
				byID[line.ProductID] = pt
			}
			pt.qty += line.Quantity
			pt.revenue += line.LineTotal
			pt.profit += lineProfit(line, sale.CustomerClass)
		}
	}

	sorted := make([]domain.Product, len(products))
	copy(sorted, products)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	table := Table{
		Title:  "Product Performance",
		Header: []string{"Product Name", "Current Stock", "Total Sales Quantity", "Total Sales Revenue", "Total Profit"},
	}
	for _, p := range sorted {
		pt := byID[p.ID]
		if pt == nil {
			pt = &productTotals{}
		}
		table.Rows = append(table.Rows, []string{p.Name, strconv.Itoa(p.Stock), strconv.Itoa(pt.qty), money(pt.revenue), money(pt.profit)})
	}
	return Report{Type: Product, Title: "Product Report (Performance)", Tables: []Table{table}}
}

func buildProfit(sales []domain.Sale, expenses []domain.Expense) Report {
	var revenue, cogs, opex int64
	for _, sale := range sales {
		revenue += sale.TotalAmount
		for _, line := range sale.Lines {
			cogs += line.PurchasePrice * int64(line.Quantity)
		}
	}
	for _, e := range expenses {
		opex += e.Amount
	}
	gross := revenue - cogs
	return Report{
		Type:  Profit,
		Title: "Profit Analysis",
		Summary: []Metric{
			{Label: "Total Revenue", Amount: revenue},
			{Label: "Total Cost of Goods Sold", Amount: cogs},
			{Label: "Gross Profit", Amount: gross},
			{Label: "Total Operating Expenses", Amount: opex},
			{Label: "Net Profit (Overall)", Amount: gross - opex},
		},
	}
}

func periodSummary(sales []domain.Sale, expenses []domain.Expense) []Metric {
	var totalSales, grossProfit, totalExpenses int64
	for _, s := range sales {
		totalSales += s.TotalAmount
		grossProfit += s.Profit
	}
	for _, e := range expenses {
		totalExpenses += e.Amount
	}
	return []Metric{
		{Label: "Total Sales", Amount: totalSales},
		{Label: "Total Expenses", Amount: totalExpenses},
		{Label: "Net Profit", Amount: totalSales - totalExpenses},
		{Label: "Gross Profit (from sales)", Amount: grossProfit},
	}
}

// Text renders the report body as the plain-text export.
func (r Report) Text() string {
	var buf bytes.Buffer
	buf.WriteString(r.Title + "\n")
	buf.WriteString(strings.Repeat("=", len(r.Title)) + "\n")
	if len(r.Summary) > 0 {
		buf.WriteString("\n")
		tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
		for _, m := range r.Summary {
			fmt.Fprintf(tw, "%s:\t%s\n", m.Label, money(m.Amount))
		}
		_ = tw.Flush()
	}
	for _, table := range r.Tables {
		buf.WriteString("\n" + table.Title + ":\n")
		tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(table.Header, "\t"))
		for _, row := range table.Rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		_ = tw.Flush()
	}
	return buf.String()
}

// TypeLabel turns an expense type such as supplier_payment into Supplier Payment.
func TypeLabel(t domain.ExpenseType) string {
	words := strings.Split(string(t), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func lineProfit(line domain.SaleLine, class domain.CustomerClass) int64 {
	if line.UnitPrice == 0 && line.LineTotal == 0 {
		return pricing.LineMargin(line.PriceTier, class, line.Quantity)
	}
	return line.LineTotal - line.PurchasePrice*int64(line.Quantity)
}

func money(amount int64) string {
	return fmt.Sprintf("%d MMK", amount)
}

func filterSales(sales []domain.Sale, from, to time.Time) []domain.Sale {
	if from.IsZero() && to.IsZero() {
		return sales
	}
	out := make([]domain.Sale, 0, len(sales))
	for _, s := range sales {
		if inWindow(s.CreatedAt, from, to) {
			out = append(out, s)
		}
	}
	return out
}

func filterExpenses(expenses []domain.Expense, from, to time.Time) []domain.Expense {
	if from.IsZero() && to.IsZero() {
		return expenses
	}
	out := make([]domain.Expense, 0, len(expenses))
	for _, e := range expenses {
		if inWindow(e.CreatedAt, from, to) {
			out = append(out, e)
		}
	}
	return out
}

func inWindow(at, from, to time.Time) bool {
	return !at.Before(from) && at.Before(to)
}
