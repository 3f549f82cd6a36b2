package sheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"familypos/backend/internal/report"
)

func TestParseProductsCSV(t *testing.T) {
	input := "\ufeffProduct Name,Category,Supplier,Cost,Wholesale Price,Retail Price,Qty\n" +
		"Butter Cake,Sweets,Yangon Flour,3000,4200,\"5,000\",20\n" +
		",,,,,,\n" +
		"Milk Tea,,,600,900,1200 MMK,\n"

	rows, err := ParseProducts("products.csv", strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	cake := rows[0]
	if cake.Row != 2 || cake.Product.Name != "Butter Cake" || cake.Product.Category != "sweets" {
		t.Fatalf("unexpected first row: %+v", cake)
	}
	if cake.Product.IndividualPrice != 5000 || cake.Product.BulkPrice != 4200 || cake.Product.Stock != 20 {
		t.Fatalf("unexpected prices: %+v", cake.Product)
	}

	tea := rows[1]
	if tea.Row != 4 || tea.Product.Category != "other" || tea.Product.Supplier != "N/A" {
		t.Fatalf("expected defaults on second row, got %+v", tea)
	}
	if tea.Product.IndividualPrice != 1200 || tea.Product.Stock != 0 {
		t.Fatalf("unexpected tea values: %+v", tea.Product)
	}
}

func TestParseProductsReportsBadRow(t *testing.T) {
	input := "name,purchase_price,bulk_price,individual_price\nCake,3000,abc,5000\n"
	_, err := ParseProducts("products.csv", strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "row 2 invalid bulk price") {
		t.Fatalf("expected row error, got %v", err)
	}

	missing := "name,price\nCake,5000\n"
	if _, err := ParseProducts("products.csv", strings.NewReader(missing)); err == nil {
		t.Fatalf("expected missing column error")
	}
}

func TestParseProductsXLSX(t *testing.T) {
	file := excelize.NewFile()
	defer file.Close()
	rows := [][]any{
		{"Name", "Purchase Price", "Bulk Price", "Individual Price", "Stock"},
		{"Potato Chips", 500, 700, 1000, 50},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := file.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := file.WriteToBuffer()
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	parsed, err := ParseProducts("upload", bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(parsed) != 1 || parsed[0].Product.Name != "Potato Chips" || parsed[0].Product.Stock != 50 {
		t.Fatalf("unexpected rows: %+v", parsed)
	}
}

func TestReportWorkbook(t *testing.T) {
	r := report.Report{
		Type:    report.Daily,
		Title:   "Daily Report for 2026-10-14",
		Summary: []report.Metric{{Label: "Total Sales", Amount: 6200}},
		Tables: []report.Table{
			{Title: "Sales Details", Header: []string{"Time", "Product", "Total"}, Rows: [][]string{{"09:10:00", "Milk Tea", "1200 MMK"}}},
			{Title: "Sales Details", Header: []string{"Type"}, Rows: [][]string{{"rent"}}},
		},
	}

	data, err := ReportWorkbook(r)
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) != 3 || sheets[0] != "Summary" || sheets[2] != "Sales Details 2" {
		t.Fatalf("unexpected sheets: %v", sheets)
	}
	total, err := file.GetCellValue("Summary", "B3")
	if err != nil || total != "6200" {
		t.Fatalf("expected summary amount 6200, got %q (%v)", total, err)
	}
	lineTotal, _ := file.GetCellValue("Sales Details", "C2")
	if lineTotal != "1200" {
		t.Fatalf("expected numeric line total, got %q", lineTotal)
	}
}
