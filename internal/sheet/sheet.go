// Package sheet reads product import spreadsheets and writes report workbooks.
package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"familypos/backend/internal/domain"
	"familypos/backend/internal/report"
)

var headerAliases = map[string]string{
	"name":             "name",
	"product":          "name",
	"product name":     "name",
	"item":             "name",
	"category":         "category",
	"type":             "category",
	"supplier":         "supplier",
	"vendor":           "supplier",
	"purchase price":   "purchase_price",
	"cost":             "purchase_price",
	"cost price":       "purchase_price",
	"buy price":        "purchase_price",
	"bulk price":       "bulk_price",
	"wholesale":        "bulk_price",
	"wholesale price":  "bulk_price",
	"individual price": "individual_price",
	"retail":           "individual_price",
	"retail price":     "individual_price",
	"price":            "individual_price",
	"sell price":       "individual_price",
	"stock":            "stock",
	"qty":              "stock",
	"quantity":         "stock",
}

// ParseProducts reads a product sheet. The format is picked from the file
// extension; unknown extensions try xlsx first and then csv.
func ParseProducts(fileName string, reader io.Reader) ([]domain.ProductImportRow, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}

	ext := strings.ToLower(strings.TrimSpace(filepath.Ext(fileName)))
	switch ext {
	case ".csv":
		rows, err := parseCSVRows(data)
		if err != nil {
			return nil, err
		}
		return parseProductTable(rows)
	case ".xlsx", ".xlsm":
		rows, err := parseExcelRows(data)
		if err != nil {
			return nil, err
		}
		return parseProductTable(rows)
	default:
		if rows, err := parseExcelRows(data); err == nil {
			if items, err := parseProductTable(rows); err == nil {
				return items, nil
			}
		}
		if rows, err := parseCSVRows(data); err == nil {
			if items, err := parseProductTable(rows); err == nil {
				return items, nil
			}
		}
		return nil, fmt.Errorf("unsupported or invalid product file format")
	}
}

func parseProductTable(rows [][]string) ([]domain.ProductImportRow, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("file has no data rows")
	}
	colMap := mapColumns(rows[0])
	for _, required := range []string{"name", "purchase_price", "bulk_price", "individual_price"} {
		if _, ok := colMap[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	result := make([]domain.ProductImportRow, 0, len(rows)-1)
	for index, cells := range rows[1:] {
		rowNum := index + 2
		name := strings.TrimSpace(readCell(cells, colIndex(colMap, "name")))
		if name == "" {
			if rowIsEmpty(cells) {
				continue
			}
			return nil, fmt.Errorf("row %d missing product name", rowNum)
		}

		purchase, err := parseAmount(readCell(cells, colIndex(colMap, "purchase_price")))
		if err != nil {
			return nil, fmt.Errorf("row %d invalid purchase price: %w", rowNum, err)
		}
		bulk, err := parseAmount(readCell(cells, colIndex(colMap, "bulk_price")))
		if err != nil {
			return nil, fmt.Errorf("row %d invalid bulk price: %w", rowNum, err)
		}
		individual, err := parseAmount(readCell(cells, colIndex(colMap, "individual_price")))
		if err != nil {
			return nil, fmt.Errorf("row %d invalid individual price: %w", rowNum, err)
		}

		stock := 0
		if raw := strings.TrimSpace(readCell(cells, colIndex(colMap, "stock"))); raw != "" {
			qty, err := parseAmount(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d invalid stock: %w", rowNum, err)
			}
			stock = int(qty)
		}

		category := strings.ToLower(strings.TrimSpace(readCell(cells, colIndex(colMap, "category"))))
		if category == "" {
			category = "other"
		}
		supplier := strings.TrimSpace(readCell(cells, colIndex(colMap, "supplier")))
		if supplier == "" {
			supplier = domain.NoSupplier
		}

		result = append(result, domain.ProductImportRow{
			Row: rowNum,
			Product: domain.ProductInput{
				Name:            name,
				Category:        category,
				Supplier:        supplier,
				PurchasePrice:   purchase,
				BulkPrice:       bulk,
				IndividualPrice: individual,
				Stock:           stock,
			},
		})
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("file has no valid data rows")
	}
	return result, nil
}

func parseCSVRows(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}
	return rows, nil
}

func parseExcelRows(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("excel file has no sheets")
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("excel file is empty")
	}
	return rows, nil
}

func mapColumns(header []string) map[string]int {
	mapped := make(map[string]int)
	for idx, col := range header {
		canonical, ok := headerAliases[normalizeHeader(col)]
		if !ok {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", " ")
	return strings.Join(strings.Fields(value), " ")
}

func colIndex(colMap map[string]int, key string) int {
	if idx, ok := colMap[key]; ok {
		return idx
	}
	return -1
}

func readCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func rowIsEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseAmount accepts whole non-negative numbers, with optional thousands
// separators and an optional "MMK" suffix.
func parseAmount(raw string) (int64, error) {
	value := strings.TrimSpace(raw)
	value = strings.TrimSpace(strings.TrimSuffix(strings.ToUpper(value), "MMK"))
	if value == "" {
		return 0, fmt.Errorf("value is empty")
	}
	parsed, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.Mod(parsed, 1) != 0 {
		return 0, fmt.Errorf("must be a whole number")
	}
	if parsed < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return int64(parsed), nil
}

// ReportWorkbook renders a report as an xlsx file: a summary sheet followed by
// one sheet per table.
func ReportWorkbook(r report.Report) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	const summary = "Summary"
	if err := file.SetSheetName("Sheet1", summary); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := setRow(file, summary, 1, []any{r.Title}); err != nil {
		return nil, err
	}
	for i, m := range r.Summary {
		if err := setRow(file, summary, i+3, []any{m.Label, m.Amount}); err != nil {
			return nil, err
		}
	}

	used := map[string]int{summary: 1}
	for _, table := range r.Tables {
		name := sheetName(table.Title, used)
		if _, err := file.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %q: %w", name, err)
		}
		header := make([]any, len(table.Header))
		for i, h := range table.Header {
			header[i] = h
		}
		if err := setRow(file, name, 1, header); err != nil {
			return nil, err
		}
		for i, row := range table.Rows {
			values := make([]any, len(row))
			for j, cell := range row {
				values[j] = cellValue(cell)
			}
			if err := setRow(file, name, i+2, values); err != nil {
				return nil, err
			}
		}
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(file *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := file.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// cellValue keeps numeric report cells numeric so spreadsheets can sum them.
func cellValue(raw string) any {
	trimmed := strings.TrimSpace(strings.TrimSuffix(raw, " MMK"))
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return n
	}
	return raw
}

// sheetName makes a valid, unique worksheet name (max 31 chars).
func sheetName(title string, used map[string]int) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return ' '
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "Table"
	}
	if len(name) > 28 {
		name = name[:28]
	}
	base := name
	for used[name] > 0 {
		used[base]++
		name = fmt.Sprintf("%s %d", base, used[base])
	}
	used[name]++
	return name
}
