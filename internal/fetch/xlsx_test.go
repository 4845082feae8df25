package fetch

import (
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, sheet string, rows [][]interface{}) []byte {
	t.Helper()
	wb := excelize.NewFile()
	defer wb.Close()

	if sheet != "Sheet1" {
		if _, err := wb.NewSheet(sheet); err != nil {
			t.Fatal(err)
		}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}

	buf, err := wb.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestParseWorkbook(t *testing.T) {
	body := buildWorkbook(t, "Sheet1", [][]interface{}{
		{"Daily Fund Disclosure"},
		{"As of 03/14/2026"},
		{"Ticker", "Name", "Weight (%)"},
		{"AAPL", "Apple Inc", 5.1},
		{"MSFT", "Microsoft Corp", 4.2},
	})

	page, err := parseWorkbook(body, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Table.Header) != 3 || page.Table.Header[0] != "Ticker" {
		t.Errorf("unexpected header: %v", page.Table.Header)
	}
	if len(page.Table.Rows) != 2 || page.Table.Rows[0][0] != "AAPL" {
		t.Errorf("unexpected rows: %v", page.Table.Rows)
	}
	if !strings.Contains(page.Text, "As of 03/14/2026") {
		t.Error("preamble lost from workbook text")
	}
}

func TestParseWorkbook_NamedSheet(t *testing.T) {
	body := buildWorkbook(t, "Holdings", [][]interface{}{
		{"Ticker", "Name", "Weight"},
		{"AAPL", "Apple Inc", 5.1},
	})

	page, err := parseWorkbook(body, "Holdings")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Table.Rows) != 1 {
		t.Errorf("unexpected rows: %v", page.Table.Rows)
	}
}

func TestParseWorkbook_NoHeader(t *testing.T) {
	body := buildWorkbook(t, "Sheet1", [][]interface{}{
		{"Quarterly Performance"},
		{"2026", "12%"},
	})

	if _, err := parseWorkbook(body, ""); err == nil {
		t.Error("expected error for a sheet without a holdings header")
	}
}

func TestParseWorkbook_NotAWorkbook(t *testing.T) {
	if _, err := parseWorkbook([]byte("<html>blocked</html>"), ""); err == nil {
		t.Error("expected error for a non-xlsx body")
	}
}

func TestParseWorkbook_MissingSheet(t *testing.T) {
	body := buildWorkbook(t, "Sheet1", [][]interface{}{
		{"Ticker", "Name", "Weight"},
		{"AAPL", "Apple Inc", 5.1},
	})

	if _, err := parseWorkbook(body, "Nope"); err == nil {
		t.Error("expected error for a missing sheet name")
	}
}
