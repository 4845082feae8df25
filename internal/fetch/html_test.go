package fetch

import (
	"bytes"
	"strings"
	"testing"
)

// holdingsHTML mimics a First Trust style fund page: a small nav table
// first, then the real holdings table with <th> headers.
const holdingsHTML = `<html><body>
<p>Fund holdings as of March 14, 2026</p>
<table>
  <tr><td>Overview</td><td>Performance</td></tr>
  <tr><td>Fees</td><td>Documents</td></tr>
</table>
<table>
  <tr><th>Ticker</th><th>Name</th><th>Weight (%)</th></tr>
  <tr><td>AAPL</td><td>Apple Inc</td><td>5.10</td></tr>
  <tr><td>MSFT</td><td>Microsoft Corp</td><td>4.20</td></tr>
  <tr><td>NVDA</td><td>NVIDIA Corp</td><td>3.90</td></tr>
  <tr><td>GOOG</td><td>Alphabet Inc</td><td>3.10</td></tr>
  <tr><td>AMZN</td><td>Amazon.com Inc</td><td>2.80</td></tr>
</table>
</body></html>`

func TestExtractTablePage(t *testing.T) {
	page, err := extractTablePage(bytes.NewReader([]byte(holdingsHTML)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Table.Header) != 3 || page.Table.Header[0] != "Ticker" {
		t.Errorf("unexpected header: %v", page.Table.Header)
	}
	if len(page.Table.Rows) != 5 || page.Table.Rows[4][0] != "AMZN" {
		t.Errorf("unexpected rows: %v", page.Table.Rows)
	}
	// Page prose survives for the date hunter.
	if !strings.Contains(page.Text, "holdings as of March 14, 2026") {
		t.Error("page text lost the as-of line")
	}
}

func TestExtractTablePage_HeaderPromotion(t *testing.T) {
	// No <th> cells anywhere: the first row is promoted to the header.
	html := `<table>
	  <tr><td>Symbol</td><td>Name</td><td>Weight</td></tr>
	  <tr><td>AAPL</td><td>Apple Inc</td><td>5.1</td></tr>
	  <tr><td>MSFT</td><td>Microsoft Corp</td><td>4.2</td></tr>
	  <tr><td>NVDA</td><td>NVIDIA Corp</td><td>3.9</td></tr>
	  <tr><td>GOOG</td><td>Alphabet Inc</td><td>3.1</td></tr>
	  <tr><td>AMZN</td><td>Amazon.com Inc</td><td>2.8</td></tr>
	</table>`
	page, err := extractTablePage(bytes.NewReader([]byte(html)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Table.Header[0] != "Symbol" {
		t.Errorf("header promotion failed: %v", page.Table.Header)
	}
	if len(page.Table.Rows) != 5 || page.Table.Rows[0][0] != "AAPL" {
		t.Errorf("unexpected rows: %v", page.Table.Rows)
	}
}

func TestExtractTablePage_NoHoldingsTable(t *testing.T) {
	html := `<table>
	  <tr><th>Year</th><th>Return</th></tr>
	  <tr><td>2021</td><td>12%</td></tr>
	  <tr><td>2022</td><td>-8%</td></tr>
	  <tr><td>2023</td><td>19%</td></tr>
	  <tr><td>2024</td><td>11%</td></tr>
	  <tr><td>2025</td><td>7%</td></tr>
	</table>`
	// Big enough, but the header mentions nothing holdings-like.
	if _, err := extractTablePage(bytes.NewReader([]byte(html))); err == nil {
		t.Error("expected no-table error for a performance table")
	}
}

func TestExtractTablePage_SmallTablesIgnored(t *testing.T) {
	html := `<table>
	  <tr><th>Ticker</th><th>Weight</th></tr>
	  <tr><td>AAPL</td><td>5.1</td></tr>
	  <tr><td>MSFT</td><td>4.2</td></tr>
	</table>`
	// A top-holdings blurb with under five rows is not the full table.
	if _, err := extractTablePage(bytes.NewReader([]byte(html))); err == nil {
		t.Error("expected tiny tables to be skipped")
	}
}

func TestHeaderMatches(t *testing.T) {
	cases := []struct {
		header []string
		want   bool
	}{
		{[]string{"Ticker", "Name", "Weight (%)"}, true},
		{[]string{"StockTicker", "SecurityName", "MarketValue"}, true},
		{[]string{"% Weight", "Company"}, true},
		{[]string{"Year", "Return"}, false},
		{nil, false},
	}
	for _, c := range cases {
		if got := headerMatches(c.header); got != c.want {
			t.Errorf("headerMatches(%v) = %v, want %v", c.header, got, c.want)
		}
	}
}
