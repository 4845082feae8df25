package fetch

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/epeers/etfarchive/config"
)

// htmlAdapter handles issuers whose holdings sit in a server-rendered HTML
// table (First Trust style). The page usually carries other tables for
// navigation and performance, so the holdings one is found by header
// keywords rather than position.
type htmlAdapter struct {
	client *Client
}

func (a *htmlAdapter) Fetch(ctx context.Context, fund config.Fund) (*RawPage, error) {
	page, err := scrapeTablePage(ctx, a.client, fund.URL)
	if err != nil {
		return nil, &FetchError{FundTicker: fund.Ticker, Attempts: a.client.attempts(), Err: err}
	}
	return page, nil
}

// scrapeTablePage downloads a page and extracts the holdings table plus the
// page's visible text. Shared by the html adapter and the CSV adapters'
// fallback path.
func scrapeTablePage(ctx context.Context, client *Client, url string) (*RawPage, error) {
	body, err := client.get(ctx, url)
	if err != nil {
		return nil, err
	}
	return extractTablePage(bytes.NewReader(body))
}

func extractTablePage(r *bytes.Reader) (*RawPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	table, ok := findHoldingsTable(doc)
	if !ok {
		return nil, fmt.Errorf("no holdings table found in page")
	}

	return &RawPage{Table: table, Text: doc.Text()}, nil
}

// minTableRows skips tiny tables (nav widgets, top-5 blurbs) during the hunt.
const minTableRows = 5

// findHoldingsTable walks every <table> in the document looking for one
// whose header mentions a holdings keyword. Tables without <th> cells get
// header promotion: the first row is treated as the header.
func findHoldingsTable(doc *goquery.Document) (*Table, bool) {
	var found *Table

	doc.Find("table").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		header, rows := tableCells(sel)
		if len(rows) < minTableRows {
			return true
		}

		if len(header) == 0 && len(rows) > 0 {
			// Header promotion: first row becomes the header.
			header, rows = rows[0], rows[1:]
		}

		if !headerMatches(header) {
			return true
		}

		found = &Table{Header: header, Rows: rows}
		return false
	})

	return found, found != nil
}

func headerMatches(header []string) bool {
	for _, cell := range header {
		lower := strings.ToLower(strings.TrimSpace(cell))
		for _, kw := range headerKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
		if strings.Contains(lower, "weight") {
			return true
		}
	}
	return false
}

// tableCells flattens one <table> selection into a header (from <th> cells)
// and data rows.
func tableCells(sel *goquery.Selection) (header []string, rows [][]string) {
	sel.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		ths := tr.Find("th")
		if ths.Length() > 0 && header == nil {
			ths.Each(func(_ int, th *goquery.Selection) {
				header = append(header, strings.TrimSpace(th.Text()))
			})
			return
		}

		var row []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			row = append(row, strings.TrimSpace(td.Text()))
		})
		if len(row) > 0 {
			rows = append(rows, row)
		}
	})
	return header, rows
}
