package fetch

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/epeers/etfarchive/config"
	"github.com/xuri/excelize/v2"
)

// xlsxAdapter handles issuers that publish holdings as an Excel workbook.
// The sheet is scanned the same way the CSV adapter scans preamble lines:
// rows above the header keep their text available to the date resolver.
type xlsxAdapter struct {
	client *Client
}

func (a *xlsxAdapter) Fetch(ctx context.Context, fund config.Fund) (*RawPage, error) {
	body, err := a.client.get(ctx, fund.URL)
	if err != nil {
		return nil, &FetchError{FundTicker: fund.Ticker, Attempts: a.client.attempts(), Err: err}
	}

	page, err := parseWorkbook(body, fund.Sheet)
	if err != nil {
		return nil, &FetchError{FundTicker: fund.Ticker, Attempts: a.client.attempts(), Err: err}
	}
	return page, nil
}

func parseWorkbook(body []byte, sheet string) (*RawPage, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer wb.Close()

	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	// Find the header row; anything above it is preamble prose.
	headerIdx := -1
	for i, row := range rows {
		if i >= 20 {
			break
		}
		if isHeaderLine(strings.Join(row, ",")) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 || headerIdx+1 >= len(rows) {
		return nil, fmt.Errorf("no holdings header found in sheet %q", sheet)
	}

	var text strings.Builder
	for _, row := range rows {
		text.WriteString(strings.Join(row, " "))
		text.WriteString("\n")
	}

	return &RawPage{
		Table: &Table{Header: rows[headerIdx], Rows: rows[headerIdx+1:]},
		Text:  text.String(),
	}, nil
}
