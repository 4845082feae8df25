package fetch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/epeers/etfarchive/config"
	log "github.com/sirupsen/logrus"
)

// invescoLink builds the issuer's holdings export URL from a fund ticker.
// The export endpoint is stable even though the fund pages move around.
func invescoLink(fund config.Fund) string {
	return "https://www.invesco.com/us/en/financial-products/etfs/holdings/main/holdings/0?ticker=" +
		fund.Ticker + "&action=download"
}

// csvAdapter handles every issuer that publishes holdings as a CSV download.
// Variants:
//   - plain (Pacer): the file carries preamble lines before the real header.
//   - fallbackScrape (Alpha Architect, Invesco): the export link is flaky, so
//     a failed download falls back to scraping the fund page's HTML table.
//   - buildLink (Invesco): the URL is constructed from the ticker instead of
//     configured.
type csvAdapter struct {
	client         *Client
	fallbackScrape bool
	buildLink      func(config.Fund) string
}

func (a *csvAdapter) Fetch(ctx context.Context, fund config.Fund) (*RawPage, error) {
	url := fund.URL
	if a.buildLink != nil && url == "" {
		url = a.buildLink(fund)
	}

	body, err := a.client.get(ctx, url)
	if err == nil {
		if len(body) < minCSVBytes {
			err = fmt.Errorf("CSV response for %s suspiciously small (%d bytes)", fund.Ticker, len(body))
		} else if page, perr := parseCSVPage(string(body)); perr != nil {
			err = perr
		} else {
			return page, nil
		}
	}

	if a.fallbackScrape && fund.FallbackURL != "" {
		log.Warnf("fetch: %s CSV download failed (%v), trying page scrape of %s", fund.Ticker, err, fund.FallbackURL)
		page, ferr := scrapeTablePage(ctx, a.client, fund.FallbackURL)
		if ferr == nil {
			return page, nil
		}
		err = errors.Join(err, ferr)
	}

	return nil, &FetchError{FundTicker: fund.Ticker, Attempts: a.client.attempts(), Err: err}
}

// minCSVBytes guards against anti-bot interstitials served with status 200.
const minCSVBytes = 50

// headerKeywords mark the real header line inside a CSV that carries
// preamble rows ("Fund Holdings", "As of 03/14/2026", ...) before the data.
var headerKeywords = []string{"ticker", "symbol", "holding", "identifier", "cusip", "stockticker"}

// parseCSVPage splits a raw CSV body into preamble text (kept for the date
// hunter) and the holdings table starting at the first header-looking line.
func parseCSVPage(body string) (*RawPage, error) {
	lines := strings.Split(body, "\n")

	start := 0
	for i, line := range lines {
		if i >= 20 {
			break
		}
		if isHeaderLine(line) {
			start = i
			break
		}
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines[start:], "\n")))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV body: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV body has no data rows")
	}

	table := &Table{Header: records[0], Rows: records[1:]}
	// Preamble plus the body itself: some issuers put "as of" inside a data
	// column rather than above the header.
	return &RawPage{Table: table, Text: body}, nil
}

func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	// Preamble prose ("Holdings as of ...") can mention a keyword too; a real
	// header line is comma-delimited.
	if !strings.Contains(lower, ",") {
		return false
	}
	for _, kw := range headerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
