// Package fetch contains the per-issuer source adapters. Every adapter
// produces the same thing for a fund: an unparsed table plus the raw page
// text. Issuer quirks (preamble lines, hidden tables, download links that
// need a fallback page scrape, JS rendering) stay inside the adapter and are
// invisible past this boundary.
package fetch

import (
	"context"
	"fmt"

	"github.com/epeers/etfarchive/config"
)

// Table is an extracted but not yet canonicalized holdings table.
type Table struct {
	Header []string
	Rows   [][]string
}

// RawPage is what an adapter hands to the rest of the pipeline: the holdings
// table and the page text the date resolver hunts through. Text includes CSV
// preamble lines and page prose, wherever issuers tend to hide the as-of date.
type RawPage struct {
	Table *Table
	Text  string
}

// Adapter fetches raw holdings content for one fund.
type Adapter interface {
	Fetch(ctx context.Context, fund config.Fund) (*RawPage, error)
}

// FetchError wraps the last failure after all fetch attempts for a fund are
// exhausted. The orchestrator treats it as a per-fund skip, never a fatal
// abort of the run.
type FetchError struct {
	FundTicker string
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for %s after %d attempt(s): %v", e.FundTicker, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ForSource selects the adapter for a fund's configured source type.
func (c *Client) ForSource(source config.Source) (Adapter, error) {
	switch source {
	case config.SourceCSV:
		return &csvAdapter{client: c}, nil
	case config.SourceCSVDirect:
		return &csvAdapter{client: c, fallbackScrape: true}, nil
	case config.SourceCSVLink:
		return &csvAdapter{client: c, fallbackScrape: true, buildLink: invescoLink}, nil
	case config.SourceHTML:
		return &htmlAdapter{client: c}, nil
	case config.SourceRendered:
		return &renderedAdapter{client: c}, nil
	case config.SourceXLSX:
		return &xlsxAdapter{client: c}, nil
	default:
		return nil, fmt.Errorf("unknown source type %q", source)
	}
}
