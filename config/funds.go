package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Source identifies which adapter fetches a fund's holdings page.
type Source string

const (
	SourceCSV       Source = "csv"        // plain CSV download, possibly with preamble lines (Pacer)
	SourceCSVDirect Source = "csv_direct" // CSV export link with HTML-table fallback (Alpha Architect)
	SourceCSVLink   Source = "csv_link"   // constructed download link with page-scrape fallback (Invesco)
	SourceHTML      Source = "html"       // server-rendered holdings table (First Trust)
	SourceRendered  Source = "rendered"   // JS-rendered page, needs a headless browser
	SourceXLSX      Source = "xlsx"       // Excel workbook download
)

// Fund is the per-fund configuration consumed by the source adapters and the
// canonicalizer. Columns maps canonical field names ("ticker", "name",
// "weight") to issuer-specific header aliases, extending the built-in alias
// table; most funds don't need it.
type Fund struct {
	Ticker       string              `json:"ticker"`
	Issuer       string              `json:"issuer"`
	Enabled      bool                `json:"enabled"`
	Source       Source              `json:"source"`
	URL          string              `json:"url"`
	FallbackURL  string              `json:"fallback_url,omitempty"`  // page to table-scrape when the download link fails
	WaitSelector string              `json:"wait_selector,omitempty"` // rendered source: selector to wait for
	Sheet        string              `json:"sheet,omitempty"`         // xlsx source: sheet name, first sheet if empty
	Columns      map[string][]string `json:"columns,omitempty"`
	FilterCash   *bool               `json:"filter_cash,omitempty"` // default true: drop cash/collateral rows
}

// FilterCashRows resolves the tri-state FilterCash flag.
func (f Fund) FilterCashRows() bool {
	if f.FilterCash == nil {
		return true
	}
	return *f.FilterCash
}

// LoadFunds reads the fund roster JSON. Disabled funds are kept in the
// returned slice so the API can list them; callers filter on Enabled.
func LoadFunds(path string) ([]Fund, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fund roster: %w", err)
	}

	var funds []Fund
	if err := json.Unmarshal(data, &funds); err != nil {
		return nil, fmt.Errorf("failed to parse fund roster %s: %w", path, err)
	}

	seen := make(map[string]bool, len(funds))
	for i, f := range funds {
		funds[i].Ticker = strings.ToUpper(strings.TrimSpace(f.Ticker))
		if funds[i].Ticker == "" {
			return nil, fmt.Errorf("fund roster entry %d has no ticker", i)
		}
		if seen[funds[i].Ticker] {
			return nil, fmt.Errorf("duplicate fund ticker %s in roster", funds[i].Ticker)
		}
		seen[funds[i].Ticker] = true
		if funds[i].URL == "" && f.Source != SourceCSVLink {
			return nil, fmt.Errorf("fund %s has no url", funds[i].Ticker)
		}
	}

	return funds, nil
}

// EnabledFunds filters the roster down to funds that should be scraped,
// optionally restricted to an explicit ticker list (the CLI's -only flag).
func EnabledFunds(funds []Fund, only []string) []Fund {
	want := make(map[string]bool, len(only))
	for _, t := range only {
		want[strings.ToUpper(strings.TrimSpace(t))] = true
	}

	var out []Fund
	for _, f := range funds {
		if !f.Enabled {
			continue
		}
		if len(want) > 0 && !want[f.Ticker] {
			continue
		}
		out = append(out, f)
	}
	return out
}
