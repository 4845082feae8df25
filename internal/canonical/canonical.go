// Package canonical maps each issuer's raw table layout onto the one
// canonical holding schema. Column quirks are handled declaratively through
// an alias table (extendable per fund), never through per-issuer code paths.
package canonical

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/epeers/etfarchive/config"
	"github.com/epeers/etfarchive/internal/dates"
	"github.com/epeers/etfarchive/internal/fetch"
	"github.com/epeers/etfarchive/internal/models"
	log "github.com/sirupsen/logrus"
)

// ErrNoTickerColumn means the extracted table has no recognizable ticker
// column at all, so nothing in it can be canonicalized.
var ErrNoTickerColumn = errors.New("no ticker column found")

// RowError marks one raw row that could not be canonicalized. Such rows are
// dropped and counted; they never abort the fund.
type RowError struct {
	Row    int // 1-based data row number
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// Stats reports what canonicalization dropped or adjusted.
type Stats struct {
	Malformed  int  // rows dropped via RowError
	Filtered   int  // cash/garbage rows removed by the stop-word filter
	Duplicates int  // repeated tickers, first occurrence kept
	Rescaled   bool // weights arrived fraction-scaled and were multiplied by 100
}

// Dropped is the total number of source rows that didn't survive.
func (s Stats) Dropped() int {
	return s.Malformed + s.Filtered + s.Duplicates
}

// defaultAliases maps canonical fields to the header names issuers use.
// All comparison happens on lowercased, space-squeezed headers.
var defaultAliases = map[string][]string{
	"ticker": {"ticker", "stockticker", "symbol", "holding", "identifier", "holding ticker", "stock ticker"},
	"name": {"name", "securityname", "security name", "security", "company", "company name",
		"description", "holding name"},
	"weight": {"weight", "weighting", "weightings", "% tna", "% of net assets", "%_of_net_assets",
		"% net assets", "percent of net assets", "market value %", "% of fund", "weight (%)"},
}

// stopWords flag rows that are cash, collateral, or aggregate garbage rather
// than real constituents. Matched case-insensitively against ticker and name.
var stopWords = []string{
	"cash", "usd", "liquidity", "government", "treasury", "money market", "net other", "total",
}

// Canonicalize converts one fund's raw extraction into ordered canonical
// records stamped with the resolved date. Rank is assigned by stable-sorting
// on weight descending, so equal weights keep the issuer's row order.
func Canonicalize(table *fetch.Table, fund config.Fund, resolved dates.Resolved) ([]models.HoldingRecord, Stats, error) {
	var stats Stats

	if table == nil || len(table.Rows) == 0 {
		return nil, stats, fmt.Errorf("fund %s: empty extraction", fund.Ticker)
	}

	cols, err := resolveColumns(table.Header, fund)
	if err != nil {
		return nil, stats, fmt.Errorf("fund %s: %w", fund.Ticker, err)
	}

	filterCash := fund.FilterCashRows()
	seen := make(map[string]bool, len(table.Rows))
	records := make([]models.HoldingRecord, 0, len(table.Rows))

	for i, row := range table.Rows {
		rec, rowErr := buildRecord(row, i+1, cols, fund, resolved)
		if rowErr != nil {
			stats.Malformed++
			log.Debugf("canonical: %s %v", fund.Ticker, rowErr)
			continue
		}

		if filterCash && isStopWordRow(rec) {
			stats.Filtered++
			continue
		}

		key := rec.Ticker
		if key == "" {
			key = "name:" + strings.ToUpper(rec.Name)
		}
		if seen[key] {
			stats.Duplicates++
			continue
		}
		seen[key] = true

		records = append(records, *rec)
	}

	if len(records) == 0 {
		return nil, stats, fmt.Errorf("fund %s: no rows survived canonicalization (%d malformed, %d filtered)",
			fund.Ticker, stats.Malformed, stats.Filtered)
	}

	// Issuers disagree on scale: some report 7.83 (percent), others 0.0783
	// (fraction). A column whose max is <= 1.0 across a real portfolio can
	// only be fraction-scaled.
	if max := maxWeight(records); max > 0 && max <= 1.0 {
		for i := range records {
			records[i].WeightPct *= 100
		}
		stats.Rescaled = true
	}

	sort.SliceStable(records, func(a, b int) bool {
		return records[a].WeightPct > records[b].WeightPct
	})
	for i := range records {
		records[i].Rank = i + 1
	}

	return records, stats, nil
}

// columns holds resolved column indexes; -1 means absent.
type columns struct {
	ticker int
	name   int
	weight int
}

func resolveColumns(header []string, fund config.Fund) (columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[normalizeHeader(h)] = i
	}

	find := func(field string) int {
		for _, alias := range fund.Columns[field] {
			if idx, ok := index[normalizeHeader(alias)]; ok {
				return idx
			}
		}
		for _, alias := range defaultAliases[field] {
			if idx, ok := index[normalizeHeader(alias)]; ok {
				return idx
			}
		}
		return -1
	}

	cols := columns{ticker: find("ticker"), name: find("name"), weight: find("weight")}
	if cols.ticker < 0 {
		return cols, fmt.Errorf("%w (headers: %s)", ErrNoTickerColumn, strings.Join(header, ", "))
	}
	return cols, nil
}

func buildRecord(row []string, rowNum int, cols columns, fund config.Fund, resolved dates.Resolved) (*models.HoldingRecord, *RowError) {
	cell := func(idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	ticker := CleanTicker(cell(cols.ticker))
	name := cell(cols.name)
	if ticker == "" && name == "" {
		return nil, &RowError{Row: rowNum, Reason: "no ticker or name"}
	}

	weight := 0.0
	if cols.weight >= 0 {
		raw := cell(cols.weight)
		if raw == "" {
			return nil, &RowError{Row: rowNum, Reason: "empty weight"}
		}
		w, err := ParseWeight(raw)
		if err != nil {
			return nil, &RowError{Row: rowNum, Reason: err.Error()}
		}
		weight = w
	}

	return &models.HoldingRecord{
		FundTicker:     fund.Ticker,
		Ticker:         ticker,
		Name:           name,
		WeightPct:      weight,
		AsOfDate:       resolved.Date,
		Status:         models.StatusExisting, // re-tagged by the change detector
		DateConfidence: resolved.Confidence,
	}, nil
}

func isStopWordRow(rec *models.HoldingRecord) bool {
	ticker := strings.ToLower(rec.Ticker)
	name := strings.ToLower(rec.Name)
	for _, w := range stopWords {
		if strings.Contains(ticker, w) || strings.Contains(name, w) {
			return true
		}
	}
	return false
}

func maxWeight(records []models.HoldingRecord) float64 {
	max := 0.0
	for _, r := range records {
		if r.WeightPct > max {
			max = r.WeightPct
		}
	}
	return max
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "_", " ")
	return strings.Join(strings.Fields(h), " ")
}
