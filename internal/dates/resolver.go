// Package dates recovers the authoritative "as of" disclosure date from
// issuer pages. Issuers rarely publish the date as a structured field, so
// resolution is layered: structured column, then a pattern hunt over raw
// page text near anchor phrases, then the run's own invocation date as a
// last resort. The chosen layer is recorded as a confidence tag so that
// downstream consumers never mistake a fallback date for an observed one.
package dates

import (
	"regexp"
	"strings"
	"time"

	"github.com/epeers/etfarchive/internal/models"
	log "github.com/sirupsen/logrus"
)

// Resolved is the outcome of date resolution for one fund page.
type Resolved struct {
	Date       models.Date
	Confidence models.DateConfidence
}

// ResolutionError means no valid date could be produced, fallback included.
// In practice this only happens when the caller supplies a zero invocation
// time; it is fatal for that fund's run.
type ResolutionError struct {
	FundTicker string
}

func (e *ResolutionError) Error() string {
	return "no disclosure date could be resolved for " + e.FundTicker
}

// structuredAliases are header names that mark a column as the as-of date.
// Compared after lowercasing and squeezing separators to single spaces.
var structuredAliases = map[string]bool{
	"as of":          true,
	"as of date":     true,
	"asof":           true,
	"asofdate":       true,
	"date":           true,
	"holdings date":  true,
	"data date":      true,
	"effective date": true,
}

// anchors are phrases that tend to sit next to the disclosure date in page
// text. Matched case-insensitively; the hunt only considers dates within a
// short window after an anchor so page footers full of copyright years
// don't win.
var anchors = []string{
	"holdings as of",
	"as of",
	"as-of",
	"holdings date",
	"data date",
	"effective date",
	"data as at",
	"updated",
}

// anchorWindow is how many characters past an anchor phrase are searched.
const anchorWindow = 120

// datePattern pairs a recognizer regexp with the time layouts its matches
// are parsed under. Order is priority: numeric US forms first (what ETF
// issuers overwhelmingly publish), then ISO, then textual month names.
type datePattern struct {
	re      *regexp.Regexp
	layouts []string
}

var datePatterns = []datePattern{
	{regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`), []string{"1/2/2006"}},
	{regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`), []string{"2006-01-02"}},
	{regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2}\b`), []string{"1/2/06"}},
	{regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b`),
		[]string{"January 2, 2006", "January 2 2006", "Jan 2, 2006", "Jan 2 2006", "Jan. 2, 2006", "Jan. 2 2006"}},
	{regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{4}\b`),
		[]string{"2 January 2006", "2 Jan 2006"}},
}

var ordinalSuffix = regexp.MustCompile(`(\d)(?:st|nd|rd|th)\b`)

// Resolve recovers the disclosure date for one fund page. header/rows are
// the extracted table (either may be empty), text is the raw page text, and
// now is the run's invocation time used both for plausibility checks and as
// the final fallback.
func Resolve(fundTicker string, header []string, rows [][]string, text string, now time.Time) (Resolved, error) {
	if d, ok := fromStructured(header, rows, now); ok {
		log.Debugf("dates: %s structured as-of date %s", fundTicker, d)
		return Resolved{Date: d, Confidence: models.ConfidenceObserved}, nil
	}

	if d, ok := fromText(text, now); ok {
		log.Debugf("dates: %s hunted as-of date %s from page text", fundTicker, d)
		return Resolved{Date: d, Confidence: models.ConfidenceInferred}, nil
	}

	if now.IsZero() {
		return Resolved{}, &ResolutionError{FundTicker: fundTicker}
	}

	d := models.DateOf(now)
	log.Warnf("dates: %s has no discoverable as-of date, falling back to run date %s", fundTicker, d)
	return Resolved{Date: d, Confidence: models.ConfidenceFallback}, nil
}

// fromStructured looks for an as-of column in the tabular data and parses
// its first non-empty cell.
func fromStructured(header []string, rows [][]string, now time.Time) (models.Date, bool) {
	col := -1
	for i, h := range header {
		if structuredAliases[normalizeHeader(h)] {
			col = i
			break
		}
	}
	if col < 0 {
		return models.Date{}, false
	}

	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		if d, ok := parseCandidate(cell, now); ok {
			return d, true
		}
	}
	return models.Date{}, false
}

// fromText hunts for a date-shaped substring in the window following each
// anchor phrase. Anchors are tried in priority order across the whole text
// before moving to the next anchor, so "holdings as of" beats a stray
// "updated" elsewhere on the page. The whole hunt runs over the lowercased
// text: Unicode case mapping can change byte lengths, so offsets found in
// the lowered copy must never slice the original. Anchors and date shapes
// are ASCII, and time.Parse matches month names case-insensitively.
func fromText(text string, now time.Time) (models.Date, bool) {
	if text == "" {
		return models.Date{}, false
	}
	lower := strings.ToLower(text)

	for _, anchor := range anchors {
		from := 0
		for {
			idx := strings.Index(lower[from:], anchor)
			if idx < 0 {
				break
			}
			start := from + idx + len(anchor)
			end := start + anchorWindow
			if end > len(lower) {
				end = len(lower)
			}
			if d, ok := huntWindow(lower[start:end], now); ok {
				return d, true
			}
			from = start
		}
	}
	return models.Date{}, false
}

// huntWindow applies the prioritized pattern list to one anchor window.
func huntWindow(window string, now time.Time) (models.Date, bool) {
	for _, p := range datePatterns {
		for _, m := range p.re.FindAllString(window, -1) {
			if d, ok := parseWith(m, p.layouts, now); ok {
				return d, true
			}
		}
	}
	return models.Date{}, false
}

// parseCandidate tries every known pattern against one isolated value, as
// found in a structured cell.
func parseCandidate(s string, now time.Time) (models.Date, bool) {
	s = strings.TrimSpace(s)
	for _, p := range datePatterns {
		m := p.re.FindString(s)
		if m == "" {
			continue
		}
		if d, ok := parseWith(m, p.layouts, now); ok {
			return d, true
		}
	}
	return models.Date{}, false
}

func parseWith(s string, layouts []string, now time.Time) (models.Date, bool) {
	cleaned := ordinalSuffix.ReplaceAllString(s, "$1")
	for _, layout := range layouts {
		t, err := time.Parse(layout, cleaned)
		if err != nil {
			continue
		}
		d := models.DateOf(t)
		if plausible(d, now) {
			return d, true
		}
	}
	return models.Date{}, false
}

// plausible rejects impossible or clearly wrong candidates: anything before
// 1990 (ETFs barely existed) or more than two days in the future (issuers
// never pre-publish). Rejected candidates fall through to the next strategy.
func plausible(d models.Date, now time.Time) bool {
	if d.Year() < 1990 {
		return false
	}
	if now.IsZero() {
		return true
	}
	horizon := models.DateOf(now.AddDate(0, 0, 2))
	return !d.After(horizon)
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer("_", " ", "-", " ", ":", "").Replace(h)
	return strings.Join(strings.Fields(h), " ")
}
