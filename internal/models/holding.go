package models

// HoldingStatus tags a holding relative to the previously archived snapshot
// of the same fund.
type HoldingStatus string

const (
	StatusNew      HoldingStatus = "NEW"      // ticker absent from the previous snapshot
	StatusExisting HoldingStatus = "EXISTING" // ticker present in both snapshots
	StatusRemoved  HoldingStatus = "REMOVED"  // ticker present previously, absent now (ledger only)
)

// DateConfidence records how the as-of date of a snapshot was obtained.
// Downstream consumers use it to distinguish dates the issuer actually
// published from dates this system had to infer or assume.
type DateConfidence string

const (
	// ConfidenceObserved means the date came from a structured field in the
	// issuer's tabular data.
	ConfidenceObserved DateConfidence = "observed"
	// ConfidenceInferred means the date was recovered from unstructured page
	// text near an anchor phrase ("as of", "holdings date", ...).
	ConfidenceInferred DateConfidence = "inferred"
	// ConfidenceFallback means no date was found anywhere and the run's own
	// invocation date was used. Such snapshots may be misdated.
	ConfidenceFallback DateConfidence = "fallback"
)

// HoldingRecord is the canonical unit of the archive: one constituent
// security within one fund's portfolio on one disclosure date. Records are
// built fresh on every scrape cycle and never mutated after creation.
type HoldingRecord struct {
	FundTicker     string         `json:"fund_ticker"`
	Ticker         string         `json:"ticker"` // may be empty for cash/unresolved rows
	Name           string         `json:"name"`
	WeightPct      float64        `json:"weight_pct"` // 0-100 scale
	Rank           int            `json:"rank"`       // 1-based, by weight descending
	AsOfDate       Date           `json:"as_of_date"`
	Status         HoldingStatus  `json:"status"`
	DateConfidence DateConfidence `json:"date_confidence"`
}
