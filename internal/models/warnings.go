package models

// WarningCode categorizes warnings by subsystem.
// W1xxx = extraction/canonicalization, W2xxx = date resolution, W3xxx = archive.
type WarningCode string

const (
	WarnMalformedRows   WarningCode = "W1001" // rows dropped because ticker/name/weight could not be parsed
	WarnFilteredRows    WarningCode = "W1002" // cash/collateral/garbage rows removed by the stop-word filter
	WarnDuplicateRows   WarningCode = "W1003" // repeated tickers in one extraction, first occurrence kept
	WarnWeightScale     WarningCode = "W1004" // weights arrived fraction-scaled and were rescaled to percent
	WarnDateFallback    WarningCode = "W2001" // no as-of date found anywhere; run date used instead
	WarnDateInferred    WarningCode = "W2002" // as-of date recovered from page text, not a structured field
	WarnDateRegression  WarningCode = "W3001" // resolved date precedes the archived one; write suppressed
	WarnMirrorFailed    WarningCode = "W3002" // Postgres ledger mirror write failed (files already committed)
)

// Warning represents a non-fatal issue encountered during processing.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}
