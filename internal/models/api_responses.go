package models

// ErrorResponse is the common error shape for API responses
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// FundInfo describes one configured fund for the roster endpoint.
type FundInfo struct {
	Ticker  string `json:"ticker"`
	Issuer  string `json:"issuer"`
	Source  string `json:"source"`
	Enabled bool   `json:"enabled"`
}

// SnapshotResponse is one fund's current snapshot.
type SnapshotResponse struct {
	FundTicker string          `json:"fund_ticker"`
	AsOfDate   string          `json:"as_of_date"`
	Rows       []HoldingRecord `json:"rows"`
}

// RunRequest triggers an ingestion run for some or all funds.
type RunRequest struct {
	Tickers []string `json:"tickers,omitempty"` // empty = all enabled funds
	DryRun  bool     `json:"dry_run,omitempty"`
}
