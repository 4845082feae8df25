package models

import "time"

// OutcomeState is the per-fund verdict of one ingestion run.
type OutcomeState string

const (
	OutcomeSkipped OutcomeState = "skipped" // source confirmed unchanged, no write
	OutcomeWritten OutcomeState = "written" // snapshot archived (new date or same-date correction)
	OutcomeAnomaly OutcomeState = "anomaly" // date regression, write suppressed
	OutcomeFailed  OutcomeState = "failed"  // fetch/resolve/archive error, fund skipped
)

// FundOutcome records what happened to one fund during a run.
type FundOutcome struct {
	FundTicker  string       `json:"fund_ticker"`
	State       OutcomeState `json:"state"`
	Reason      string       `json:"reason,omitempty"` // populated for failed/anomaly
	AsOfDate    *Date        `json:"as_of_date,omitempty"`
	RowsWritten int          `json:"rows_written"`
	RowsDropped int          `json:"rows_dropped"`
	Warnings    []Warning    `json:"warnings,omitempty"`
}

// RunSummary aggregates per-fund outcomes for one invocation. A run is
// successful when no fund failed; partial failure is reported, never fatal
// to the other funds.
type RunSummary struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Skipped    int           `json:"skipped"`
	Written    int           `json:"written"`
	Anomalies  int           `json:"anomalies"`
	Failed     int           `json:"failed"`
	Outcomes   []FundOutcome `json:"outcomes"`
}

// Add folds one outcome into the summary counters.
func (s *RunSummary) Add(o FundOutcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.State {
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeWritten:
		s.Written++
	case OutcomeAnomaly:
		s.Anomalies++
	case OutcomeFailed:
		s.Failed++
	}
}

// AllFailed reports whether every configured fund failed. The CLI exits
// non-zero only in this case; partial failure still exits 0.
func (s *RunSummary) AllFailed() bool {
	return len(s.Outcomes) > 0 && s.Failed == len(s.Outcomes)
}
