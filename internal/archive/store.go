// Package archive persists canonical snapshots into the three storage
// surfaces: the per-fund latest snapshot, the per-date aggregate, and the
// append-only ledger. A fund's commit touches all three as one logical
// transaction: every surface is staged to a temp file first and the swaps
// are rolled back if any of them fails, so no partial update is ever
// observable.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/epeers/etfarchive/internal/detect"
	"github.com/epeers/etfarchive/internal/models"
	log "github.com/sirupsen/logrus"
)

// WriteError is a fatal per-fund archive failure. The orchestrator records
// the fund as failed; the surfaces are guaranteed untouched.
type WriteError struct {
	FundTicker string
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("archive write failed for %s: %v", e.FundTicker, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// CommitResult summarizes what one commit wrote.
type CommitResult struct {
	Decision    detect.Decision
	AsOfDate    models.Date
	RowsWritten int // rows in the fund's new snapshot
	LedgerRows  int // rows actually appended to the ledger (incl. REMOVED)
}

// Store owns the archive directory tree:
//
//	<root>/latest/<FUND>.csv
//	<root>/history/<YYYY>/<MM>/<DD>/master_archive.csv
//	<root>/ledger.csv
//
// Commits from concurrent fund pipelines are serialized on one mutex: the
// dated and ledger surfaces are shared across funds and must see whole
// commits only.
type Store struct {
	root string
	mu   sync.Mutex
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

func (s *Store) latestPath(fund string) string {
	return filepath.Join(s.root, "latest", fund+".csv")
}

func (s *Store) datedPath(d models.Date) string {
	return filepath.Join(s.root, "history", d.Format("2006"), d.Format("01"), d.Format("02"), "master_archive.csv")
}

func (s *Store) ledgerPath() string {
	return filepath.Join(s.root, "ledger.csv")
}

// ReadLatest returns the fund's current latest snapshot, or nil if the fund
// has never been archived.
func (s *Store) ReadLatest(fund string) ([]models.HoldingRecord, error) {
	return s.readSurface(s.latestPath(fund), latestHeader, fund)
}

// ReadDated returns every fund's rows archived for one calendar date.
func (s *Store) ReadDated(d models.Date) ([]models.HoldingRecord, error) {
	return s.readSurface(s.datedPath(d), datedHeader, "")
}

// ReadLedger returns the full ledger history, optionally filtered to one fund.
func (s *Store) ReadLedger(fund string) ([]models.HoldingRecord, error) {
	all, err := s.readSurface(s.ledgerPath(), ledgerHeader, "")
	if err != nil || fund == "" {
		return all, err
	}
	var out []models.HoldingRecord
	for _, r := range all {
		if r.FundTicker == fund {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) readSurface(path string, header []string, fund string) ([]models.HoldingRecord, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	records, err := decodeRows(f, header, fund)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Commit writes one fund's snapshot across the surfaces the decision calls
// for. records must be the tagged snapshot; removed are the ledger-only
// REMOVED rows. The context is honored only before staging begins: once the
// commit starts it runs to completion or rolls back fully.
func (s *Store) Commit(ctx context.Context, fund string, records, removed []models.HoldingRecord, decision detect.Decision) (CommitResult, error) {
	res := CommitResult{Decision: decision}

	if decision != detect.WriteSameDate && decision != detect.WriteNewDate {
		return res, &WriteError{FundTicker: fund, Err: fmt.Errorf("decision %s is not a write", decision)}
	}
	if len(records) == 0 {
		return res, &WriteError{FundTicker: fund, Err: fmt.Errorf("nothing to commit")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Last cancellation point. Past here the commit is all-or-nothing.
	if err := ctx.Err(); err != nil {
		return res, &WriteError{FundTicker: fund, Err: err}
	}

	date := records[0].AsOfDate
	res.AsOfDate = date
	res.RowsWritten = len(records)

	latestRows := make([][]string, 0, len(records))
	for _, r := range records {
		latestRows = append(latestRows, latestRow(r))
	}

	datedRows, err := s.mergeDated(fund, date, records)
	if err != nil {
		return res, &WriteError{FundTicker: fund, Err: err}
	}

	ledgerRows, appended, err := s.mergeLedger(fund, date, records, removed, decision)
	if err != nil {
		return res, &WriteError{FundTicker: fund, Err: err}
	}
	res.LedgerRows = appended

	tx := newSurfaceTx()
	defer tx.cleanup()

	if err := tx.stage(s.latestPath(fund), latestHeader, latestRows); err != nil {
		return res, &WriteError{FundTicker: fund, Err: err}
	}
	if err := tx.stage(s.datedPath(date), datedHeader, datedRows); err != nil {
		return res, &WriteError{FundTicker: fund, Err: err}
	}
	if err := tx.stage(s.ledgerPath(), ledgerHeader, ledgerRows); err != nil {
		return res, &WriteError{FundTicker: fund, Err: err}
	}

	if err := tx.swap(); err != nil {
		return res, &WriteError{FundTicker: fund, Err: err}
	}

	log.Infof("archive: committed %s %s (%s, %d rows, %d ledger rows)",
		fund, date, decision, res.RowsWritten, res.LedgerRows)
	return res, nil
}

// mergeDated rebuilds the per-date aggregate: other funds' rows are kept,
// this fund's prior rows for the date are replaced, never duplicated, so
// re-running on the same day stays idempotent.
func (s *Store) mergeDated(fund string, date models.Date, records []models.HoldingRecord) ([][]string, error) {
	existing, err := s.ReadDated(date)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(existing)+len(records))
	for _, r := range existing {
		if r.FundTicker == fund {
			continue
		}
		rows = append(rows, datedRow(r))
	}
	for _, r := range records {
		rows = append(rows, datedRow(r))
	}
	return rows, nil
}

// mergeLedger rebuilds the full ledger content. On WriteSameDate the fund's
// rows for that exact date are superseded before the append; in all cases a
// (fund, ticker, date) triple already present is never appended again.
func (s *Store) mergeLedger(fund string, date models.Date, records, removed []models.HoldingRecord, decision detect.Decision) ([][]string, int, error) {
	existing, err := s.ReadLedger("")
	if err != nil {
		return nil, 0, err
	}

	triples := make(map[string]bool, len(existing))
	rows := make([][]string, 0, len(existing)+len(records)+len(removed))
	for _, r := range existing {
		if decision == detect.WriteSameDate && r.FundTicker == fund && r.AsOfDate.Equal(date) {
			continue // superseded by the corrected snapshot
		}
		rows = append(rows, ledgerRow(r))
		triples[tripleKey(r)] = true
	}

	appended := 0
	for _, r := range append(append([]models.HoldingRecord{}, records...), removed...) {
		key := tripleKey(r)
		if triples[key] {
			continue
		}
		triples[key] = true
		rows = append(rows, ledgerRow(r))
		appended++
	}

	return rows, appended, nil
}

// tripleKey is the ledger uniqueness key (fund, ticker, date). Cash rows
// without a ticker are keyed by name instead.
func tripleKey(r models.HoldingRecord) string {
	ticker := r.Ticker
	if ticker == "" {
		ticker = "name:" + r.Name
	}
	return r.FundTicker + "\x00" + ticker + "\x00" + r.AsOfDate.String()
}
