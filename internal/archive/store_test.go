package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/epeers/etfarchive/internal/detect"
	"github.com/epeers/etfarchive/internal/models"
)

func rec(fund, ticker string, weight float64, rank int, date models.Date, status models.HoldingStatus) models.HoldingRecord {
	return models.HoldingRecord{
		FundTicker:     fund,
		Ticker:         ticker,
		Name:           ticker + " Corp",
		WeightPct:      weight,
		Rank:           rank,
		AsOfDate:       date,
		Status:         status,
		DateConfidence: models.ConfidenceObserved,
	}
}

func snapshot(fund string, date models.Date, tickers ...string) []models.HoldingRecord {
	var recs []models.HoldingRecord
	for i, tk := range tickers {
		recs = append(recs, rec(fund, tk, float64(10-i), i+1, date, models.StatusExisting))
	}
	return recs
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

func TestCommit_WriteNewDate(t *testing.T) {
	store := NewStore(t.TempDir())
	date := models.NewDate(2026, 3, 14)

	res, err := store.Commit(context.Background(), "COWZ", snapshot("COWZ", date, "AAPL", "MSFT"), nil, detect.WriteNewDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RowsWritten != 2 || res.LedgerRows != 2 {
		t.Errorf("unexpected result: %+v", res)
	}

	latest, err := store.ReadLatest("COWZ")
	if err != nil {
		t.Fatalf("ReadLatest: %v", err)
	}
	if len(latest) != 2 || latest[0].Ticker != "AAPL" || !latest[0].AsOfDate.Equal(date) {
		t.Errorf("unexpected latest snapshot: %+v", latest)
	}

	dated, err := store.ReadDated(date)
	if err != nil {
		t.Fatalf("ReadDated: %v", err)
	}
	if len(dated) != 2 || dated[0].FundTicker != "COWZ" {
		t.Errorf("unexpected dated snapshot: %+v", dated)
	}

	ledger, err := store.ReadLedger("")
	if err != nil {
		t.Fatalf("ReadLedger: %v", err)
	}
	if len(ledger) != 2 {
		t.Errorf("expected 2 ledger rows, got %d", len(ledger))
	}
}

func TestCommit_RepeatedCommitIsIdempotent(t *testing.T) {
	store := NewStore(t.TempDir())
	date := models.NewDate(2026, 3, 14)
	recs := snapshot("COWZ", date, "AAPL", "MSFT")

	if _, err := store.Commit(context.Background(), "COWZ", recs, nil, detect.WriteNewDate); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	latestBefore := readFile(t, filepath.Join(store.root, "latest", "COWZ.csv"))
	datedBefore := readFile(t, store.datedPath(date))
	ledgerBefore := readFile(t, store.ledgerPath())

	// Re-running the same day with identical content: the decision layer
	// would SKIP, but even a forced same-date commit must not duplicate.
	res, err := store.Commit(context.Background(), "COWZ", recs, nil, detect.WriteSameDate)
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if res.LedgerRows != 2 {
		t.Errorf("expected 2 superseding ledger rows, got %d", res.LedgerRows)
	}

	if got := readFile(t, filepath.Join(store.root, "latest", "COWZ.csv")); got != latestBefore {
		t.Error("latest surface changed across an identical re-commit")
	}
	if got := readFile(t, store.datedPath(date)); got != datedBefore {
		t.Error("dated surface changed across an identical re-commit")
	}
	if got := readFile(t, store.ledgerPath()); got != ledgerBefore {
		t.Error("ledger changed across an identical re-commit")
	}
}

func TestCommit_SameDateCorrectionSupersedes(t *testing.T) {
	store := NewStore(t.TempDir())
	date := models.NewDate(2026, 3, 14)

	if _, err := store.Commit(context.Background(), "COWZ", snapshot("COWZ", date, "AAPL", "MSFT"), nil, detect.WriteNewDate); err != nil {
		t.Fatalf("initial commit: %v", err)
	}

	// Issuer republished the same date with a different constituent set.
	corrected := snapshot("COWZ", date, "AAPL", "NVDA")
	if _, err := store.Commit(context.Background(), "COWZ", corrected, nil, detect.WriteSameDate); err != nil {
		t.Fatalf("correction commit: %v", err)
	}

	ledger, err := store.ReadLedger("COWZ")
	if err != nil {
		t.Fatalf("ReadLedger: %v", err)
	}
	if len(ledger) != 2 {
		t.Fatalf("expected 2 ledger rows after supersede, got %d", len(ledger))
	}
	tickers := map[string]bool{}
	for _, r := range ledger {
		tickers[r.Ticker] = true
	}
	if !tickers["NVDA"] || tickers["MSFT"] {
		t.Errorf("supersede failed, ledger tickers: %v", tickers)
	}

	latest, _ := store.ReadLatest("COWZ")
	if len(latest) != 2 || latest[1].Ticker != "NVDA" {
		t.Errorf("latest not replaced: %+v", latest)
	}
}

func TestCommit_LedgerTripleUniqueAcrossDates(t *testing.T) {
	store := NewStore(t.TempDir())
	d1 := models.NewDate(2026, 3, 14)
	d2 := models.NewDate(2026, 3, 15)

	if _, err := store.Commit(context.Background(), "COWZ", snapshot("COWZ", d1, "AAPL"), nil, detect.WriteNewDate); err != nil {
		t.Fatalf("commit d1: %v", err)
	}
	if _, err := store.Commit(context.Background(), "COWZ", snapshot("COWZ", d2, "AAPL"), nil, detect.WriteNewDate); err != nil {
		t.Fatalf("commit d2: %v", err)
	}

	ledger, _ := store.ReadLedger("COWZ")
	seen := map[string]bool{}
	for _, r := range ledger {
		key := r.FundTicker + "|" + r.Ticker + "|" + r.AsOfDate.String()
		if seen[key] {
			t.Errorf("duplicate ledger triple %s", key)
		}
		seen[key] = true
	}
	if len(ledger) != 2 {
		t.Errorf("expected 2 ledger rows, got %d", len(ledger))
	}
}

func TestCommit_MultipleFundsShareDatedAndLedger(t *testing.T) {
	store := NewStore(t.TempDir())
	date := models.NewDate(2026, 3, 14)

	if _, err := store.Commit(context.Background(), "COWZ", snapshot("COWZ", date, "AAPL"), nil, detect.WriteNewDate); err != nil {
		t.Fatalf("commit COWZ: %v", err)
	}
	if _, err := store.Commit(context.Background(), "QQQ", snapshot("QQQ", date, "MSFT"), nil, detect.WriteNewDate); err != nil {
		t.Fatalf("commit QQQ: %v", err)
	}

	dated, _ := store.ReadDated(date)
	if len(dated) != 2 {
		t.Fatalf("expected 2 rows in the dated aggregate, got %d", len(dated))
	}

	// Re-committing COWZ for the same date must not disturb QQQ's rows.
	if _, err := store.Commit(context.Background(), "COWZ", snapshot("COWZ", date, "AAPL"), nil, detect.WriteSameDate); err != nil {
		t.Fatalf("re-commit COWZ: %v", err)
	}
	dated, _ = store.ReadDated(date)
	funds := map[string]int{}
	for _, r := range dated {
		funds[r.FundTicker]++
	}
	if funds["QQQ"] != 1 || funds["COWZ"] != 1 {
		t.Errorf("dated aggregate corrupted: %v", funds)
	}
}

func TestCommit_RemovedRowsLedgerOnly(t *testing.T) {
	store := NewStore(t.TempDir())
	d1 := models.NewDate(2026, 3, 14)
	d2 := models.NewDate(2026, 3, 15)

	if _, err := store.Commit(context.Background(), "COWZ", snapshot("COWZ", d1, "AAPL", "INTC"), nil, detect.WriteNewDate); err != nil {
		t.Fatalf("commit d1: %v", err)
	}

	removed := []models.HoldingRecord{rec("COWZ", "INTC", 0, 0, d2, models.StatusRemoved)}
	if _, err := store.Commit(context.Background(), "COWZ", snapshot("COWZ", d2, "AAPL"), removed, detect.WriteNewDate); err != nil {
		t.Fatalf("commit d2: %v", err)
	}

	latest, _ := store.ReadLatest("COWZ")
	for _, r := range latest {
		if r.Ticker == "INTC" {
			t.Error("REMOVED row leaked into the latest surface")
		}
	}

	dated, _ := store.ReadDated(d2)
	for _, r := range dated {
		if r.Ticker == "INTC" {
			t.Error("REMOVED row leaked into the dated surface")
		}
	}

	ledger, _ := store.ReadLedger("COWZ")
	foundRemoved := false
	for _, r := range ledger {
		if r.Ticker == "INTC" && r.Status == models.StatusRemoved && r.AsOfDate.Equal(d2) {
			foundRemoved = true
		}
	}
	if !foundRemoved {
		t.Error("expected an INTC REMOVED row in the ledger")
	}
}

func TestCommit_FailureLeavesSurfacesUntouched(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	d1 := models.NewDate(2026, 3, 14)

	if _, err := store.Commit(context.Background(), "COWZ", snapshot("COWZ", d1, "AAPL"), nil, detect.WriteNewDate); err != nil {
		t.Fatalf("seed commit: %v", err)
	}
	ledgerBefore := readFile(t, store.ledgerPath())
	latestBefore := readFile(t, store.latestPath("COWZ"))

	// Make the dated surface unstageable: its parent path is a regular file,
	// so MkdirAll fails during staging, before any surface is swapped.
	d2 := models.NewDate(2026, 3, 15)
	if err := os.MkdirAll(filepath.Dir(filepath.Dir(store.datedPath(d2))), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Dir(store.datedPath(d2)), []byte("in the way"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := store.Commit(context.Background(), "COWZ", snapshot("COWZ", d2, "AAPL"), nil, detect.WriteNewDate)
	if err == nil {
		t.Fatal("expected commit failure")
	}
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected *WriteError, got %T", err)
	}

	if got := readFile(t, store.ledgerPath()); got != ledgerBefore {
		t.Error("ledger changed after a failed commit")
	}
	if got := readFile(t, store.latestPath("COWZ")); got != latestBefore {
		t.Error("latest changed after a failed commit")
	}
	if _, err := os.Stat(store.latestPath("COWZ") + ".tmp"); !os.IsNotExist(err) {
		t.Error("staging file left behind after a failed commit")
	}
}

func TestCommit_CancelledBeforeStartHasNoEffect(t *testing.T) {
	store := NewStore(t.TempDir())
	date := models.NewDate(2026, 3, 14)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Commit(ctx, "COWZ", snapshot("COWZ", date, "AAPL"), nil, detect.WriteNewDate)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if _, statErr := os.Stat(store.ledgerPath()); !os.IsNotExist(statErr) {
		t.Error("cancelled commit touched the ledger")
	}
}

func TestReadLatest_NeverArchived(t *testing.T) {
	store := NewStore(t.TempDir())
	records, err := store.ReadLatest("NOPE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records != nil {
		t.Errorf("expected nil, got %+v", records)
	}
}
