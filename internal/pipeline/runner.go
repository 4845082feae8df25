// Package pipeline drives the per-fund ingestion flow: fetch, date
// resolution, canonicalization, change detection, archive commit. Funds run
// independently under a bounded concurrency limit; one fund's failure is
// recorded and never aborts the others.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/epeers/etfarchive/config"
	"github.com/epeers/etfarchive/internal/archive"
	"github.com/epeers/etfarchive/internal/canonical"
	"github.com/epeers/etfarchive/internal/dates"
	"github.com/epeers/etfarchive/internal/detect"
	"github.com/epeers/etfarchive/internal/fetch"
	"github.com/epeers/etfarchive/internal/models"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Fetcher selects a source adapter; satisfied by *fetch.Client and by test
// fakes.
type Fetcher interface {
	ForSource(source config.Source) (fetch.Adapter, error)
}

// Mirror is an optional secondary sink for committed ledger rows (the
// Postgres mirror). Mirror failures are warnings, never fund failures: the
// CSV surfaces have already committed and remain the contract of record.
type Mirror interface {
	MirrorLedger(ctx context.Context, rows []models.HoldingRecord) error
}

// Runner orchestrates one ingestion run across all configured funds.
type Runner struct {
	fetcher     Fetcher
	store       *archive.Store
	mirror      Mirror // may be nil
	concurrency int
	dryRun      bool
	now         func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithMirror attaches a secondary ledger sink.
func WithMirror(m Mirror) Option {
	return func(r *Runner) { r.mirror = m }
}

// WithDryRun stops every fund just short of the archive commit. Since a
// pipeline abandoned before commit has no side effects, a dry run leaves
// every surface byte-identical.
func WithDryRun() Option {
	return func(r *Runner) { r.dryRun = true }
}

// WithClock overrides the run-date clock (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner builds a runner over the shared fetch client and archive store.
func NewRunner(fetcher Fetcher, store *archive.Store, concurrency int, opts ...Option) *Runner {
	r := &Runner{
		fetcher:     fetcher,
		store:       store,
		concurrency: concurrency,
		now:         time.Now,
	}
	if r.concurrency < 1 {
		r.concurrency = 1
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes every fund and aggregates the outcomes. It always returns a
// summary; the error channel of errgroup is unused since per-fund errors are
// outcomes, not run failures.
func (r *Runner) Run(ctx context.Context, funds []config.Fund) *models.RunSummary {
	summary := &models.RunSummary{StartedAt: r.now()}

	outcomes := make([]models.FundOutcome, len(funds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, fund := range funds {
		i, fund := i, fund
		g.Go(func() error {
			outcomes[i] = r.processFund(gctx, fund)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		summary.Add(o)
	}
	summary.FinishedAt = r.now()

	log.Infof("run complete: %d written, %d skipped, %d anomalies, %d failed",
		summary.Written, summary.Skipped, summary.Anomalies, summary.Failed)
	return summary
}

// processFund runs the five pipeline stages for one fund, translating every
// failure into a per-fund outcome.
func (r *Runner) processFund(ctx context.Context, fund config.Fund) models.FundOutcome {
	start := time.Now()
	ctx, wc := NewWarningContext(ctx)
	outcome := models.FundOutcome{FundTicker: fund.Ticker}

	fail := func(stage string, err error) models.FundOutcome {
		log.Errorf("%s: %s failed: %v", fund.Ticker, stage, err)
		outcome.State = models.OutcomeFailed
		outcome.Reason = fmt.Sprintf("%s: %v", stage, err)
		outcome.Warnings = wc.GetWarnings()
		return outcome
	}

	adapter, err := r.fetcher.ForSource(fund.Source)
	if err != nil {
		return fail("configure", err)
	}

	page, err := adapter.Fetch(ctx, fund)
	if err != nil {
		return fail("fetch", err)
	}

	resolved, err := dates.Resolve(fund.Ticker, page.Table.Header, page.Table.Rows, page.Text, r.now())
	if err != nil {
		return fail("resolve date", err)
	}
	noteDateConfidence(ctx, fund.Ticker, resolved)

	records, stats, err := canonical.Canonicalize(page.Table, fund, resolved)
	if err != nil {
		return fail("canonicalize", err)
	}
	noteStats(ctx, fund.Ticker, stats)
	outcome.RowsDropped = stats.Dropped()
	outcome.AsOfDate = &records[0].AsOfDate

	prev, err := r.store.ReadLatest(fund.Ticker)
	if err != nil {
		return fail("read previous snapshot", err)
	}

	decision := detect.Decide(records, prev)
	switch decision {
	case detect.Skip:
		log.Infof("%s: unchanged (as of %s), skipping", fund.Ticker, records[0].AsOfDate)
		outcome.State = models.OutcomeSkipped
		outcome.Warnings = wc.GetWarnings()
		return outcome

	case detect.Regression:
		AddWarning(ctx, models.Warning{
			Code: models.WarnDateRegression,
			Message: fmt.Sprintf("%s: resolved date %s precedes archived date %s, write suppressed",
				fund.Ticker, records[0].AsOfDate, prev[0].AsOfDate),
		})
		log.Warnf("%s: as-of date regressed (%s < %s), keeping archived snapshot",
			fund.Ticker, records[0].AsOfDate, prev[0].AsOfDate)
		outcome.State = models.OutcomeAnomaly
		outcome.Reason = "as-of date regression"
		outcome.Warnings = wc.GetWarnings()
		return outcome
	}

	tagged, removed := detect.Tag(records, prev)

	if r.dryRun {
		log.Infof("%s: dry run, would commit %s with %d rows", fund.Ticker, decision, len(tagged))
		outcome.State = models.OutcomeSkipped
		outcome.Reason = fmt.Sprintf("dry run: would %s", decision)
		outcome.Warnings = wc.GetWarnings()
		return outcome
	}

	res, err := r.store.Commit(ctx, fund.Ticker, tagged, removed, decision)
	if err != nil {
		return fail("commit", err)
	}

	if r.mirror != nil && res.LedgerRows > 0 {
		mirrorRows := append(append([]models.HoldingRecord{}, tagged...), removed...)
		if err := r.mirror.MirrorLedger(ctx, mirrorRows); err != nil {
			AddWarning(ctx, models.Warning{
				Code:    models.WarnMirrorFailed,
				Message: fmt.Sprintf("%s: ledger mirror failed: %v", fund.Ticker, err),
			})
			log.Warnf("%s: ledger mirror failed: %v", fund.Ticker, err)
		}
	}

	log.Infof("%s: archived %d rows as of %s in %d ms",
		fund.Ticker, res.RowsWritten, res.AsOfDate, time.Since(start).Milliseconds())

	outcome.State = models.OutcomeWritten
	outcome.RowsWritten = res.RowsWritten
	outcome.Warnings = wc.GetWarnings()
	return outcome
}

func noteDateConfidence(ctx context.Context, fund string, resolved dates.Resolved) {
	switch resolved.Confidence {
	case models.ConfidenceInferred:
		AddWarning(ctx, models.Warning{
			Code:    models.WarnDateInferred,
			Message: fmt.Sprintf("%s: as-of date %s recovered from page text", fund, resolved.Date),
		})
	case models.ConfidenceFallback:
		AddWarning(ctx, models.Warning{
			Code:    models.WarnDateFallback,
			Message: fmt.Sprintf("%s: no as-of date found, using run date %s", fund, resolved.Date),
		})
	}
}

func noteStats(ctx context.Context, fund string, stats canonical.Stats) {
	if stats.Malformed > 0 {
		AddWarning(ctx, models.Warning{
			Code:    models.WarnMalformedRows,
			Message: fmt.Sprintf("%s: dropped %d malformed rows", fund, stats.Malformed),
		})
	}
	if stats.Filtered > 0 {
		AddWarning(ctx, models.Warning{
			Code:    models.WarnFilteredRows,
			Message: fmt.Sprintf("%s: filtered %d cash/aggregate rows", fund, stats.Filtered),
		})
	}
	if stats.Duplicates > 0 {
		AddWarning(ctx, models.Warning{
			Code:    models.WarnDuplicateRows,
			Message: fmt.Sprintf("%s: removed %d duplicated rows", fund, stats.Duplicates),
		})
	}
	if stats.Rescaled {
		AddWarning(ctx, models.Warning{
			Code:    models.WarnWeightScale,
			Message: fmt.Sprintf("%s: weights were fraction-scaled, rescaled to percent", fund),
		})
	}
}
