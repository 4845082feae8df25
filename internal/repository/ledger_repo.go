package repository

import (
	"context"
	"fmt"

	"github.com/epeers/etfarchive/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepository mirrors committed ledger rows into Postgres. The CSV
// ledger stays the contract of record; this table exists so analytics jobs
// can query history with SQL instead of re-parsing the growing file.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// EnsureSchema creates the mirror table if it doesn't exist yet.
func (r *LedgerRepository) EnsureSchema(ctx context.Context) error {
	// holding_key mirrors the CSV ledger's identity: the ticker, or the name
	// for cash-like rows without one. Uniqueness is the
	// (fund_ticker, holding_key, as_of_date) triple; a correction that
	// renames a tickered holding must not insert a second row.
	query := `
		CREATE TABLE IF NOT EXISTS holdings_ledger (
			fund_ticker     TEXT             NOT NULL,
			ticker          TEXT             NOT NULL,
			name            TEXT             NOT NULL,
			weight_pct      DOUBLE PRECISION NOT NULL,
			rank            INT              NOT NULL,
			as_of_date      DATE             NOT NULL,
			date_confidence TEXT             NOT NULL,
			status          TEXT             NOT NULL,
			inserted        TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			holding_key     TEXT GENERATED ALWAYS AS
				(CASE WHEN ticker = '' THEN 'name:' || name ELSE ticker END) STORED,
			UNIQUE (fund_ticker, holding_key, as_of_date)
		)
	`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure holdings_ledger schema: %w", err)
	}
	return nil
}

// MirrorLedger inserts the rows of one commit, ignoring triples already
// mirrored. Satisfies the pipeline's Mirror interface.
func (r *LedgerRepository) MirrorLedger(ctx context.Context, rows []models.HoldingRecord) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO holdings_ledger
			(fund_ticker, ticker, name, weight_pct, rank, as_of_date, date_confidence, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (fund_ticker, holding_key, as_of_date) DO NOTHING
	`
	for _, rec := range rows {
		batch.Queue(query, rec.FundTicker, rec.Ticker, rec.Name, rec.WeightPct,
			rec.Rank, rec.AsOfDate.Time, string(rec.DateConfidence), string(rec.Status))
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to mirror ledger rows: %w", err)
		}
	}
	return nil
}

// History returns a fund's mirrored rows ordered by date then rank.
func (r *LedgerRepository) History(ctx context.Context, fund string) ([]models.HoldingRecord, error) {
	query := `
		SELECT fund_ticker, ticker, name, weight_pct, rank, as_of_date, date_confidence, status
		FROM holdings_ledger
		WHERE fund_ticker = $1
		ORDER BY as_of_date, rank
	`
	rows, err := r.pool.Query(ctx, query, fund)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger history: %w", err)
	}
	defer rows.Close()

	var records []models.HoldingRecord
	for rows.Next() {
		var rec models.HoldingRecord
		var confidence, status string
		if err := rows.Scan(&rec.FundTicker, &rec.Ticker, &rec.Name, &rec.WeightPct,
			&rec.Rank, &rec.AsOfDate.Time, &confidence, &status); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		rec.DateConfidence = models.DateConfidence(confidence)
		rec.Status = models.HoldingStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}
