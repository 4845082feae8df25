package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/epeers/etfarchive/config"
	"github.com/epeers/etfarchive/internal/archive"
	"github.com/epeers/etfarchive/internal/database"
	"github.com/epeers/etfarchive/internal/fetch"
	"github.com/epeers/etfarchive/internal/models"
	"github.com/epeers/etfarchive/internal/pipeline"
	"github.com/epeers/etfarchive/internal/repository"
	log "github.com/sirupsen/logrus"
)

func main() {
	fundsFile := flag.String("funds", "", "path to the fund roster JSON (default from FUNDS_FILE)")
	dataDir := flag.String("data", "", "archive root directory (default from DATA_DIR)")
	only := flag.String("only", "", "comma-separated fund tickers to process (default all enabled)")
	concurrency := flag.Int("concurrency", 0, "max funds fetched in parallel (default from CONCURRENCY)")
	dryRun := flag.Bool("dry-run", false, "run the pipeline but stop short of every archive commit")
	headless := flag.Bool("headless", true, "run the browser headless for rendered sources")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *fundsFile != "" {
		cfg.FundsFile = *fundsFile
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *concurrency > 0 {
		cfg.Concurrency = *concurrency
	}

	roster, err := config.LoadFunds(cfg.FundsFile)
	if err != nil {
		log.Fatalf("Failed to load fund roster: %v", err)
	}

	var onlyList []string
	if *only != "" {
		onlyList = strings.Split(*only, ",")
	}
	funds := config.EnabledFunds(roster, onlyList)
	if len(funds) == 0 {
		log.Fatalf("No enabled funds to process (roster %s)", cfg.FundsFile)
	}

	// A run in flight finishes its current commits; SIGINT stops new stages.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := fetch.NewClient(fetch.Options{Headless: *headless})
	store := archive.NewStore(cfg.DataDir)

	opts := []pipeline.Option{}
	if *dryRun {
		opts = append(opts, pipeline.WithDryRun())
	}

	if cfg.PGURL != "" && !*dryRun {
		db, err := database.New(ctx, cfg.PGURL)
		if err != nil {
			log.Warnf("Ledger mirror disabled: %v", err)
		} else {
			defer db.Close()
			ledgerRepo := repository.NewLedgerRepository(db.Pool)
			if err := ledgerRepo.EnsureSchema(ctx); err != nil {
				log.Warnf("Ledger mirror disabled: %v", err)
			} else {
				opts = append(opts, pipeline.WithMirror(ledgerRepo))
			}
		}
	}

	runner := pipeline.NewRunner(client, store, cfg.Concurrency, opts...)

	log.Infof("Processing %d fund(s) into %s", len(funds), cfg.DataDir)
	summary := runner.Run(ctx, funds)
	printSummary(summary)

	if summary.AllFailed() {
		os.Exit(1)
	}
}

// printSummary writes the per-fund outcome table to stdout, the piece of the
// run a cron mail actually shows.
func printSummary(summary *models.RunSummary) {
	fmt.Printf("\nRun finished in %s: %d written, %d skipped, %d anomalies, %d failed\n",
		summary.FinishedAt.Sub(summary.StartedAt).Round(10*time.Millisecond), summary.Written, summary.Skipped,
		summary.Anomalies, summary.Failed)

	for _, o := range summary.Outcomes {
		line := fmt.Sprintf("  %-6s %s", o.FundTicker, o.State)
		switch o.State {
		case models.OutcomeWritten:
			line += fmt.Sprintf(" (%d rows as of %s)", o.RowsWritten, o.AsOfDate)
		case models.OutcomeFailed, models.OutcomeAnomaly:
			line += ": " + o.Reason
		}
		fmt.Println(line)
		for _, w := range o.Warnings {
			fmt.Printf("         %s %s\n", w.Code, w.Message)
		}
	}
}
