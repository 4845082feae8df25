package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	DataDir     string // root of the archive surfaces (latest/, history/, ledger.csv)
	FundsFile   string // path to the fund roster JSON
	Port        string
	PGURL       string // optional: enables the Postgres ledger mirror
	AdminToken  string // optional: guards POST /admin/run
	Concurrency int    // max funds fetched in parallel
}

// Load reads configuration from environment variables. A .env file in the
// working directory is honored if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	fundsFile := os.Getenv("FUNDS_FILE")
	if fundsFile == "" {
		fundsFile = "funds.json"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	concurrency := 4
	if v := os.Getenv("CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("CONCURRENCY must be a positive integer, got %q", v)
		}
		concurrency = n
	}

	return &Config{
		DataDir:     dataDir,
		FundsFile:   fundsFile,
		Port:        port,
		PGURL:       os.Getenv("PG_URL"),
		AdminToken:  os.Getenv("ADMIN_TOKEN"),
		Concurrency: concurrency,
	}, nil
}
