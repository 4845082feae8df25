package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/epeers/etfarchive/config"
	"github.com/epeers/etfarchive/internal/archive"
	"github.com/epeers/etfarchive/internal/cache"
	"github.com/epeers/etfarchive/internal/database"
	"github.com/epeers/etfarchive/internal/fetch"
	"github.com/epeers/etfarchive/internal/handlers"
	"github.com/epeers/etfarchive/internal/middleware"
	"github.com/epeers/etfarchive/internal/pipeline"
	"github.com/epeers/etfarchive/internal/repository"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	roster, err := config.LoadFunds(cfg.FundsFile)
	if err != nil {
		log.Fatalf("Failed to load fund roster: %v", err)
	}

	// Create context for initialization
	ctx := context.Background()

	client := fetch.NewClient(fetch.Options{Headless: true})
	store := archive.NewStore(cfg.DataDir)
	snapCache := cache.NewSnapshotCache(5 * time.Minute)

	// Optional Postgres ledger mirror
	var mirror pipeline.Mirror
	if cfg.PGURL != "" {
		db, err := database.New(ctx, cfg.PGURL)
		if err != nil {
			log.Warnf("Ledger mirror disabled: %v", err)
		} else {
			defer db.Close()
			ledgerRepo := repository.NewLedgerRepository(db.Pool)
			if err := ledgerRepo.EnsureSchema(ctx); err != nil {
				log.Warnf("Ledger mirror disabled: %v", err)
			} else {
				mirror = ledgerRepo
			}
		}
	}

	newRunner := func(dryRun bool) *pipeline.Runner {
		opts := []pipeline.Option{}
		if mirror != nil {
			opts = append(opts, pipeline.WithMirror(mirror))
		}
		if dryRun {
			opts = append(opts, pipeline.WithDryRun())
		}
		return pipeline.NewRunner(client, store, cfg.Concurrency, opts...)
	}

	// Initialize handlers
	archiveHandler := handlers.NewArchiveHandler(store, snapCache, roster)
	runHandler := handlers.NewRunHandler(newRunner, roster, snapCache)

	// Setup Gin router
	router := gin.Default()

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Archive routes
	router.GET("/funds", archiveHandler.ListFunds)
	router.GET("/funds/:ticker/latest", archiveHandler.GetLatest)
	router.GET("/funds/:ticker/ledger", archiveHandler.GetLedger)
	router.GET("/dates/:date", archiveHandler.GetDated)

	// Admin routes
	admin := router.Group("/admin", middleware.RequireAdminToken(cfg.AdminToken))
	admin.POST("/run", runHandler.Run)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Give outstanding requests 5 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	fmt.Println("Server exited")
}
