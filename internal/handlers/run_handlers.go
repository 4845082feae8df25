package handlers

import (
	"net/http"

	"github.com/epeers/etfarchive/config"
	"github.com/epeers/etfarchive/internal/cache"
	"github.com/epeers/etfarchive/internal/models"
	"github.com/epeers/etfarchive/internal/pipeline"
	"github.com/gin-gonic/gin"
)

// RunHandler triggers ingestion runs over HTTP. Guarded by the admin-token
// middleware; the periodic scheduler normally invokes the CLI instead.
type RunHandler struct {
	newRunner func(dryRun bool) *pipeline.Runner
	funds     []config.Fund
	cache     *cache.SnapshotCache
}

// NewRunHandler creates a new RunHandler. newRunner builds a runner per
// request so the dry_run flag can vary.
func NewRunHandler(newRunner func(dryRun bool) *pipeline.Runner, funds []config.Fund, snapCache *cache.SnapshotCache) *RunHandler {
	return &RunHandler{
		newRunner: newRunner,
		funds:     funds,
		cache:     snapCache,
	}
}

// Run handles POST /admin/run. Runs synchronously: holdings pages take a few
// seconds per fund, which is acceptable for an operator endpoint.
func (h *RunHandler) Run(c *gin.Context) {
	var req models.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "bad_request",
			Message: err.Error(),
		})
		return
	}

	funds := config.EnabledFunds(h.funds, req.Tickers)
	if len(funds) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "bad_request",
			Message: "no enabled funds match the request",
		})
		return
	}

	summary := h.newRunner(req.DryRun).Run(c.Request.Context(), funds)

	// Snapshots may have changed under the cache.
	for _, f := range funds {
		h.cache.Invalidate(f.Ticker)
	}

	c.JSON(http.StatusOK, summary)
}
