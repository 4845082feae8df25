package handlers

import (
	"net/http"
	"strings"

	"github.com/epeers/etfarchive/config"
	"github.com/epeers/etfarchive/internal/archive"
	"github.com/epeers/etfarchive/internal/cache"
	"github.com/epeers/etfarchive/internal/models"
	"github.com/gin-gonic/gin"
)

// ArchiveHandler serves read-only views over the three archive surfaces.
// Downstream analytics consumers read the CSV files directly; this API
// exists for operators and dashboards.
type ArchiveHandler struct {
	store *archive.Store
	cache *cache.SnapshotCache
	funds []config.Fund
}

// NewArchiveHandler creates a new ArchiveHandler
func NewArchiveHandler(store *archive.Store, snapCache *cache.SnapshotCache, funds []config.Fund) *ArchiveHandler {
	return &ArchiveHandler{
		store: store,
		cache: snapCache,
		funds: funds,
	}
}

// ListFunds handles GET /funds
func (h *ArchiveHandler) ListFunds(c *gin.Context) {
	infos := make([]models.FundInfo, 0, len(h.funds))
	for _, f := range h.funds {
		infos = append(infos, models.FundInfo{
			Ticker:  f.Ticker,
			Issuer:  f.Issuer,
			Source:  string(f.Source),
			Enabled: f.Enabled,
		})
	}
	c.JSON(http.StatusOK, infos)
}

// GetLatest handles GET /funds/:ticker/latest
func (h *ArchiveHandler) GetLatest(c *gin.Context) {
	ticker := strings.ToUpper(c.Param("ticker"))

	records, ok := h.cache.Get(ticker)
	if !ok {
		var err error
		records, err = h.store.ReadLatest(ticker)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "internal_error",
				Message: err.Error(),
			})
			return
		}
		if records != nil {
			h.cache.Set(ticker, records)
		}
	}

	if len(records) == 0 {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "no archived snapshot for " + ticker,
		})
		return
	}

	c.JSON(http.StatusOK, models.SnapshotResponse{
		FundTicker: ticker,
		AsOfDate:   records[0].AsOfDate.String(),
		Rows:       records,
	})
}

// GetLedger handles GET /funds/:ticker/ledger
func (h *ArchiveHandler) GetLedger(c *gin.Context) {
	ticker := strings.ToUpper(c.Param("ticker"))

	records, err := h.store.ReadLedger(ticker)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "no ledger history for " + ticker,
		})
		return
	}

	c.JSON(http.StatusOK, records)
}

// GetDated handles GET /dates/:date
func (h *ArchiveHandler) GetDated(c *gin.Context) {
	date, err := models.ParseDate(c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "bad_request",
			Message: "date must be YYYY-MM-DD",
		})
		return
	}

	records, err := h.store.ReadDated(date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "no snapshot archived for " + date.String(),
		})
		return
	}

	c.JSON(http.StatusOK, records)
}
