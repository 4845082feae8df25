package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/epeers/etfarchive/config"
	"github.com/epeers/etfarchive/internal/archive"
	"github.com/epeers/etfarchive/internal/cache"
	"github.com/epeers/etfarchive/internal/detect"
	"github.com/epeers/etfarchive/internal/middleware"
	"github.com/epeers/etfarchive/internal/models"
	"github.com/gin-gonic/gin"
)

func setupArchiveRouter(t *testing.T) (*gin.Engine, *archive.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := archive.NewStore(t.TempDir())
	snapCache := cache.NewSnapshotCache(time.Minute)
	roster := []config.Fund{
		{Ticker: "COWZ", Issuer: "pacer", Enabled: true, Source: config.SourceCSV, URL: "https://example.com"},
		{Ticker: "FDN", Issuer: "first_trust", Enabled: false, Source: config.SourceHTML, URL: "https://example.com"},
	}
	h := NewArchiveHandler(store, snapCache, roster)

	router := gin.New()
	router.GET("/funds", h.ListFunds)
	router.GET("/funds/:ticker/latest", h.GetLatest)
	router.GET("/funds/:ticker/ledger", h.GetLedger)
	router.GET("/dates/:date", h.GetDated)
	return router, store
}

func archiveSnapshot(t *testing.T, store *archive.Store) {
	t.Helper()
	date := models.NewDate(2026, 3, 14)
	records := []models.HoldingRecord{
		{FundTicker: "COWZ", Ticker: "AAPL", Name: "Apple Inc", WeightPct: 5.1, Rank: 1,
			AsOfDate: date, Status: models.StatusNew, DateConfidence: models.ConfidenceObserved},
		{FundTicker: "COWZ", Ticker: "MSFT", Name: "Microsoft Corp", WeightPct: 4.2, Rank: 2,
			AsOfDate: date, Status: models.StatusNew, DateConfidence: models.ConfidenceObserved},
	}
	if _, err := store.Commit(context.Background(), "COWZ", records, nil, detect.WriteNewDate); err != nil {
		t.Fatalf("seed commit: %v", err)
	}
}

func TestListFunds(t *testing.T) {
	router, _ := setupArchiveRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/funds", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var infos []models.FundInfo
	if err := json.Unmarshal(w.Body.Bytes(), &infos); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(infos) != 2 || infos[0].Ticker != "COWZ" || infos[1].Enabled {
		t.Errorf("unexpected roster: %+v", infos)
	}
}

func TestGetLatest(t *testing.T) {
	router, store := setupArchiveRouter(t)
	archiveSnapshot(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/funds/cowz/latest", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp models.SnapshotResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.FundTicker != "COWZ" || resp.AsOfDate != "2026-03-14" || len(resp.Rows) != 2 {
		t.Errorf("unexpected snapshot: %+v", resp)
	}
}

func TestGetLatest_NotFound(t *testing.T) {
	router, _ := setupArchiveRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/funds/COWZ/latest", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestGetLedger(t *testing.T) {
	router, store := setupArchiveRouter(t)
	archiveSnapshot(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/funds/COWZ/ledger", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var rows []models.HoldingRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(rows) != 2 || rows[0].Status != models.StatusNew {
		t.Errorf("unexpected ledger rows: %+v", rows)
	}
}

func TestGetDated(t *testing.T) {
	router, store := setupArchiveRouter(t)
	archiveSnapshot(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dates/2026-03-14", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/dates/03-14-2026", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a non-ISO date, got %d", w.Code)
	}
}

func TestAdminTokenMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	admin := router.Group("/admin", middleware.RequireAdminToken("secret"))
	admin.POST("/run", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/run", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/admin/run", nil)
	req.Header.Set("X-Admin-Token", "secret")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", w.Code)
	}

	disabled := gin.New()
	disabled.POST("/run", middleware.RequireAdminToken(""), func(c *gin.Context) { c.Status(http.StatusOK) })
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/run", nil)
	disabled.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 when unconfigured, got %d", w.Code)
	}
}
