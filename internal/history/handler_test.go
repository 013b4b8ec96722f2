package history

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newTestRouter(repo Repo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(repo).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestListHistoryEndpoint(t *testing.T) {
	repo := NewMemoryRepo()
	seedRecords(t, repo, []Record{
		{ID: "a", Judgment: "rejected", RiskScore: 90, CreatedAt: time.Now().UTC()},
		{ID: "b", Judgment: "passed", RiskScore: 5, CreatedAt: time.Now().UTC()},
	})
	router := newTestRouter(repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history?judgment=rejected", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"total":1`) || strings.Contains(body, `"id":"b"`) {
		t.Fatalf("body: %s", body)
	}
}

func TestDeleteHistoryEndpointNotFound(t *testing.T) {
	router := newTestRouter(NewMemoryRepo())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/history/ghost", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestStatisticsEndpointDateRange(t *testing.T) {
	repo := NewMemoryRepo()
	old := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.Insert(context.Background(), Record{ID: "old", RiskScore: 80, CreatedAt: old}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	router := newTestRouter(repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/statistics?from=2026-08-01", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"totalRecords":0`) {
		t.Fatalf("body: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/statistics?from=not-a-date", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status=%d", rec.Code)
	}
}
