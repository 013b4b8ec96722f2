package history

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"adreview-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the history repo.
type Handler struct {
	Repo Repo
}

// NewHandler constructs a Handler.
func NewHandler(repo Repo) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes attaches history routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/history", h.listHistory)
	rg.DELETE("/history/:id", h.deleteHistory)
	rg.GET("/statistics", h.statistics)
}

func (h *Handler) listHistory(c *gin.Context) {
	filter := Filter{
		BatchID:   c.Query("batchId"),
		Judgment:  c.Query("judgment"),
		RiskLevel: c.Query("riskLevel"),
		SortBy:    c.Query("sortBy"),
		Limit:     20,
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Offset = parsed
		}
	}

	records, total, err := h.Repo.List(c.Request.Context(), filter)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list history", nil)
		return
	}
	if records == nil {
		records = []Record{}
	}
	respond.OK(c, gin.H{
		"records": records,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

func (h *Handler) deleteHistory(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "history id is required", nil)
		return
	}
	if err := h.Repo.Delete(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "history record not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete history record", nil)
		}
		return
	}
	respond.OK(c, gin.H{"deleted": id})
}

func (h *Handler) statistics(c *gin.Context) {
	var rng DateRange
	if v := c.Query("from"); v != "" {
		ts, err := parseDateParam(v, false)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid from date", nil)
			return
		}
		rng.From = ts
	}
	if v := c.Query("to"); v != "" {
		ts, err := parseDateParam(v, true)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid to date", nil)
			return
		}
		rng.To = ts
	}

	stats, err := h.Repo.Statistics(c.Request.Context(), rng)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to compute statistics", nil)
		return
	}
	respond.OK(c, stats)
}

// parseDateParam accepts RFC3339 timestamps or bare dates. A bare "to" date
// is pushed to the end of that day so the range is inclusive.
func parseDateParam(raw string, endOfDay bool) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	ts, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		ts = ts.Add(24*time.Hour - time.Nanosecond)
	}
	return ts, nil
}
