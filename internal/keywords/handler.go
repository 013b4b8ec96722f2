package keywords

import (
	"github.com/gin-gonic/gin"

	"adreview-backend/internal/shared/server/respond"
)

// Handler serves the regulated-term catalogue.
type Handler struct{}

// NewHandler constructs a Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// RegisterRoutes attaches catalogue routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/keywords", h.listKeywords)
}

func (h *Handler) listKeywords(c *gin.Context) {
	byCategory := ByCategory()
	bySeverity := BySeverity()

	categoryCounts := make(map[string]int, len(byCategory))
	for category, terms := range byCategory {
		categoryCounts[category] = len(terms)
	}
	severityCounts := make(map[Severity]int, len(bySeverity))
	for severity, terms := range bySeverity {
		severityCounts[severity] = len(terms)
	}

	respond.OK(c, gin.H{
		"total":      len(All()),
		"categories": Categories(),
		"byCategory": byCategory,
		"stats": gin.H{
			"byCategory": categoryCounts,
			"bySeverity": severityCounts,
		},
	})
}
