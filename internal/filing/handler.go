package filing

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"adreview-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the filing service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches filing routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/classify", h.classify)
	rg.GET("/classify/buckets", h.buckets)
}

type classifyRequest struct {
	BatchID string `json:"batchId"`
	Items   []Item `json:"items"`
}

func (h *Handler) classify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	result, err := h.Svc.Classify(c.Request.Context(), req.BatchID, req.Items)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownBatch):
			respond.Error(c, http.StatusNotFound, "not_found", "batch not found", nil)
		default:
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		}
		return
	}

	c.Set("batchId", req.BatchID)
	respond.OK(c, result)
}

func (h *Handler) buckets(c *gin.Context) {
	respond.OK(c, gin.H{"buckets": Buckets()})
}
