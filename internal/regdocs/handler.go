package regdocs

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"adreview-backend/internal/rag"
	"adreview-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the regulation document service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches admin regulation-document routes to the group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/admin/regulations", h.listDocuments)
	rg.POST("/admin/regulations", h.uploadDocument)
	rg.DELETE("/admin/regulations/:id", h.deleteDocument)
	rg.POST("/admin/regulations/reindex", h.reindex)
}

func (h *Handler) listDocuments(c *gin.Context) {
	docs, err := h.Svc.List(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list documents", nil)
		return
	}
	if docs == nil {
		docs = []rag.DocumentInfo{}
	}
	respond.OK(c, gin.H{"documents": docs})
}

func (h *Handler) uploadDocument(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "a file form field is required", nil)
		return
	}
	body, err := header.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "failed to open uploaded file", nil)
		return
	}
	defer body.Close()

	info, err := h.Svc.Upload(c.Request.Context(), header.Filename, header.Size, body)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnsupportedDoc), errors.Is(err, ErrDocTooLarge):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to index document", nil)
		}
		return
	}
	respond.OK(c, info)
}

func (h *Handler) deleteDocument(c *gin.Context) {
	id := c.Param("id")
	if err := h.Svc.Delete(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, rag.ErrDocumentNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete document", nil)
		}
		return
	}
	respond.OK(c, gin.H{"deleted": id})
}

func (h *Handler) reindex(c *gin.Context) {
	count, err := h.Svc.Reindex(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to reindex documents", nil)
		return
	}
	respond.OK(c, gin.H{"indexed": count})
}
