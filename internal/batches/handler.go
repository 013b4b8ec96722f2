package batches

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"adreview-backend/internal/ocr"
	"adreview-backend/internal/scoring"
	"adreview-backend/internal/shared/server/middleware"
	"adreview-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the batch service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches batch routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/batches", h.submitBatch)
	rg.GET("/batches", h.listBatches)
	rg.GET("/batches/:id", h.getBatch)
	rg.DELETE("/batches/:id", h.deleteBatch)
	rg.GET("/batches/:id/files/:filename", h.getBatchFile)
}

func (h *Handler) submitBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form is required", nil)
		return
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "at least one file is required", nil)
		return
	}

	engine := c.PostForm("engine")
	if engine == "" {
		engine = ocr.EngineNaver
	}
	opts := scoring.Options{
		UseAI:  parseBoolDefault(c.PostForm("use_ai"), true),
		UseRAG: parseBoolDefault(c.PostForm("use_rag"), false),
	}

	files := make([]FileUpload, 0, len(fileHeaders))
	var readers []io.Closer
	defer func() {
		for _, r := range readers {
			r.Close()
		}
	}()
	for _, header := range fileHeaders {
		f, err := header.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unreadable file: "+header.Filename, nil)
			return
		}
		readers = append(readers, f)
		files = append(files, FileUpload{Name: header.Filename, Size: header.Size, Reader: f})
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	batch, err := h.Svc.Submit(ctx, engine, files, opts)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoFiles),
			errors.Is(err, ErrTooManyFiles),
			errors.Is(err, ErrFileTooLarge),
			errors.Is(err, ErrUnsupportedType),
			errors.Is(err, ocr.ErrUnsupportedEngine):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit batch", nil)
		}
		return
	}

	c.Set("batchId", batch.ID)
	c.Set("fileCount", batch.TotalFiles)
	respond.Accepted(c, gin.H{
		"batchId":    batch.ID,
		"status":     batch.Status,
		"totalFiles": batch.TotalFiles,
		"engine":     batch.Engine,
	})
}

func (h *Handler) getBatch(c *gin.Context) {
	batchID := c.Param("id")
	if batchID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "batch id is required", nil)
		return
	}

	batch, err := h.Svc.GetStatus(c.Request.Context(), batchID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "batch not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch batch", nil)
		}
		return
	}

	c.Set("batchId", batch.ID)
	respond.OK(c, batch)
}

func (h *Handler) listBatches(c *gin.Context) {
	all, err := h.Svc.List(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list batches", nil)
		return
	}
	respond.OK(c, gin.H{"batches": all, "count": len(all)})
}

func (h *Handler) deleteBatch(c *gin.Context) {
	batchID := c.Param("id")
	if batchID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "batch id is required", nil)
		return
	}

	if err := h.Svc.Delete(c.Request.Context(), batchID); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "batch not found", nil)
		case errors.Is(err, ErrBatchNotDone):
			respond.Error(c, http.StatusConflict, "conflict", "batch is still processing", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete batch", nil)
		}
		return
	}
	respond.OK(c, gin.H{"deleted": batchID})
}

func (h *Handler) getBatchFile(c *gin.Context) {
	batchID := c.Param("id")
	fileName := c.Param("filename")
	if batchID == "" || fileName == "" || strings.Contains(fileName, "/") || strings.Contains(fileName, "..") {
		respond.Error(c, http.StatusBadRequest, "validation_error", "batch id and filename are required", nil)
		return
	}

	body, err := h.Svc.OpenFile(c.Request.Context(), batchID, fileName)
	if err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "file not found", nil)
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(path.Ext(fileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, body)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return fallback
	}
}
