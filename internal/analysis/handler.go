package analysis

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"adreview-backend/internal/ocr"
	"adreview-backend/internal/scoring"
	"adreview-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the ad-hoc analysis service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the one-off analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.analyzeText)
	rg.POST("/ocr", h.extractImage)
	rg.POST("/ocr/analyze", h.extractAndAnalyze)
}

type analyzeRequest struct {
	Text   string `json:"text"`
	UseAI  *bool  `json:"useAi"`
	UseRAG *bool  `json:"useRag"`
}

func (h *Handler) analyzeText(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	opts := scoring.Options{UseAI: true}
	if req.UseAI != nil {
		opts.UseAI = *req.UseAI
	}
	if req.UseRAG != nil {
		opts.UseRAG = *req.UseRAG
	}

	outcome, err := h.Svc.AnalyzeText(c.Request.Context(), req.Text, opts)
	if err != nil {
		if errors.Is(err, ErrEmptyText) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "analysis failed", nil)
		return
	}
	respond.OK(c, outcome)
}

func (h *Handler) extractImage(c *gin.Context) {
	engine, fileName, image, ok := h.readImageForm(c)
	if !ok {
		return
	}

	result, err := h.Svc.ExtractImage(c.Request.Context(), engine, fileName, image)
	if err != nil {
		h.respondImageError(c, err)
		return
	}
	respond.OK(c, result)
}

func (h *Handler) extractAndAnalyze(c *gin.Context) {
	engine, fileName, image, ok := h.readImageForm(c)
	if !ok {
		return
	}
	opts := scoring.Options{
		UseAI:  parseBoolDefault(c.PostForm("use_ai"), true),
		UseRAG: parseBoolDefault(c.PostForm("use_rag"), false),
	}

	result, err := h.Svc.ExtractAndAnalyze(c.Request.Context(), engine, fileName, image, opts)
	if err != nil {
		h.respondImageError(c, err)
		return
	}
	respond.OK(c, gin.H{
		"extraction": result.Extraction,
		"analysis":   result.Outcome,
	})
}

func (h *Handler) readImageForm(c *gin.Context) (engine, fileName string, image []byte, ok bool) {
	header, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "a file form field is required", nil)
		return "", "", nil, false
	}
	image, err = readHeader(header)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unreadable file: "+header.Filename, nil)
		return "", "", nil, false
	}

	engine = c.PostForm("engine")
	if engine == "" {
		engine = ocr.EngineNaver
	}
	return engine, header.Filename, image, true
}

func (h *Handler) respondImageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnsupportedType),
		errors.Is(err, ErrImageTooLarge),
		errors.Is(err, ocr.ErrUnsupportedEngine):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusBadGateway, "ocr_error", "text extraction failed", nil)
	}
}

func readHeader(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
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
