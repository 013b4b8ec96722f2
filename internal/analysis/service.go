package analysis

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"adreview-backend/internal/ocr"
	"adreview-backend/internal/pipeline"
	"adreview-backend/internal/scoring"
)

const maxImageSizeBytes = 10 << 20

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Validation errors surfaced to the HTTP layer.
var (
	ErrEmptyText       = errors.New("text is required")
	ErrImageTooLarge   = errors.New("image exceeds the 10MB size limit")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// Service runs one-off analyses outside the batch flow: direct text scoring,
// single-image OCR and the combined OCR-then-analyze operation.
type Service struct {
	Extractors map[string]ocr.Extractor
	Engine     *scoring.Engine

	OCRTimeout      time.Duration
	AnalysisTimeout time.Duration
}

// AnalyzeText scores a text without OCR.
func (s *Service) AnalyzeText(ctx context.Context, text string, opts scoring.Options) (scoring.Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return scoring.Outcome{}, ErrEmptyText
	}
	timeout := s.AnalysisTimeout
	if timeout <= 0 {
		timeout = pipeline.DefaultAnalysisTimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.Engine.Analyze(actx, text, opts)
}

// ExtractImage runs OCR over a single in-memory image.
func (s *Service) ExtractImage(ctx context.Context, engine, fileName string, image []byte) (ocr.Result, error) {
	extractor, err := s.extractorFor(engine)
	if err != nil {
		return ocr.Result{}, err
	}
	if err := validateImage(fileName, int64(len(image))); err != nil {
		return ocr.Result{}, err
	}

	timeout := s.OCRTimeout
	if timeout <= 0 {
		timeout = pipeline.DefaultOCRTimeout
	}
	octx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return ocr.WithRetry(extractor, "").Extract(octx, image, fileName)
}

// ExtractAndAnalyze runs the full per-file pipeline for a single image.
func (s *Service) ExtractAndAnalyze(ctx context.Context, engine, fileName string, image []byte, opts scoring.Options) (pipeline.FileResult, error) {
	extractor, err := s.extractorFor(engine)
	if err != nil {
		return pipeline.FileResult{}, err
	}
	if err := validateImage(fileName, int64(len(image))); err != nil {
		return pipeline.FileResult{}, err
	}

	runner := &pipeline.Runner{
		Extractor:       extractor,
		Engine:          s.Engine,
		OCRTimeout:      s.OCRTimeout,
		AnalysisTimeout: s.AnalysisTimeout,
	}
	return runner.Process(ctx, pipeline.FileInput{
		FileName: fileName,
		Image:    image,
		Options:  opts,
	}, nil)
}

func (s *Service) extractorFor(engine string) (ocr.Extractor, error) {
	if _, err := ocr.EngineLimit(engine); err != nil {
		return nil, err
	}
	extractor, ok := s.Extractors[strings.ToLower(engine)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ocr.ErrUnsupportedEngine, engine)
	}
	return extractor, nil
}

func validateImage(fileName string, size int64) error {
	if !allowedImageExts[strings.ToLower(path.Ext(fileName))] {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, fileName)
	}
	if size > maxImageSizeBytes {
		return fmt.Errorf("%w: %s", ErrImageTooLarge, fileName)
	}
	return nil
}
