package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Result is the normalized output of a text extraction engine.
type Result struct {
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	FieldsCount int     `json:"fieldsCount"`
}

// Extractor pulls text out of a single image. Implementations treat the image
// as an opaque byte slice; fileName is used only to derive the format.
type Extractor interface {
	Extract(ctx context.Context, image []byte, fileName string) (Result, error)
}

// Engine names.
const (
	EngineNaver  = "naver"
	EnginePaddle = "paddle"
)

// ErrUnsupportedEngine is returned for engine names outside the known set.
var ErrUnsupportedEngine = errors.New("unsupported OCR engine")

// EngineLimit returns the per-batch file ceiling for an engine. The hosted
// engine is rate limited upstream, the self-hosted one is not.
func EngineLimit(engine string) (int, error) {
	switch strings.ToLower(engine) {
	case EngineNaver:
		return 5, nil
	case EnginePaddle:
		return 50, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedEngine, engine)
	}
}

func imageFormat(fileName string) string {
	lowered := strings.ToLower(fileName)
	if strings.HasSuffix(lowered, ".jpg") || strings.HasSuffix(lowered, ".jpeg") {
		return "jpg"
	}
	return "png"
}
