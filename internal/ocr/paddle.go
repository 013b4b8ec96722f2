package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// PaddleClient calls a self-hosted PaddleOCR serving endpoint.
type PaddleClient struct {
	apiURL     string
	httpClient *http.Client
}

func NewPaddleClient(apiURL string) (*PaddleClient, error) {
	if strings.TrimSpace(apiURL) == "" {
		return nil, fmt.Errorf("paddle ocr url is required")
	}
	return &PaddleClient{
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type paddleRequest struct {
	Images []string `json:"images"`
}

type paddleResponse struct {
	Results []struct {
		RecTexts  []string  `json:"rec_texts"`
		RecScores []float64 `json:"rec_scores"`
	} `json:"results"`
}

// Extract posts the image base64-encoded and joins the recognized lines.
// Blank lines are dropped, matching the serving endpoint's own filtering.
func (c *PaddleClient) Extract(ctx context.Context, image []byte, fileName string) (Result, error) {
	payload, err := json.Marshal(paddleRequest{
		Images: []string{base64.StdEncoding.EncodeToString(image)},
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || strings.Contains(err.Error(), "Client.Timeout") {
			return Result{}, fmt.Errorf("ocr request timeout: %w", err)
		}
		return Result{}, fmt.Errorf("ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read ocr response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(respBody)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return Result{}, fmt.Errorf("ocr api error: http status %d: %s", resp.StatusCode, snippet)
	}

	var parsed paddleResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode ocr response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return Result{}, nil
	}

	lines := parsed.Results[0].RecTexts
	scores := parsed.Results[0].RecScores

	var texts []string
	total := 0.0
	counted := 0
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		texts = append(texts, line)
		if i < len(scores) {
			total += scores[i]
		}
		counted++
	}

	result := Result{
		Text:        strings.Join(texts, " "),
		FieldsCount: counted,
	}
	if counted > 0 {
		result.Confidence = math.Round(total/float64(counted)*100) / 100
	}
	return result, nil
}
