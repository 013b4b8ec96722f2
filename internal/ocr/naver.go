package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NaverClient calls the Clova OCR general API.
type NaverClient struct {
	apiURL     string
	secret     string
	httpClient *http.Client
}

// NewNaverClient builds a Clova OCR client. Both the endpoint URL and the
// secret come from the console and must be set together.
func NewNaverClient(apiURL, secret string) (*NaverClient, error) {
	if strings.TrimSpace(apiURL) == "" {
		return nil, fmt.Errorf("naver ocr url is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("naver ocr secret is required")
	}
	return &NaverClient{
		apiURL:     apiURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type naverMessage struct {
	Version   string       `json:"version"`
	RequestID string       `json:"requestId"`
	Timestamp int64        `json:"timestamp"`
	Images    []naverImage `json:"images"`
}

type naverImage struct {
	Format string `json:"format"`
	Name   string `json:"name"`
}

type naverResponse struct {
	Images []struct {
		Fields []struct {
			InferText       string  `json:"inferText"`
			InferConfidence float64 `json:"inferConfidence"`
		} `json:"fields"`
	} `json:"images"`
}

// Extract sends the image as a multipart request and joins the recognized
// fields into a single text. Confidence is the field average rounded to two
// decimals.
func (c *NaverClient) Extract(ctx context.Context, image []byte, fileName string) (Result, error) {
	format := imageFormat(fileName)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	message := naverMessage{
		Version:   "V2",
		RequestID: uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
		Images:    []naverImage{{Format: format, Name: fileName}},
	}
	messageJSON, err := json.Marshal(message)
	if err != nil {
		return Result{}, fmt.Errorf("marshal ocr message: %w", err)
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="message"`)
	header.Set("Content-Type", "application/json")
	part, err := writer.CreatePart(header)
	if err != nil {
		return Result{}, fmt.Errorf("create message part: %w", err)
	}
	if _, err := part.Write(messageJSON); err != nil {
		return Result{}, fmt.Errorf("write message part: %w", err)
	}

	filePart, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return Result{}, fmt.Errorf("create file part: %w", err)
	}
	if _, err := filePart.Write(image); err != nil {
		return Result{}, fmt.Errorf("write file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Result{}, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, &body)
	if err != nil {
		return Result{}, fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-OCR-SECRET", c.secret)

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

	var parsed naverResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode ocr response: %w", err)
	}

	if len(parsed.Images) == 0 {
		return Result{}, nil
	}

	fields := parsed.Images[0].Fields
	var texts []string
	total := 0.0
	for _, field := range fields {
		texts = append(texts, field.InferText)
		total += field.InferConfidence
	}

	result := Result{
		Text:        strings.TrimSpace(strings.Join(texts, " ")),
		FieldsCount: len(fields),
	}
	if len(fields) > 0 {
		result.Confidence = math.Round(total/float64(len(fields))*100) / 100
	}
	return result, nil
}
