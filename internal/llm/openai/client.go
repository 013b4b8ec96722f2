package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"adreview-backend/internal/llm"
)

const defaultAPIURL = "https://api.openai.com/v1/chat/completions"

// Client implements llm.Client using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	model      string
	apiURL     string
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey: apiKey,
		model:  model,
		apiURL: defaultAPIURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// AnalyzeNarrative runs the free-form compliance review.
func (c *Client) AnalyzeNarrative(ctx context.Context, input llm.NarrativeInput) (string, error) {
	messages := BuildNarrativePrompt(input.Text, input.Passages)
	content, usage, err := c.chatOnce(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	logUsage(c.model, "narrative", usage)
	return content, nil
}

// ExtractVerdict runs the structured verdict extraction with a fix-JSON retry
// when the model returns something that is not valid JSON.
func (c *Client) ExtractVerdict(ctx context.Context, input llm.VerdictInput) (json.RawMessage, error) {
	jsonOnly := &responseFormat{Type: "json_object"}

	if rawFix, hasFix := llm.FixJSONFromContext(ctx); hasFix {
		return c.extractFixJSON(ctx, input, []byte(rawFix), jsonOnly)
	}

	messages := BuildVerdictPrompt(input.Text, input.Narrative, input.Schema)
	content, usage, err := c.chatOnce(ctx, messages, jsonOnly)
	if err != nil {
		return nil, err
	}
	logUsage(c.model, "verdict", usage)

	raw := json.RawMessage(content)
	if json.Valid(raw) {
		return raw, nil
	}
	return c.extractFixJSON(ctx, input, raw, jsonOnly)
}

func (c *Client) extractFixJSON(ctx context.Context, input llm.VerdictInput, raw []byte, format *responseFormat) (json.RawMessage, error) {
	messages := buildFixPrompt(input.Schema, raw)
	content, usage, err := c.chatOnce(ctx, messages, format)
	if err != nil {
		return nil, err
	}
	logUsage(c.model, "verdict_fix", usage)
	if !json.Valid(json.RawMessage(content)) {
		return nil, fmt.Errorf("invalid JSON from OpenAI")
	}
	return json.RawMessage(content), nil
}

func (c *Client) chatOnce(ctx context.Context, messages []Message, format *responseFormat) (string, *chatResponseUsage, error) {
	temp := float32(0)
	reqMessages := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		reqMessages = append(reqMessages, chatMessage{Role: m.Role, Content: m.Content})
	}
	reqBody := chatRequest{
		Model:          c.model,
		Messages:       reqMessages,
		ResponseFormat: format,
	}
	reqBody.Temperature = &temp
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", nil, err
	}

	url := c.apiURL
	if url == "" {
		url = defaultAPIURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", nil, fmt.Errorf("openai request timeout: %w", err)
		}
		return "", nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", nil, fmt.Errorf("openai response parse: %w", err)
	}
	if parsed.Error != nil {
		return "", nil, fmt.Errorf("openai error: %s (%s)", parsed.Error.Message, parsed.Error.Type)
	}
	if len(parsed.Choices) == 0 {
		return "", nil, fmt.Errorf("openai response missing choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", nil, fmt.Errorf("openai response empty content")
	}
	return content, toUsage(parsed.Usage), nil
}

type chatResponseUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func toUsage(raw *struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}) *chatResponseUsage {
	if raw == nil {
		return nil
	}
	return &chatResponseUsage{
		PromptTokens:     raw.PromptTokens,
		CompletionTokens: raw.CompletionTokens,
		TotalTokens:      raw.TotalTokens,
	}
}

func logUsage(model, stage string, usage *chatResponseUsage) {
	if usage == nil {
		log.Printf("llm response model=%s stage=%s", model, stage)
		return
	}
	log.Printf("llm response model=%s stage=%s prompt_tokens=%d completion_tokens=%d total_tokens=%d",
		model, stage, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
}

var _ llm.Client = (*Client)(nil)
