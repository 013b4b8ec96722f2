package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEngineLimit(t *testing.T) {
	if limit, err := EngineLimit("naver"); err != nil || limit != 5 {
		t.Fatalf("naver limit = %d, %v", limit, err)
	}
	if limit, err := EngineLimit("PADDLE"); err != nil || limit != 50 {
		t.Fatalf("paddle limit = %d, %v", limit, err)
	}
	if _, err := EngineLimit("tesseract"); !errors.Is(err, ErrUnsupportedEngine) {
		t.Fatalf("expected ErrUnsupportedEngine, got %v", err)
	}
}

func TestNaverExtract(t *testing.T) {
	var gotSecret string
	var gotMessage map[string]any
	var gotFileName string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("X-OCR-SECRET")

		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			t.Errorf("parse content type: %v", err)
		}
		reader := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Errorf("read part: %v", err)
				break
			}
			data, _ := io.ReadAll(part)
			switch part.FormName() {
			case "message":
				_ = json.Unmarshal(data, &gotMessage)
			case "file":
				gotFileName = part.FileName()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"images": [{"fields": [
			{"inferText": "free", "inferConfidence": 0.9},
			{"inferText": "consultation", "inferConfidence": 0.8}
		]}]}`))
	}))
	defer server.Close()

	client, err := NewNaverClient(server.URL, "secret-key")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	result, err := client.Extract(context.Background(), []byte("fake-image"), "banner.jpg")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Text != "free consultation" {
		t.Fatalf("text = %q", result.Text)
	}
	if result.Confidence != 0.85 {
		t.Fatalf("confidence = %v, want rounded average 0.85", result.Confidence)
	}
	if result.FieldsCount != 2 {
		t.Fatalf("fields count = %d", result.FieldsCount)
	}

	if gotSecret != "secret-key" {
		t.Fatalf("secret header = %q", gotSecret)
	}
	if gotFileName != "banner.jpg" {
		t.Fatalf("file part name = %q", gotFileName)
	}
	if gotMessage["version"] != "V2" {
		t.Fatalf("message version = %v", gotMessage["version"])
	}
	images, ok := gotMessage["images"].([]any)
	if !ok || len(images) != 1 {
		t.Fatalf("message images = %v", gotMessage["images"])
	}
	if img := images[0].(map[string]any); img["format"] != "jpg" {
		t.Fatalf("image format = %v", img["format"])
	}
}

func TestNaverExtractAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code": "0011", "message": "invalid image"}`))
	}))
	defer server.Close()

	client, err := NewNaverClient(server.URL, "secret-key")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Extract(context.Background(), []byte("x"), "a.png"); err == nil {
		t.Fatal("expected error")
	} else if !strings.Contains(err.Error(), "http status 400") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNaverExtractEmptyFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"images": [{"fields": []}]}`))
	}))
	defer server.Close()

	client, err := NewNaverClient(server.URL, "secret-key")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	result, err := client.Extract(context.Background(), []byte("x"), "a.png")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Text != "" || result.Confidence != 0 || result.FieldsCount != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestNewNaverClientValidation(t *testing.T) {
	if _, err := NewNaverClient("", "secret"); err == nil {
		t.Fatal("expected error for missing url")
	}
	if _, err := NewNaverClient("http://example.com", ""); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestPaddleExtract(t *testing.T) {
	image := []byte("fake-image-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req paddleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Images) != 1 {
			t.Errorf("images = %d", len(req.Images))
		} else if decoded, _ := base64.StdEncoding.DecodeString(req.Images[0]); string(decoded) != string(image) {
			t.Error("image payload not base64 of the input")
		}

		_, _ = w.Write([]byte(`{"results": [{
			"rec_texts": ["discount", "", "event"],
			"rec_scores": [0.95, 0.1, 0.85]
		}]}`))
	}))
	defer server.Close()

	client, err := NewPaddleClient(server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	result, err := client.Extract(context.Background(), image, "flyer.png")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Text != "discount event" {
		t.Fatalf("text = %q", result.Text)
	}
	if result.FieldsCount != 2 {
		t.Fatalf("fields count = %d", result.FieldsCount)
	}
	if result.Confidence != 0.9 {
		t.Fatalf("confidence = %v, want 0.9", result.Confidence)
	}
}

func TestPaddleExtractEmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer server.Close()

	client, err := NewPaddleClient(server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	result, err := client.Extract(context.Background(), []byte("x"), "a.png")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Text != "" || result.FieldsCount != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

type scriptedExtractor struct {
	errs  []error
	calls int
}

func (s *scriptedExtractor) Extract(ctx context.Context, image []byte, fileName string) (Result, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return Result{}, s.errs[idx]
	}
	return Result{Text: "ok", Confidence: 1, FieldsCount: 1}, nil
}

func TestWithRetryTransientFailure(t *testing.T) {
	base := &scriptedExtractor{errs: []error{errors.New("ocr api error: http status 503: busy")}}
	wrapped := WithRetry(base, "batch-1")

	result, err := wrapped.Extract(context.Background(), []byte("x"), "a.png")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Text != "ok" || base.calls != 2 {
		t.Fatalf("result=%+v calls=%d", result, base.calls)
	}
}

func TestWithRetryPermanentFailure(t *testing.T) {
	permanent := errors.New("ocr api error: http status 400: invalid image")
	base := &scriptedExtractor{errs: []error{permanent, permanent}}
	wrapped := WithRetry(base, "batch-1")

	if _, err := wrapped.Extract(context.Background(), []byte("x"), "a.png"); err == nil {
		t.Fatal("expected error")
	}
	if base.calls != 1 {
		t.Fatalf("permanent failure retried, calls=%d", base.calls)
	}
}

func TestImageFormat(t *testing.T) {
	tests := map[string]string{
		"a.jpg":  "jpg",
		"b.JPEG": "jpg",
		"c.png":  "png",
		"d.webp": "png",
	}
	for name, want := range tests {
		if got := imageFormat(name); got != want {
			t.Fatalf("imageFormat(%q) = %q, want %q", name, got, want)
		}
	}
}
