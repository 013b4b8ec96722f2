package extract

import (
	"context"
	"io"
	"strings"
	"testing"

	"adreview-backend/internal/shared/storage/object/local"
)

func TestExtractTextFromBytes_PlainText(t *testing.T) {
	data := []byte("Article 56\r\n\r\nMedical advertisements must not guarantee outcomes.\n")

	text, err := ExtractTextFromBytes(context.Background(), data, "text/plain; charset=utf-8", "guidelines.txt")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if strings.Contains(text, "\r") {
		t.Fatal("carriage returns should be normalized")
	}
	if !strings.HasPrefix(text, "Article 56") || !strings.HasSuffix(text, "outcomes.") {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestExtractTextFromBytes_ExtensionFallback(t *testing.T) {
	if _, err := ExtractTextFromBytes(context.Background(), []byte("rules"), "application/octet-stream", "rules.txt"); err != nil {
		t.Fatalf("txt extension should map to plain text: %v", err)
	}
}

func TestExtractTextFromBytes_RejectsUnsupported(t *testing.T) {
	_, err := ExtractTextFromBytes(context.Background(), []byte("PK"), "application/zip", "notes.zip")
	if err == nil {
		t.Fatal("expected unsupported mime error for zip")
	}
	if !strings.Contains(err.Error(), "unsupported mime type") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExtractTextFromBytes_RejectsBinaryText(t *testing.T) {
	if _, err := ExtractTextFromBytes(context.Background(), []byte{0xff, 0xfe, 0x00}, "text/plain", "broken.txt"); err == nil {
		t.Fatal("expected invalid utf-8 error")
	}
}

func TestExtractTextFromBytes_InvalidPDF(t *testing.T) {
	if _, err := ExtractTextFromBytes(context.Background(), []byte("not a pdf"), "application/pdf", "rules.pdf"); err == nil {
		t.Fatal("expected error for malformed pdf")
	}
}

func TestExtractTextSavesDerivedCopy(t *testing.T) {
	store := local.New(t.TempDir())
	ctx := context.Background()

	key, _, _, err := store.Save(ctx, "regulations", "guidelines.txt", strings.NewReader("No exaggerated claims."))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	text, err := ExtractText(ctx, store, key, "text/plain", "guidelines.txt")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "No exaggerated claims." {
		t.Fatalf("unexpected text: %q", text)
	}

	body, err := store.Open(ctx, key+".extracted.txt")
	if err != nil {
		t.Fatalf("open derived copy: %v", err)
	}
	defer body.Close()
	derived, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read derived copy: %v", err)
	}
	if string(derived) != text {
		t.Fatalf("derived copy mismatch: %q", derived)
	}
}
