package rag

import (
	"context"
	"strings"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenMemory()
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestIndexAndRetrieve(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	n, err := store.IndexDocument(ctx, "doc-1", "Medical Service Act",
		"regulations/msa.txt",
		"Advertisements must not guarantee treatment effects.\n\nAdvertisements must not use superlative claims such as best hospital.")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if n == 0 {
		t.Fatal("expected at least one passage")
	}

	passages, err := store.Retrieve(ctx, "this clinic says results are guaranteed for every treatment", 3)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(passages) == 0 {
		t.Fatal("expected at least one passage hit")
	}
	if !strings.Contains(passages[0].Content, "guarantee") {
		t.Fatalf("unexpected top passage: %q", passages[0].Content)
	}
	if passages[0].DocID != "doc-1" {
		t.Fatalf("unexpected doc id: %q", passages[0].DocID)
	}
}

func TestRetrieveEmptyQueryAndNoHits(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	passages, err := store.Retrieve(ctx, "!!! 123", 3)
	if err != nil {
		t.Fatalf("retrieve with no tokens: %v", err)
	}
	if len(passages) != 0 {
		t.Fatalf("expected no passages, got %d", len(passages))
	}

	passages, err = store.Retrieve(ctx, "completely unrelated gardening topics", 3)
	if err != nil {
		t.Fatalf("retrieve with no hits: %v", err)
	}
	if len(passages) != 0 {
		t.Fatalf("expected no passages, got %d", len(passages))
	}
}

func TestReindexReplacesPassages(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.IndexDocument(ctx, "doc-1", "Guide", "", "original passage about testimonials"); err != nil {
		t.Fatalf("index: %v", err)
	}
	if _, err := store.IndexDocument(ctx, "doc-1", "Guide", "", "replacement passage about inducement"); err != nil {
		t.Fatalf("reindex: %v", err)
	}

	passages, err := store.Retrieve(ctx, "patient testimonials in advertising", 5)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(passages) != 0 {
		t.Fatalf("old passages should be gone, got %v", passages)
	}

	passages, err = store.Retrieve(ctx, "patient inducement rules", 5)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(passages) != 1 {
		t.Fatalf("expected the replacement passage, got %d", len(passages))
	}
}

func TestDocumentsAndDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.IndexDocument(ctx, "doc-1", "Guide", "regulations/guide.pdf", "some passage text"); err != nil {
		t.Fatalf("index: %v", err)
	}

	docs, err := store.Documents(ctx)
	if err != nil {
		t.Fatalf("documents: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "doc-1" || docs[0].PassageCount != 1 {
		t.Fatalf("unexpected documents: %+v", docs)
	}

	if err := store.DeleteDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteDocument(ctx, "doc-1"); err != ErrDocumentNotFound {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestChunkTextSplitsLongInput(t *testing.T) {
	long := strings.Repeat("regulation text ", 200)
	chunks := chunkText(long, 800)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 800 {
			t.Fatalf("chunk %d exceeds limit: %d", i, len(chunk))
		}
	}
	if chunks := chunkText("   ", 800); chunks != nil {
		t.Fatalf("expected nil for blank input, got %v", chunks)
	}
}
