package local

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveOpenRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	key, size, mimeType, err := store.Save(ctx, "temp/batch_1", "ad.txt", strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if key != "temp/batch_1/ad.txt" {
		t.Fatalf("unexpected key: %q", key)
	}
	if size != int64(len("hello world")) {
		t.Fatalf("unexpected size: %d", size)
	}
	if !strings.HasPrefix(mimeType, "text/plain") {
		t.Fatalf("unexpected mime type: %q", mimeType)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, []byte("hello world")) {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestSaveRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	if _, _, _, err := store.Save(ctx, "temp/batch_1", "../escape.txt", strings.NewReader("x")); err == nil {
		t.Fatal("expected traversal file name to be rejected")
	}
	if _, err := store.Open(ctx, "../outside"); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
}

func TestListAndDelete(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	for _, name := range []string{"a.jpg", "b.jpg"} {
		if _, _, _, err := store.Save(ctx, "temp/batch_2", name, strings.NewReader("data")); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}

	keys, err := store.List(ctx, "temp/batch_2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %v", keys)
	}

	for _, key := range keys {
		if err := store.Delete(ctx, key); err != nil {
			t.Fatalf("delete %s: %v", key, err)
		}
	}

	keys, err = store.List(ctx, "temp/batch_2")
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected empty listing, got %v", keys)
	}

	// Deleting an already-removed key is a no-op.
	if err := store.Delete(ctx, "temp/batch_2/a.jpg"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestSaveWithKeyOverwrites(t *testing.T) {
	base := New(t.TempDir())
	store := base.(*Store)
	ctx := context.Background()

	if _, err := store.SaveWithKey(ctx, "batch_results/batch_3.json", "application/json", strings.NewReader(`{"v":1}`)); err != nil {
		t.Fatalf("save with key: %v", err)
	}
	if _, err := store.SaveWithKey(ctx, "batch_results/batch_3.json", "application/json", strings.NewReader(`{"v":2}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	rc, err := store.Open(ctx, "batch_results/batch_3.json")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != `{"v":2}` {
		t.Fatalf("expected overwritten content, got %q", data)
	}
}
