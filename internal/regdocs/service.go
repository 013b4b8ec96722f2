package regdocs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"adreview-backend/internal/extract"
	"adreview-backend/internal/rag"
	"adreview-backend/internal/shared/storage/object"
	"adreview-backend/internal/shared/telemetry"
)

const (
	regulationsRoot = "regulations"
	maxDocSizeBytes = 50 << 20

	derivedSuffix = ".extracted.txt"
)

var allowedDocExts = map[string]bool{
	".txt": true,
	".pdf": true,
}

// Upload validation errors surfaced to the HTTP layer.
var (
	ErrUnsupportedDoc = errors.New("unsupported document type")
	ErrDocTooLarge    = errors.New("document exceeds the 50MB size limit")
)

// Service manages the regulation documents that back the retriever index.
// Uploaded documents are stored under the regulations prefix and indexed
// immediately; the document id is the uploaded filename, so re-uploading a
// file replaces its passages.
type Service struct {
	Objects object.ObjectStore
	Index   *rag.Store
}

// List returns the indexed documents, newest first.
func (s *Service) List(ctx context.Context) ([]rag.DocumentInfo, error) {
	return s.Index.Documents(ctx)
}

// Upload stores a regulation document and indexes its text.
func (s *Service) Upload(ctx context.Context, name string, size int64, r io.Reader) (rag.DocumentInfo, error) {
	ext := strings.ToLower(path.Ext(name))
	if !allowedDocExts[ext] {
		return rag.DocumentInfo{}, fmt.Errorf("%w: %s", ErrUnsupportedDoc, name)
	}
	if size > maxDocSizeBytes {
		return rag.DocumentInfo{}, fmt.Errorf("%w: %s", ErrDocTooLarge, name)
	}

	key, _, mimeType, err := s.Objects.Save(ctx, regulationsRoot, name, r)
	if err != nil {
		return rag.DocumentInfo{}, fmt.Errorf("store document %s: %w", name, err)
	}

	info, err := s.index(ctx, key, mimeType, name)
	if err != nil {
		return rag.DocumentInfo{}, err
	}
	telemetry.Info("regdoc.indexed", map[string]any{
		"document_id": info.ID,
		"passages":    info.PassageCount,
	})
	return info, nil
}

// Delete removes a document from the index and the object store.
func (s *Service) Delete(ctx context.Context, id string) error {
	docs, err := s.Index.Documents(ctx)
	if err != nil {
		return err
	}
	var sourceKey string
	for _, doc := range docs {
		if doc.ID == id {
			sourceKey = doc.SourceKey
			break
		}
	}
	if err := s.Index.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if sourceKey != "" {
		if err := s.Objects.Delete(ctx, sourceKey); err != nil {
			telemetry.Warn("regdoc.delete_source_failed", map[string]any{
				"document_id": id,
				"key":         sourceKey,
				"error":       err.Error(),
			})
		}
		_ = s.Objects.Delete(ctx, sourceKey+derivedSuffix)
	}
	telemetry.Info("regdoc.deleted", map[string]any{"document_id": id})
	return nil
}

// Reindex rebuilds the passage index from every stored regulation document.
// Documents that fail to extract are skipped with a warning; the count of
// successfully indexed documents is returned.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	keys, err := s.Objects.List(ctx, regulationsRoot)
	if err != nil {
		return 0, fmt.Errorf("list regulation documents: %w", err)
	}

	indexed := 0
	for _, key := range keys {
		if strings.HasSuffix(key, derivedSuffix) {
			continue
		}
		name := path.Base(key)
		if !allowedDocExts[strings.ToLower(path.Ext(name))] {
			continue
		}
		if _, err := s.index(ctx, key, "", name); err != nil {
			telemetry.Warn("regdoc.reindex_skip", map[string]any{
				"key":   key,
				"error": err.Error(),
			})
			continue
		}
		indexed++
	}
	telemetry.Info("regdoc.reindexed", map[string]any{"documents": indexed})
	return indexed, nil
}

func (s *Service) index(ctx context.Context, key, mimeType, name string) (rag.DocumentInfo, error) {
	text, err := extract.ExtractText(ctx, s.Objects, key, mimeType, name)
	if err != nil {
		return rag.DocumentInfo{}, fmt.Errorf("extract document %s: %w", name, err)
	}
	count, err := s.Index.IndexDocument(ctx, name, docTitle(name), key, text)
	if err != nil {
		return rag.DocumentInfo{}, fmt.Errorf("index document %s: %w", name, err)
	}
	return rag.DocumentInfo{
		ID:           name,
		Title:        docTitle(name),
		SourceKey:    key,
		PassageCount: count,
	}, nil
}

func docTitle(name string) string {
	base := strings.TrimSuffix(name, path.Ext(name))
	return strings.ReplaceAll(base, "_", " ")
}
