package rag

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register the sqlite driver
)

const passageChunkSize = 800

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	source_key TEXT NOT NULL DEFAULT '',
	passage_count INTEGER NOT NULL DEFAULT 0,
	indexed_at TEXT NOT NULL
);
CREATE VIRTUAL TABLE IF NOT EXISTS passages USING fts5(doc_id, title, content);
`

// Store is an FTS5-backed regulation passage index implementing Retriever.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the passage index at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir rag db dir: %w", err)
		}
	}
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	return open(dsn)
}

// OpenMemory opens an in-memory passage index, used by tests.
func OpenMemory() (*Store, error) {
	return open("file::memory:?_pragma=foreign_keys(1)")
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The sqlite driver serializes writes; a single connection avoids
	// table-locked errors under concurrent indexing.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply rag schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DocumentInfo describes an indexed regulation document.
type DocumentInfo struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	SourceKey    string    `json:"sourceKey"`
	PassageCount int       `json:"passageCount"`
	IndexedAt    time.Time `json:"indexedAt"`
}

// IndexDocument (re)indexes a document: existing passages for the id are
// replaced by chunks of the given text.
func (s *Store) IndexDocument(ctx context.Context, id, title, sourceKey, text string) (int, error) {
	if strings.TrimSpace(id) == "" {
		return 0, fmt.Errorf("document id is required")
	}
	chunks := chunkText(text, passageChunkSize)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM passages WHERE doc_id = ?`, id); err != nil {
		return 0, fmt.Errorf("clear passages: %w", err)
	}
	for _, chunk := range chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO passages (doc_id, title, content) VALUES (?, ?, ?)`,
			id, title, chunk,
		); err != nil {
			return 0, fmt.Errorf("insert passage: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, title, source_key, passage_count, indexed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			source_key = excluded.source_key,
			passage_count = excluded.passage_count,
			indexed_at = excluded.indexed_at`,
		id, title, sourceKey, len(chunks), time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return 0, fmt.Errorf("upsert document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(chunks), nil
}

// DeleteDocument removes a document and its passages.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM passages WHERE doc_id = ?`, id); err != nil {
		return fmt.Errorf("delete passages: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// Documents lists indexed documents, newest first.
func (s *Store) Documents(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, source_key, passage_count, indexed_at
		FROM documents ORDER BY indexed_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentInfo
	for rows.Next() {
		var info DocumentInfo
		var indexedAt string
		if err := rows.Scan(&info.ID, &info.Title, &info.SourceKey, &info.PassageCount, &indexedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339, indexedAt); parseErr == nil {
			info.IndexedAt = ts
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Retrieve implements Retriever with a full-text match over the passage index.
func (s *Store) Retrieve(ctx context.Context, text string, k int) ([]Passage, error) {
	if k <= 0 {
		k = 3
	}
	query := matchQuery(text)
	if query == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, title, content, rank
		FROM passages
		WHERE passages MATCH ?
		ORDER BY rank
		LIMIT ?`, query, k)
	if err != nil {
		return nil, fmt.Errorf("search passages: %w", err)
	}
	defer rows.Close()

	var out []Passage
	for rows.Next() {
		var p Passage
		if err := rows.Scan(&p.DocID, &p.Title, &p.Content, &p.Rank); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

var tokenPattern = regexp.MustCompile(`[a-zA-Z]{4,}`)

// matchQuery turns free text into an OR query of its distinctive tokens.
// Tokens are double-quoted so FTS syntax characters in the input are inert.
func matchQuery(text string) string {
	const maxTokens = 8
	seen := make(map[string]struct{})
	var tokens []string
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, `"`+tok+`"`)
		if len(tokens) == maxTokens {
			break
		}
	}
	return strings.Join(tokens, " OR ")
}

func chunkText(text string, size int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	var chunks []string
	var current strings.Builder
	for _, para := range strings.Split(trimmed, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(para) > size {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		for len(para) > size {
			chunks = append(chunks, para[:size])
			para = para[size:]
		}
		if para != "" {
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(para)
		}
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

var _ Retriever = (*Store)(nil)
