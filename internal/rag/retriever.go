package rag

import "context"

// Passage is a retrieved regulation fragment. Lower rank means more relevant.
type Passage struct {
	DocID   string  `json:"docId"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Rank    float64 `json:"rank"`
}

// Retriever returns regulation passages relevant to an advertisement text,
// best-effort and ordered by relevance. An empty result is a valid answer.
type Retriever interface {
	Retrieve(ctx context.Context, text string, k int) ([]Passage, error)
}

// ContextTexts flattens passages into prompt-ready strings, capped at
// maxChars in total. Passages are kept in retrieval order.
func ContextTexts(passages []Passage, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = 4000
	}
	var out []string
	used := 0
	for _, p := range passages {
		text := p.Title + ": " + p.Content
		if used+len(text) > maxChars {
			break
		}
		out = append(out, text)
		used += len(text)
	}
	return out
}
