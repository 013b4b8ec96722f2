package scoring

import (
	"sort"
	"strings"
	"unicode/utf8"

	"adreview-backend/internal/keywords"
)

// KeywordMatch is a scored occurrence of a regulated term. Points is always
// BaseScore plus Bonus.
type KeywordMatch struct {
	Term      string `json:"term"`
	Category  string `json:"category"`
	Severity  string `json:"severity"`
	Reference string `json:"reference"`
	Count     int    `json:"count"`
	BaseScore int    `json:"baseScore"`
	Bonus     int    `json:"bonus"`
	Points    int    `json:"points"`
	Context   string `json:"context,omitempty"`
}

// KeywordResult is the stage-one output.
type KeywordResult struct {
	Score   int            `json:"score"`
	Matches []KeywordMatch `json:"matches"`
}

func severityBaseScore(sev keywords.Severity) int {
	switch sev {
	case keywords.SeverityHigh:
		return 30
	case keywords.SeverityMedium:
		return 20
	default:
		return 10
	}
}

// termPoints scores a single term: full base score for the first occurrence,
// then a halving bonus per repeat so repetition raises the score sub-linearly.
func termPoints(base, count int) int {
	if count <= 0 {
		return 0
	}
	points := base
	bonus := base / 2
	for i := 1; i < count; i++ {
		if bonus < 1 {
			bonus = 1
		}
		points += bonus
		bonus /= 2
	}
	return points
}

// ScoreKeywords runs the keyword scan over text. It returns the sentinel score
// when nothing matched and the text shows no advertisement signal; a matchless
// text that still reads like an ad scores zero.
func ScoreKeywords(text string) KeywordResult {
	found := keywords.FindAll(text)
	if len(found) == 0 {
		if !keywords.LooksLikeAdvertisement(text) {
			return KeywordResult{Score: ScoreNotAdvertisement}
		}
		return KeywordResult{Score: 0, Matches: []KeywordMatch{}}
	}

	total := 0
	matches := make([]KeywordMatch, 0, len(found))
	for _, m := range found {
		base := severityBaseScore(m.Severity)
		points := termPoints(base, m.Count)
		total += points
		matches = append(matches, KeywordMatch{
			Term:      m.Term,
			Category:  m.Category,
			Severity:  string(m.Severity),
			Reference: m.Reference,
			Count:     m.Count,
			BaseScore: base,
			Bonus:     points - base,
			Points:    points,
			Context:   matchContext(text, m.Term),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Points != matches[j].Points {
			return matches[i].Points > matches[j].Points
		}
		return matches[i].Term < matches[j].Term
	})

	return KeywordResult{Score: ClampScore(total), Matches: matches}
}

const contextRadius = 40

// matchContext returns a snippet of the text around the first occurrence of
// the term, for display next to the violation. Cut points snap to rune
// boundaries so multibyte OCR text never yields invalid UTF-8.
func matchContext(text, term string) string {
	idx := strings.Index(strings.ToLower(text), strings.ToLower(term))
	if idx < 0 {
		return ""
	}
	start := idx - contextRadius
	if start < 0 {
		start = 0
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	end := idx + len(term) + contextRadius
	if end > len(text) {
		end = len(text)
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return strings.TrimSpace(text[start:end])
}
