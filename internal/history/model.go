package history

import "time"

// Record is one analyzed file kept for review history and statistics.
type Record struct {
	ID             string    `json:"id"`
	BatchID        string    `json:"batchId"`
	Filename       string    `json:"filename"`
	Engine         string    `json:"engine"`
	RiskScore      int       `json:"riskScore"`
	RiskLevel      string    `json:"riskLevel"`
	Judgment       string    `json:"judgment"`
	KeywordScore   int       `json:"keywordScore"`
	AIContribution int       `json:"aiContribution"`
	UsedAI         bool      `json:"usedAi"`
	UsedRAG        bool      `json:"usedRag"`
	Confidence     float64   `json:"confidence"`
	Summary        string    `json:"summary"`
	Categories     []string  `json:"categories"`
	Keywords       []string  `json:"keywords"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Filter narrows and pages a history listing.
type Filter struct {
	BatchID   string
	Judgment  string
	RiskLevel string
	Limit     int
	Offset    int
	// SortBy is "created_at" (default, newest first) or "risk_score"
	// (highest first).
	SortBy string
}

// DateRange bounds a statistics query. Zero values leave the side open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether ts falls inside the range.
func (r DateRange) Contains(ts time.Time) bool {
	if !r.From.IsZero() && ts.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && ts.After(r.To) {
		return false
	}
	return true
}

// CountItem is a named tally for statistics output.
type CountItem struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Statistics aggregates the review history.
type Statistics struct {
	TotalRecords     int            `json:"totalRecords"`
	AverageRiskScore float64        `json:"averageRiskScore"`
	LevelCounts      map[string]int `json:"levelCounts"`
	JudgmentCounts   map[string]int `json:"judgmentCounts"`
	TopCategories    []CountItem    `json:"topCategories"`
	TopKeywords      []CountItem    `json:"topKeywords"`
}
