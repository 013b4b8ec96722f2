package history

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo keeps history in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: make(map[string]Record)}
}

// Insert stores the record.
func (r *MemoryRepo) Insert(ctx context.Context, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = record
	return nil
}

// List returns matching records plus the total match count before paging.
func (r *MemoryRepo) List(ctx context.Context, filter Filter) ([]Record, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	var matched []Record
	for _, record := range r.records {
		if filter.BatchID != "" && record.BatchID != filter.BatchID {
			continue
		}
		if filter.Judgment != "" && record.Judgment != filter.Judgment {
			continue
		}
		if filter.RiskLevel != "" && record.RiskLevel != filter.RiskLevel {
			continue
		}
		matched = append(matched, record)
	}
	r.mu.RUnlock()

	if filter.SortBy == "risk_score" {
		sort.Slice(matched, func(i, j int) bool {
			if matched[i].RiskScore != matched[j].RiskScore {
				return matched[i].RiskScore > matched[j].RiskScore
			}
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		})
	} else {
		sort.Slice(matched, func(i, j int) bool {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		})
	}

	total := len(matched)
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []Record{}, total, nil
	}
	end := total
	if filter.Limit > 0 && offset+filter.Limit < end {
		end = offset + filter.Limit
	}
	return matched[offset:end], total, nil
}

// Delete removes a record.
func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return ErrNotFound
	}
	delete(r.records, id)
	return nil
}

// Statistics aggregates the stored records within the date range.
func (r *MemoryRepo) Statistics(ctx context.Context, rng DateRange) (Statistics, error) {
	if err := ctx.Err(); err != nil {
		return Statistics{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Statistics{
		LevelCounts:    make(map[string]int),
		JudgmentCounts: make(map[string]int),
		TopCategories:  []CountItem{},
		TopKeywords:    []CountItem{},
	}
	categoryCounts := make(map[string]int)
	keywordCounts := make(map[string]int)
	scoreSum := 0

	for _, record := range r.records {
		if !rng.Contains(record.CreatedAt) {
			continue
		}
		stats.TotalRecords++
		scoreSum += record.RiskScore
		stats.LevelCounts[record.RiskLevel]++
		stats.JudgmentCounts[record.Judgment]++
		for _, category := range record.Categories {
			categoryCounts[category]++
		}
		for _, keyword := range record.Keywords {
			keywordCounts[keyword]++
		}
	}
	if stats.TotalRecords > 0 {
		stats.AverageRiskScore = float64(scoreSum) / float64(stats.TotalRecords)
	}
	stats.TopCategories = topCounts(categoryCounts, 5)
	stats.TopKeywords = topCounts(keywordCounts, 5)
	return stats, nil
}

func topCounts(counts map[string]int, limit int) []CountItem {
	items := make([]CountItem, 0, len(counts))
	for name, count := range counts {
		items = append(items, CountItem{Name: name, Count: count})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Name < items[j].Name
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

var _ Repo = (*MemoryRepo)(nil)
