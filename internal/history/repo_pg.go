package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const recordColumns = `id, batch_id, filename, engine, risk_score, risk_level, judgment,
       keyword_score, ai_contribution, used_ai, used_rag, confidence, summary,
       categories, keywords, created_at`

// Insert stores one history record.
func (r *PGRepo) Insert(ctx context.Context, record Record) error {
	const query = `
INSERT INTO analysis_history (
	id, batch_id, filename, engine, risk_score, risk_level, judgment,
	keyword_score, ai_contribution, used_ai, used_rag, confidence, summary,
	categories, keywords, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	categories, err := marshalStringList(record.Categories)
	if err != nil {
		return err
	}
	keywords, err := marshalStringList(record.Keywords)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		record.ID,
		record.BatchID,
		record.Filename,
		record.Engine,
		record.RiskScore,
		record.RiskLevel,
		record.Judgment,
		record.KeywordScore,
		record.AIContribution,
		record.UsedAI,
		record.UsedRAG,
		record.Confidence,
		record.Summary,
		categories,
		keywords,
		record.CreatedAt,
	)
	return err
}

// List returns matching records plus the total match count before paging.
func (r *PGRepo) List(ctx context.Context, filter Filter) ([]Record, int, error) {
	where, args := buildWhere(filter)

	countQuery := "SELECT COUNT(*) FROM analysis_history" + where
	var total int
	if err := r.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "created_at DESC"
	if filter.SortBy == "risk_score" {
		order = "risk_score DESC, created_at DESC"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf("SELECT %s FROM analysis_history%s ORDER BY %s LIMIT $%d OFFSET $%d",
		recordColumns, where, order, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, record)
	}
	return out, total, rows.Err()
}

// Delete removes one record.
func (r *PGRepo) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM analysis_history WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Statistics aggregates the stored records within the date range.
func (r *PGRepo) Statistics(ctx context.Context, rng DateRange) (Statistics, error) {
	stats := Statistics{
		LevelCounts:    make(map[string]int),
		JudgmentCounts: make(map[string]int),
		TopCategories:  []CountItem{},
		TopKeywords:    []CountItem{},
	}
	where, args := statsWhere(rng)

	totalsQuery := `SELECT COUNT(*), COALESCE(AVG(risk_score), 0) FROM analysis_history` + where
	if err := r.DB.QueryRowContext(ctx, totalsQuery, args...).Scan(&stats.TotalRecords, &stats.AverageRiskScore); err != nil {
		return Statistics{}, err
	}

	levelsQuery := `SELECT risk_level, COUNT(*) FROM analysis_history` + where + ` GROUP BY risk_level`
	if err := r.scanCounts(ctx, levelsQuery, args, stats.LevelCounts); err != nil {
		return Statistics{}, err
	}

	judgmentsQuery := `SELECT judgment, COUNT(*) FROM analysis_history` + where + ` GROUP BY judgment`
	if err := r.scanCounts(ctx, judgmentsQuery, args, stats.JudgmentCounts); err != nil {
		return Statistics{}, err
	}

	categoriesQuery := `
SELECT value, COUNT(*) AS n
FROM analysis_history, jsonb_array_elements_text(categories)` + where + `
GROUP BY value
ORDER BY n DESC, value ASC
LIMIT 5`
	topCategories, err := r.scanTop(ctx, categoriesQuery, args)
	if err != nil {
		return Statistics{}, err
	}
	stats.TopCategories = topCategories

	keywordsQuery := `
SELECT value, COUNT(*) AS n
FROM analysis_history, jsonb_array_elements_text(keywords)` + where + `
GROUP BY value
ORDER BY n DESC, value ASC
LIMIT 5`
	topKeywords, err := r.scanTop(ctx, keywordsQuery, args)
	if err != nil {
		return Statistics{}, err
	}
	stats.TopKeywords = topKeywords

	return stats, nil
}

func statsWhere(rng DateRange) (string, []any) {
	var clauses []string
	var args []any
	if !rng.From.IsZero() {
		args = append(args, rng.From)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !rng.To.IsZero() {
		args = append(args, rng.To)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *PGRepo) scanCounts(ctx context.Context, query string, args []any, into map[string]int) error {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return err
		}
		into[name] = count
	}
	return rows.Err()
}

func (r *PGRepo) scanTop(ctx context.Context, query string, args []any) ([]CountItem, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []CountItem{}
	for rows.Next() {
		var item CountItem
		if err := rows.Scan(&item.Name, &item.Count); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func buildWhere(filter Filter) (string, []any) {
	var clauses []string
	var args []any
	if filter.BatchID != "" {
		args = append(args, filter.BatchID)
		clauses = append(clauses, fmt.Sprintf("batch_id = $%d", len(args)))
	}
	if filter.Judgment != "" {
		args = append(args, filter.Judgment)
		clauses = append(clauses, fmt.Sprintf("judgment = $%d", len(args)))
	}
	if filter.RiskLevel != "" {
		args = append(args, filter.RiskLevel)
		clauses = append(clauses, fmt.Sprintf("risk_level = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var record Record
	var categories sql.NullString
	var keywords sql.NullString
	err := row.Scan(
		&record.ID,
		&record.BatchID,
		&record.Filename,
		&record.Engine,
		&record.RiskScore,
		&record.RiskLevel,
		&record.Judgment,
		&record.KeywordScore,
		&record.AIContribution,
		&record.UsedAI,
		&record.UsedRAG,
		&record.Confidence,
		&record.Summary,
		&categories,
		&keywords,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	if categories.Valid {
		_ = json.Unmarshal([]byte(categories.String), &record.Categories)
	}
	if keywords.Valid {
		_ = json.Unmarshal([]byte(keywords.String), &record.Keywords)
	}
	if record.Categories == nil {
		record.Categories = []string{}
	}
	if record.Keywords == nil {
		record.Keywords = []string{}
	}
	return record, nil
}

func marshalStringList(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

var _ Repo = (*PGRepo)(nil)
