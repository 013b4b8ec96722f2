package history

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoInsert(t *testing.T) {
	repo, mock := newMockRepo(t)

	record := Record{
		ID:           "rec-1",
		BatchID:      "batch_20260828_120000_ab12cd34",
		Filename:     "banner.png",
		Engine:       "naver",
		RiskScore:    45,
		RiskLevel:    "MEDIUM",
		Judgment:     "suggest_edit",
		KeywordScore: 30,
		UsedAI:       true,
		Confidence:   0.97,
		Summary:      "Guarantee language found.",
		Categories:   []string{"treatment_guarantee"},
		Keywords:     []string{"100% guaranteed"},
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO analysis_history").
		WithArgs(
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
			sqlmock.AnyArg(), // categories jsonb
			sqlmock.AnyArg(), // keywords jsonb
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Insert(context.Background(), record); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListWithFilter(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM analysis_history WHERE judgment = \$1`).
		WithArgs("rejected").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	created := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "batch_id", "filename", "engine", "risk_score", "risk_level", "judgment",
		"keyword_score", "ai_contribution", "used_ai", "used_rag", "confidence", "summary",
		"categories", "keywords", "created_at",
	}).AddRow(
		"rec-1", "batch_x", "a.png", "naver", 90, "CRITICAL", "rejected",
		60, 30, true, false, 0.9, "severe violations",
		`["treatment_guarantee"]`, `["100% guaranteed"]`, created,
	)
	mock.ExpectQuery("SELECT id, batch_id, filename, engine, risk_score").
		WithArgs("rejected", 20, 0).
		WillReturnRows(rows)

	records, total, err := repo.List(context.Background(), Filter{Judgment: "rejected"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(records) != 1 {
		t.Fatalf("total=%d records=%d", total, len(records))
	}
	got := records[0]
	if got.ID != "rec-1" || got.Judgment != "rejected" || got.RiskScore != 90 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if len(got.Categories) != 1 || got.Categories[0] != "treatment_guarantee" {
		t.Fatalf("categories not decoded: %v", got.Categories)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoDeleteMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("DELETE FROM analysis_history").
		WithArgs("rec-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "rec-missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoStatistics(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\), COALESCE\(AVG\(risk_score\), 0\) FROM analysis_history`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "avg"}).AddRow(3, 41.5))
	mock.ExpectQuery("SELECT risk_level, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"risk_level", "count"}).
			AddRow("MEDIUM", 2).AddRow("CRITICAL", 1))
	mock.ExpectQuery("SELECT judgment, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"judgment", "count"}).
			AddRow("suggest_edit", 2).AddRow("rejected", 1))
	mock.ExpectQuery(`jsonb_array_elements_text\(categories\)`).
		WillReturnRows(sqlmock.NewRows([]string{"value", "n"}).
			AddRow("treatment_guarantee", 3))
	mock.ExpectQuery(`jsonb_array_elements_text\(keywords\)`).
		WillReturnRows(sqlmock.NewRows([]string{"value", "n"}).
			AddRow("100% guaranteed", 2).AddRow("miracle", 1))

	stats, err := repo.Statistics(context.Background(), DateRange{})
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.TotalRecords != 3 || stats.AverageRiskScore != 41.5 {
		t.Fatalf("totals: %+v", stats)
	}
	if stats.LevelCounts["MEDIUM"] != 2 || stats.JudgmentCounts["rejected"] != 1 {
		t.Fatalf("counts: %+v", stats)
	}
	if len(stats.TopCategories) != 1 || stats.TopCategories[0].Name != "treatment_guarantee" {
		t.Fatalf("top categories: %+v", stats.TopCategories)
	}
	if len(stats.TopKeywords) != 2 || stats.TopKeywords[0].Count != 2 {
		t.Fatalf("top keywords: %+v", stats.TopKeywords)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
