package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/flowmindlabs/flowmind-rag/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*ReviewRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	repo := NewReviewRepository(db)
	cleanup := func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	}
	return repo, mock, cleanup
}

func TestCreateInsertsReview(t *testing.T) {
	repo, mock, cleanup := newRepoWithMock(t)
	defer cleanup()

	now := time.Now().UTC()
	review := &domain.AnswerReview{
		ID:        "rev-1",
		Question:  "how does the event loop work",
		Course:    domain.CourseNodeJS,
		Answer:    "The event loop processes callbacks in phases.",
		Sources:   `[{"video_id":"vid-1","start_time":12.5}]`,
		Strategy:  domain.StrategySemantic,
		Status:    domain.ReviewPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO answer_reviews").
		WithArgs(review.ID, review.Question, "nodejs", review.Answer, review.Sources,
			"semantic", "pending", "", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), review); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

func TestGetByIDMapsEvaluation(t *testing.T) {
	repo, mock, cleanup := newRepoWithMock(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "question", "course", "answer", "sources", "strategy",
		"accuracy", "relevance", "completeness", "clarity", "helpfulness", "overall", "judge_confidence", "passed",
		"status", "error_message", "created_at", "updated_at",
	}).AddRow(
		"rev-1", "what is a closure", "nodejs", "A closure captures its lexical scope.", "[]", "semantic",
		0.8, 0.9, 0.7, 0.85, 0.75, 0.8, 0.9, true,
		"reviewed", "", now, now,
	)

	mock.ExpectQuery("SELECT id, question, course, answer, sources, strategy").
		WithArgs("rev-1").
		WillReturnRows(rows)

	review, err := repo.GetByID(context.Background(), "rev-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if review.Course != domain.CourseNodeJS || review.Status != domain.ReviewReviewed {
		t.Fatalf("unexpected mapping: %+v", review)
	}
	if review.Evaluation == nil {
		t.Fatalf("expected evaluation to be populated")
	}
	if review.Evaluation.Overall != 0.8 || !review.Evaluation.PassesThreshold {
		t.Fatalf("unexpected evaluation: %+v", review.Evaluation)
	}
}

func TestGetByIDWithoutEvaluationLeavesItNil(t *testing.T) {
	repo, mock, cleanup := newRepoWithMock(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "question", "course", "answer", "sources", "strategy",
		"accuracy", "relevance", "completeness", "clarity", "helpfulness", "overall", "judge_confidence", "passed",
		"status", "error_message", "created_at", "updated_at",
	}).AddRow(
		"rev-2", "explain decorators", "python", "A decorator wraps a callable.", "[]", "hybrid",
		nil, nil, nil, nil, nil, nil, nil, nil,
		"pending", "", now, now,
	)

	mock.ExpectQuery("SELECT id, question, course, answer, sources, strategy").
		WithArgs("rev-2").
		WillReturnRows(rows)

	review, err := repo.GetByID(context.Background(), "rev-2")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if review.Evaluation != nil {
		t.Fatalf("expected nil evaluation for pending review, got %+v", review.Evaluation)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock, cleanup := newRepoWithMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, question, course, answer, sources, strategy").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found kind, got %v", err)
	}
}

func TestSaveEvaluationUpdatesScores(t *testing.T) {
	repo, mock, cleanup := newRepoWithMock(t)
	defer cleanup()

	eval := domain.Evaluation{
		Accuracy: 0.8, Relevance: 0.9, Completeness: 0.7, Clarity: 0.85, Helpfulness: 0.75,
		Overall: 0.8, Confidence: 0.9, PassesThreshold: true,
	}

	mock.ExpectExec("UPDATE answer_reviews").
		WithArgs("rev-1", 0.8, 0.9, 0.7, 0.85, 0.75, 0.8, 0.9, true, "reviewed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveEvaluation(context.Background(), "rev-1", eval); err != nil {
		t.Fatalf("SaveEvaluation() error = %v", err)
	}
}

func TestSaveEvaluationNotFound(t *testing.T) {
	repo, mock, cleanup := newRepoWithMock(t)
	defer cleanup()

	mock.ExpectExec("UPDATE answer_reviews").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveEvaluation(context.Background(), "missing", domain.Evaluation{})
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found kind, got %v", err)
	}
}

func TestUpdateStatusRecordsFailure(t *testing.T) {
	repo, mock, cleanup := newRepoWithMock(t)
	defer cleanup()

	mock.ExpectExec("UPDATE answer_reviews").
		WithArgs("rev-1", "failed", "judge unavailable", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "rev-1", domain.ReviewFailed, "judge unavailable")
	if err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
}
