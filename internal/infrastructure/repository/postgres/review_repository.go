package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/flowmindlabs/flowmind-rag/internal/core/domain"
)

type ReviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ReviewRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS answer_reviews (
	id TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	course TEXT NOT NULL,
	answer TEXT NOT NULL,
	sources JSONB NOT NULL DEFAULT '[]'::jsonb,
	strategy TEXT NOT NULL,
	accuracy DOUBLE PRECISION,
	relevance DOUBLE PRECISION,
	completeness DOUBLE PRECISION,
	clarity DOUBLE PRECISION,
	helpfulness DOUBLE PRECISION,
	overall DOUBLE PRECISION,
	judge_confidence DOUBLE PRECISION,
	passed BOOLEAN,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_answer_reviews_status ON answer_reviews(status);
CREATE INDEX IF NOT EXISTS idx_answer_reviews_created_at ON answer_reviews(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ReviewRepository) Create(ctx context.Context, review *domain.AnswerReview) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO answer_reviews (
	id, question, course, answer, sources, strategy, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		review.ID, review.Question, string(review.Course), review.Answer, review.Sources,
		string(review.Strategy), string(review.Status), review.ErrMessage, review.CreatedAt, review.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert answer review: %w", err)
	}
	return nil
}

func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.AnswerReview, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, question, course, answer, sources, strategy,
	accuracy, relevance, completeness, clarity, helpfulness, overall, judge_confidence, passed,
	status, error_message, created_at, updated_at
FROM answer_reviews
WHERE id = $1
`, id)

	var (
		review   domain.AnswerReview
		course   string
		strategy string
		status   string
		accuracy, relevance, completeness, clarity, helpfulness sql.NullFloat64
		overall, judgeConfidence                                sql.NullFloat64
		passed                                                  sql.NullBool
	)

	err := row.Scan(
		&review.ID, &review.Question, &course, &review.Answer, &review.Sources, &strategy,
		&accuracy, &relevance, &completeness, &clarity, &helpfulness, &overall, &judgeConfidence, &passed,
		&status, &review.ErrMessage, &review.CreatedAt, &review.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get answer review", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan answer review: %w", err)
	}

	review.Course = domain.Course(course)
	review.Strategy = domain.SearchStrategy(strategy)
	review.Status = domain.ReviewStatus(status)

	if overall.Valid {
		review.Evaluation = &domain.Evaluation{
			Accuracy:        accuracy.Float64,
			Relevance:       relevance.Float64,
			Completeness:    completeness.Float64,
			Clarity:         clarity.Float64,
			Helpfulness:     helpfulness.Float64,
			Overall:         overall.Float64,
			Confidence:      judgeConfidence.Float64,
			PassesThreshold: passed.Bool,
		}
	}
	return &review, nil
}

func (r *ReviewRepository) SaveEvaluation(ctx context.Context, id string, eval domain.Evaluation) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE answer_reviews
SET accuracy = $2, relevance = $3, completeness = $4, clarity = $5, helpfulness = $6,
	overall = $7, judge_confidence = $8, passed = $9, status = $10, updated_at = $11
WHERE id = $1
`, id, eval.Accuracy, eval.Relevance, eval.Completeness, eval.Clarity, eval.Helpfulness,
		eval.Overall, eval.Confidence, eval.PassesThreshold, string(domain.ReviewReviewed), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save evaluation: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "save evaluation", fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *ReviewRepository) UpdateStatus(ctx context.Context, id string, status domain.ReviewStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE answer_reviews
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update review status: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "update review status", fmt.Errorf("id %s", id))
	}
	return nil
}
