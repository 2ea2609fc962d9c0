package ports

import (
	"context"

	"github.com/flowmindlabs/flowmind-rag/internal/core/domain"
)

// GenerateOptions tunes one generative model call.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// TextGenerator is the generative text model used for query rewriting,
// hypothetical-document generation, re-ranking, answer generation/refinement
// and judging.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// Embedder builds fixed-dimension vectors for query and document text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher queries the per-course transcript collections.
type VectorSearcher interface {
	Search(ctx context.Context, course domain.Course, queryVector []float32, limit int) ([]domain.SearchResultItem, error)
	SearchLexical(ctx context.Context, course domain.Course, queryText string, limit int) ([]domain.SearchResultItem, error)
}

// ReviewStore persists answer-review audit records.
type ReviewStore interface {
	Create(ctx context.Context, review *domain.AnswerReview) error
	GetByID(ctx context.Context, id string) (*domain.AnswerReview, error)
	SaveEvaluation(ctx context.Context, id string, eval domain.Evaluation) error
	UpdateStatus(ctx context.Context, id string, status domain.ReviewStatus, errMessage string) error
}

// ReviewQueue publishes/consumes answer-review events.
type ReviewQueue interface {
	PublishReviewRequested(ctx context.Context, reviewID string) error
	SubscribeReviewRequested(ctx context.Context, handler func(context.Context, string) error) error
}
