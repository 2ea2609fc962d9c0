package ports

import (
	"context"

	"github.com/flowmindlabs/flowmind-rag/internal/core/domain"
)

// SearchService is the inbound contract for orchestrated transcript retrieval.
type SearchService interface {
	Search(ctx context.Context, query domain.Query) (*domain.SearchResult, error)
}

// AnswerService is the inbound contract for the full ask flow: retrieval,
// answer generation, judging and bounded refinement.
type AnswerService interface {
	Ask(ctx context.Context, query domain.Query) (*domain.Answer, error)
}

// ResponseEvaluator is the inbound contract for answer quality judging.
type ResponseEvaluator interface {
	EvaluateResponse(ctx context.Context, question, response string, sources []domain.SearchResultItem, course domain.Course) domain.Evaluation
	GenerateImprovedResponse(ctx context.Context, original string, eval domain.Evaluation, question string, sources []domain.SearchResultItem, course domain.Course) string
	CompareResponses(ctx context.Context, question, responseA, responseB string, course domain.Course) domain.ResponseComparison
}

// ReviewProcessor is the inbound contract for asynchronous answer re-judging.
type ReviewProcessor interface {
	ProcessByID(ctx context.Context, reviewID string) error
}
