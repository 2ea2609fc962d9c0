package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flowmindlabs/flowmind-rag/internal/core/domain"
	"github.com/flowmindlabs/flowmind-rag/internal/core/ports"
)

// AnswerUseCase runs the full ask flow: cache lookup, orchestrated retrieval,
// answer generation, judging and a bounded refinement loop, then caches the
// outcome and emits a best-effort review record for the audit worker.
type AnswerUseCase struct {
	engine    ports.SearchService
	generator ports.TextGenerator
	judge     *ResponseJudge
	cache     *MemoCache[domain.Answer]

	reviews ports.ReviewStore
	queue   ports.ReviewQueue

	maxRefinements int
}

func NewAnswerUseCase(
	engine ports.SearchService,
	generator ports.TextGenerator,
	judge *ResponseJudge,
	cache *MemoCache[domain.Answer],
	reviews ports.ReviewStore,
	queue ports.ReviewQueue,
	maxRefinements int,
) *AnswerUseCase {
	if maxRefinements < 0 {
		maxRefinements = 0
	}
	return &AnswerUseCase{
		engine:         engine,
		generator:      generator,
		judge:          judge,
		cache:          cache,
		reviews:        reviews,
		queue:          queue,
		maxRefinements: maxRefinements,
	}
}

const noMaterialAnswer = "I could not find relevant course material for this question. Try rephrasing it or narrowing it to a specific topic covered in the course."

func (uc *AnswerUseCase) Ask(ctx context.Context, query domain.Query) (*domain.Answer, error) {
	cacheKey := query.CacheKey()
	if cached, ok := uc.cache.Get(cacheKey); ok {
		cached.Metadata.ProcessingSteps.CacheHit = true
		return &cached, nil
	}

	result, err := uc.engine.Search(ctx, query)
	if err != nil || result == nil {
		// The engine degrades internally; reaching this means it could not
		// even produce its fallback shape.
		result = &domain.SearchResult{
			Query:  query.Text,
			Course: query.Course,
			Metadata: domain.SearchMetadata{
				Confidence:     0.5,
				SearchStrategy: domain.StrategySemantic,
			},
		}
	}

	answerText := uc.generateAnswer(ctx, query.Text, result.Results)
	eval := uc.judge.EvaluateResponse(ctx, query.Text, answerText, result.Results, query.Course)

	refinements := 0
	for attempt := 1; attempt <= uc.maxRefinements && !eval.PassesThreshold; attempt++ {
		improved := uc.judge.GenerateImprovedResponse(ctx, answerText, eval, query.Text, result.Results, query.Course)
		if improved == answerText {
			break
		}
		answerText = improved
		refinements++
		eval = uc.judge.EvaluateResponse(ctx, query.Text, answerText, result.Results, query.Course)
		slog.Info("answer_refined", "attempt", attempt, "overall", eval.Overall, "passes", eval.PassesThreshold)
	}

	answer := domain.Answer{
		Text:        answerText,
		Sources:     result.Results,
		Evaluation:  &eval,
		Metadata:    result.Metadata,
		Refinements: refinements,
	}
	answer.ReviewID = uc.recordReview(ctx, query, &answer)

	uc.cache.Set(cacheKey, answer)
	return &answer, nil
}

func (uc *AnswerUseCase) generateAnswer(ctx context.Context, question string, sources []domain.SearchResultItem) string {
	if len(sources) == 0 {
		return noMaterialAnswer
	}

	text, err := uc.generator.Complete(ctx, buildAnswerPrompt(question, sources), ports.GenerateOptions{
		Temperature: 0.4,
		MaxTokens:   1200,
	})
	if err != nil || text == "" {
		slog.Warn("answer_generation_fallback", "error", err)
		return noMaterialAnswer
	}
	return text
}

// recordReview persists the answered question for out-of-band re-judging and
// publishes the review id. Strictly best-effort: failures are logged and the
// answer flow continues.
func (uc *AnswerUseCase) recordReview(ctx context.Context, query domain.Query, answer *domain.Answer) string {
	if uc.reviews == nil {
		return ""
	}

	sourcesJSON, err := json.Marshal(answer.Sources)
	if err != nil {
		sourcesJSON = []byte("[]")
	}

	now := time.Now().UTC()
	review := domain.AnswerReview{
		ID:        uuid.NewString(),
		Question:  query.Text,
		Course:    query.Course,
		Answer:    answer.Text,
		Sources:   string(sourcesJSON),
		Strategy:  answer.Metadata.SearchStrategy,
		Status:    domain.ReviewPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.reviews.Create(ctx, &review); err != nil {
		slog.Warn("review_record_skipped", "error", err)
		return ""
	}

	if uc.queue != nil {
		if err := uc.queue.PublishReviewRequested(ctx, review.ID); err != nil {
			slog.Warn("review_publish_skipped", "review_id", review.ID, "error", err)
		}
	}
	return review.ID
}
