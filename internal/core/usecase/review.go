package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/flowmindlabs/flowmind-rag/internal/core/domain"
	"github.com/flowmindlabs/flowmind-rag/internal/core/ports"
)

// ReviewUseCase re-judges persisted answers out-of-band. The inline verdict
// from the ask flow is produced under interactive latency pressure; the worker
// runs a second evaluation pass and stores it for the moderation surface.
type ReviewUseCase struct {
	reviews ports.ReviewStore
	judge   *ResponseJudge
}

func NewReviewUseCase(reviews ports.ReviewStore, judge *ResponseJudge) *ReviewUseCase {
	return &ReviewUseCase{reviews: reviews, judge: judge}
}

func (uc *ReviewUseCase) ProcessByID(ctx context.Context, reviewID string) error {
	review, err := uc.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return fmt.Errorf("load review: %w", err)
	}

	var sources []domain.SearchResultItem
	if err := json.Unmarshal([]byte(review.Sources), &sources); err != nil {
		slog.Warn("review_sources_unreadable", "review_id", reviewID, "error", err)
		sources = nil
	}

	eval := uc.judge.EvaluateResponse(ctx, review.Question, review.Answer, sources, review.Course)
	if err := uc.reviews.SaveEvaluation(ctx, reviewID, eval); err != nil {
		if statusErr := uc.reviews.UpdateStatus(ctx, reviewID, domain.ReviewFailed, err.Error()); statusErr != nil {
			slog.Error("review_status_update_failed", "review_id", reviewID, "error", statusErr)
		}
		return fmt.Errorf("save evaluation: %w", err)
	}

	slog.Info("review_completed",
		"review_id", reviewID,
		"overall", eval.Overall,
		"passes", eval.PassesThreshold,
		"fallback_verdict", eval.FallbackVerdict,
	)
	return nil
}
