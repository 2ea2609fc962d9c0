package usecase

import (
	"context"
	"testing"

	"github.com/flowmindlabs/flowmind-rag/internal/core/domain"
)

func storedReview() *domain.AnswerReview {
	return &domain.AnswerReview{
		ID:       "rev-1",
		Question: "what is a closure",
		Course:   domain.CourseNodeJS,
		Answer:   "a closure captures its lexical scope",
		Sources:  `[{"video_id":"vid-1","start_time":10,"text":"closures"}]`,
		Strategy: domain.StrategySemantic,
		Status:   domain.ReviewPending,
	}
}

func TestProcessByIDSavesEvaluation(t *testing.T) {
	gen := &fakeGenerator{respond: func(string) (string, error) {
		return passingEvalJSON, nil
	}}
	store := newFakeReviewStore()
	store.stored = storedReview()
	uc := NewReviewUseCase(store, NewResponseJudge(gen, 0.70))

	if err := uc.ProcessByID(context.Background(), "rev-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}

	eval, ok := store.saved["rev-1"]
	if !ok {
		t.Fatalf("expected evaluation saved")
	}
	if !eval.PassesThreshold || eval.Overall != 0.9 {
		t.Fatalf("unexpected saved evaluation: %+v", eval)
	}
}

func TestProcessByIDSavesFallbackVerdictOnJudgeFailure(t *testing.T) {
	store := newFakeReviewStore()
	store.stored = storedReview()
	uc := NewReviewUseCase(store, NewResponseJudge(&fakeGenerator{}, 0.70))

	if err := uc.ProcessByID(context.Background(), "rev-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	eval := store.saved["rev-1"]
	if !eval.FallbackVerdict || eval.PassesThreshold {
		t.Fatalf("expected fallback verdict persisted, got %+v", eval)
	}
}

func TestProcessByIDToleratesUnreadableSources(t *testing.T) {
	gen := &fakeGenerator{respond: func(string) (string, error) {
		return passingEvalJSON, nil
	}}
	store := newFakeReviewStore()
	review := storedReview()
	review.Sources = "not json"
	store.stored = review
	uc := NewReviewUseCase(store, NewResponseJudge(gen, 0.70))

	if err := uc.ProcessByID(context.Background(), "rev-1"); err != nil {
		t.Fatalf("ProcessByID() must tolerate broken sources, got %v", err)
	}
}

func TestProcessByIDMarksFailedWhenSaveFails(t *testing.T) {
	gen := &fakeGenerator{respond: func(string) (string, error) {
		return passingEvalJSON, nil
	}}
	store := newFakeReviewStore()
	store.stored = storedReview()
	store.saveErr = errModelDown
	uc := NewReviewUseCase(store, NewResponseJudge(gen, 0.70))

	if err := uc.ProcessByID(context.Background(), "rev-1"); err == nil {
		t.Fatalf("expected save failure to propagate")
	}
	if store.statuses["rev-1"] != domain.ReviewFailed {
		t.Fatalf("expected review marked failed, got %q", store.statuses["rev-1"])
	}
}

func TestProcessByIDPropagatesLoadFailure(t *testing.T) {
	store := newFakeReviewStore()
	store.getErr = domain.WrapError(domain.ErrNotFound, "get answer review", errModelDown)
	uc := NewReviewUseCase(store, NewResponseJudge(&fakeGenerator{}, 0.70))

	err := uc.ProcessByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error for missing review")
	}
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found kind preserved, got %v", err)
	}
}
