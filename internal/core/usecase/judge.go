package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/flowmindlabs/flowmind-rag/internal/core/domain"
	"github.com/flowmindlabs/flowmind-rag/internal/core/ports"
)

const (
	judgeFallbackScore      = 0.6
	judgeFallbackConfidence = 0.3
)

// ResponseJudge scores generated answers against a five-dimension rubric and
// drives a bounded improvement loop. Every external call degrades to a
// documented fallback; nothing here can leave the caller without a result.
type ResponseJudge struct {
	generator ports.TextGenerator
	threshold float64
}

func NewResponseJudge(generator ports.TextGenerator, threshold float64) *ResponseJudge {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.70
	}
	return &ResponseJudge{generator: generator, threshold: threshold}
}

func (j *ResponseJudge) Threshold() float64 {
	return j.threshold
}

// EvaluateResponse judges one answer. A call or parse failure returns the
// neutral fallback verdict: every dimension 0.6, low confidence, not passing,
// so the answer is conservatively flagged for review.
func (j *ResponseJudge) EvaluateResponse(ctx context.Context, question, response string, sources []domain.SearchResultItem, course domain.Course) domain.Evaluation {
	raw, err := j.generator.Complete(ctx, buildEvaluationPrompt(question, response, sources, course), ports.GenerateOptions{
		Temperature: 0.2,
		MaxTokens:   1000,
		JSONMode:    true,
	})
	if err != nil {
		slog.Warn("evaluation_fallback", "reason", "generate", "error", err)
		return j.fallbackEvaluation()
	}

	eval, err := j.parseEvaluation(raw)
	if err != nil {
		slog.Warn("evaluation_fallback", "reason", "parse", "error", err)
		return j.fallbackEvaluation()
	}
	return eval
}

// GenerateImprovedResponse rewrites a failing answer using the judge's
// feedback. A passing evaluation returns the original unchanged, as does any
// model failure or empty rewrite.
func (j *ResponseJudge) GenerateImprovedResponse(ctx context.Context, original string, eval domain.Evaluation, question string, sources []domain.SearchResultItem, course domain.Course) string {
	if eval.PassesThreshold {
		return original
	}

	improved, err := j.generator.Complete(ctx, buildImprovementPrompt(original, eval, question, sources, course), ports.GenerateOptions{
		Temperature: 0.5,
		MaxTokens:   1200,
	})
	if err != nil {
		slog.Warn("improvement_skipped", "error", err)
		return original
	}
	improved = strings.TrimSpace(improved)
	if improved == "" {
		return original
	}
	return improved
}

// CompareResponses judges two candidate answers pairwise. Failures return a
// low-confidence tie.
func (j *ResponseJudge) CompareResponses(ctx context.Context, question, responseA, responseB string, course domain.Course) domain.ResponseComparison {
	fallback := domain.ResponseComparison{
		Winner:     domain.WinnerTie,
		Confidence: judgeFallbackConfidence,
		Reasoning:  "comparison unavailable",
	}

	raw, err := j.generator.Complete(ctx, buildComparisonPrompt(question, responseA, responseB, course), ports.GenerateOptions{
		Temperature: 0.2,
		MaxTokens:   600,
		JSONMode:    true,
	})
	if err != nil {
		slog.Warn("comparison_fallback", "reason", "generate", "error", err)
		return fallback
	}

	var payload struct {
		Winner     string   `json:"winner"`
		Confidence *float64 `json:"confidence"`
		Reasoning  string   `json:"reasoning"`
		ScoreA     *float64 `json:"score_a"`
		ScoreB     *float64 `json:"score_b"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		slog.Warn("comparison_fallback", "reason", "parse", "error", err)
		return fallback
	}

	winner := domain.ComparisonWinner(strings.ToLower(strings.TrimSpace(payload.Winner)))
	switch winner {
	case domain.WinnerResponseA, domain.WinnerResponseB, domain.WinnerTie:
	default:
		winner = domain.WinnerTie
	}

	out := domain.ResponseComparison{
		Winner:     winner,
		Confidence: judgeFallbackConfidence,
		Reasoning:  strings.TrimSpace(payload.Reasoning),
	}
	if payload.Confidence != nil {
		out.Confidence = clamp01(*payload.Confidence)
	}
	if payload.ScoreA != nil {
		out.ScoreA = clamp01(*payload.ScoreA)
	}
	if payload.ScoreB != nil {
		out.ScoreB = clamp01(*payload.ScoreB)
	}
	return out
}

// BatchEvaluateItem pairs one question/response for batch judging.
type BatchEvaluateItem struct {
	Question string
	Response string
	Sources  []domain.SearchResultItem
	Course   domain.Course
}

// BatchEvaluate fires all evaluations concurrently; each element falls back
// independently instead of aborting the batch.
func (j *ResponseJudge) BatchEvaluate(ctx context.Context, items []BatchEvaluateItem) []domain.Evaluation {
	out := make([]domain.Evaluation, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item BatchEvaluateItem) {
			defer wg.Done()
			out[i] = j.EvaluateResponse(ctx, item.Question, item.Response, item.Sources, item.Course)
		}(i, item)
	}
	wg.Wait()
	return out
}

// parseEvaluation validates the judge's JSON strictly: every score is clamped
// into [0,1] with a typed default, and a missing aggregate is replaced by the
// mean of the five dimensions.
func (j *ResponseJudge) parseEvaluation(raw string) (domain.Evaluation, error) {
	var payload struct {
		Accuracy           *float64 `json:"accuracy"`
		Relevance          *float64 `json:"relevance"`
		Completeness       *float64 `json:"completeness"`
		Clarity            *float64 `json:"clarity"`
		Helpfulness        *float64 `json:"helpfulness"`
		Overall            *float64 `json:"overall"`
		Strengths          []string `json:"strengths"`
		Weaknesses         []string `json:"weaknesses"`
		Improvements       []string `json:"improvements"`
		MissingInformation []string `json:"missing_information"`
		Confidence         *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return domain.Evaluation{}, domain.WrapError(domain.ErrModelOutput, "parse evaluation", err)
	}

	score := func(v *float64) float64 {
		if v == nil {
			return judgeFallbackScore
		}
		return clamp01(*v)
	}

	eval := domain.Evaluation{
		Accuracy:           score(payload.Accuracy),
		Relevance:          score(payload.Relevance),
		Completeness:       score(payload.Completeness),
		Clarity:            score(payload.Clarity),
		Helpfulness:        score(payload.Helpfulness),
		Strengths:          compactStrings(payload.Strengths),
		Weaknesses:         compactStrings(payload.Weaknesses),
		Improvements:       compactStrings(payload.Improvements),
		MissingInformation: compactStrings(payload.MissingInformation),
		Confidence:         judgeFallbackConfidence,
	}
	if payload.Confidence != nil {
		eval.Confidence = clamp01(*payload.Confidence)
	}
	if payload.Overall != nil {
		eval.Overall = clamp01(*payload.Overall)
	} else {
		eval.Overall = eval.DimensionMean()
	}
	eval.PassesThreshold = eval.Overall >= j.threshold
	return eval, nil
}

func (j *ResponseJudge) fallbackEvaluation() domain.Evaluation {
	return domain.Evaluation{
		Accuracy:        judgeFallbackScore,
		Relevance:       judgeFallbackScore,
		Completeness:    judgeFallbackScore,
		Clarity:         judgeFallbackScore,
		Helpfulness:     judgeFallbackScore,
		Overall:         judgeFallbackScore,
		Confidence:      judgeFallbackConfidence,
		PassesThreshold: false,
		FallbackVerdict: true,
	}
}
