package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/flowmindlabs/flowmind-rag/internal/core/domain"
	"github.com/flowmindlabs/flowmind-rag/internal/core/ports"
)

const (
	rewriteMaxVariants       = 4
	rewriteFallbackConfident = 0.5
)

// QueryRewriter expands one user question into semantically equivalent
// reformulations. It never fails: any call or parse error degrades to the
// original query with confidence 0.5.
type QueryRewriter struct {
	generator ports.TextGenerator
}

func NewQueryRewriter(generator ports.TextGenerator) *QueryRewriter {
	return &QueryRewriter{generator: generator}
}

func (r *QueryRewriter) Rewrite(ctx context.Context, question string) domain.RewriteResult {
	fallback := domain.RewriteResult{
		Original:   question,
		Rewrites:   nil,
		Confidence: rewriteFallbackConfident,
	}

	raw, err := r.generator.Complete(ctx, buildRewritePrompt(question), ports.GenerateOptions{
		Temperature: 0.7,
		MaxTokens:   400,
		JSONMode:    true,
	})
	if err != nil {
		slog.Warn("query_rewrite_fallback", "reason", "generate", "error", err)
		return fallback
	}

	parsed, err := parseRewriteResponse(raw)
	if err != nil {
		slog.Warn("query_rewrite_fallback", "reason", "parse", "error", err)
		return fallback
	}

	parsed.Original = question
	return parsed
}

func parseRewriteResponse(raw string) (domain.RewriteResult, error) {
	var payload struct {
		Rewrites   []string `json:"rewrites"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return domain.RewriteResult{}, domain.WrapError(domain.ErrModelOutput, "parse rewrite", err)
	}

	rewrites := make([]string, 0, len(payload.Rewrites))
	for _, rewrite := range payload.Rewrites {
		rewrite = strings.TrimSpace(rewrite)
		if rewrite == "" {
			continue
		}
		rewrites = append(rewrites, rewrite)
		if len(rewrites) == rewriteMaxVariants {
			break
		}
	}

	confidence := rewriteFallbackConfident
	if payload.Confidence != nil {
		confidence = clamp01(*payload.Confidence)
	}

	return domain.RewriteResult{Rewrites: rewrites, Confidence: confidence}, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
