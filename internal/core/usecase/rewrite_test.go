package usecase

import (
	"context"
	"testing"
)

func TestRewriteParsesVariants(t *testing.T) {
	gen := &fakeGenerator{respond: func(string) (string, error) {
		return `{"rewrites":["how does the node event loop work","event loop phases explained"],"confidence":0.85}`, nil
	}}
	rewriter := NewQueryRewriter(gen)

	result := rewriter.Rewrite(context.Background(), "what is the event loop")
	if result.Original != "what is the event loop" {
		t.Fatalf("expected original preserved, got %q", result.Original)
	}
	if len(result.Rewrites) != 2 {
		t.Fatalf("expected 2 rewrites, got %d", len(result.Rewrites))
	}
	if result.Confidence != 0.85 {
		t.Fatalf("expected confidence 0.85, got %v", result.Confidence)
	}
	if got := result.AllQueries(); len(got) != 3 || got[0] != result.Original {
		t.Fatalf("expected original first in AllQueries, got %v", got)
	}
}

func TestRewriteCapsVariantsAndClampsConfidence(t *testing.T) {
	gen := &fakeGenerator{respond: func(string) (string, error) {
		return `{"rewrites":["a","b","c","d","e","f"],"confidence":3.5}`, nil
	}}
	rewriter := NewQueryRewriter(gen)

	result := rewriter.Rewrite(context.Background(), "q")
	if len(result.Rewrites) != 4 {
		t.Fatalf("expected rewrites capped at 4, got %d", len(result.Rewrites))
	}
	if result.Confidence != 1.0 {
		t.Fatalf("expected confidence clamped to 1.0, got %v", result.Confidence)
	}
}

func TestRewriteFallsBackOnModelFailure(t *testing.T) {
	rewriter := NewQueryRewriter(&fakeGenerator{})

	result := rewriter.Rewrite(context.Background(), "what is a closure")
	if result.Original != "what is a closure" || len(result.Rewrites) != 0 {
		t.Fatalf("expected original-only fallback, got %+v", result)
	}
	if result.Confidence != 0.5 {
		t.Fatalf("expected fallback confidence 0.5, got %v", result.Confidence)
	}
}

func TestRewriteFallsBackOnUnparseableOutput(t *testing.T) {
	gen := &fakeGenerator{respond: func(string) (string, error) {
		return "sure! here are some rewrites:", nil
	}}
	rewriter := NewQueryRewriter(gen)

	result := rewriter.Rewrite(context.Background(), "q")
	if len(result.Rewrites) != 0 || result.Confidence != 0.5 {
		t.Fatalf("expected fallback on parse failure, got %+v", result)
	}
}

func TestRewriteExtractsJSONFromProse(t *testing.T) {
	gen := &fakeGenerator{respond: func(string) (string, error) {
		return "Here you go:\n{\"rewrites\":[\" padded \"],\"confidence\":0.7}\nHope that helps.", nil
	}}
	rewriter := NewQueryRewriter(gen)

	result := rewriter.Rewrite(context.Background(), "q")
	if len(result.Rewrites) != 1 || result.Rewrites[0] != "padded" {
		t.Fatalf("expected trimmed rewrite from embedded JSON, got %+v", result.Rewrites)
	}
}
