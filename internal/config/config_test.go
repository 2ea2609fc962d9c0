package config

import (
	"testing"
	"time"
)

func TestLoadIncludesPipelineDefaults(t *testing.T) {
	t.Setenv("CACHE_TTL", "")
	t.Setenv("CACHE_MAX_ENTRIES", "")
	t.Setenv("SEARCH_TOP_N", "")
	t.Setenv("HYDE_BOOST", "")
	t.Setenv("JUDGE_THRESHOLD", "")
	t.Setenv("EMBED_DIM", "")

	cfg := Load()
	if cfg.CacheTTL != 15*time.Minute {
		t.Fatalf("expected default cache ttl 15m, got %v", cfg.CacheTTL)
	}
	if cfg.CacheMaxEntries != 100 {
		t.Fatalf("expected default cache capacity 100, got %d", cfg.CacheMaxEntries)
	}
	if cfg.SearchTopN != 10 {
		t.Fatalf("expected default top n 10, got %d", cfg.SearchTopN)
	}
	if cfg.HydeBoost != 1.1 {
		t.Fatalf("expected default hyde boost 1.1, got %v", cfg.HydeBoost)
	}
	if cfg.JudgeThreshold != 0.70 {
		t.Fatalf("expected default judge threshold 0.70, got %v", cfg.JudgeThreshold)
	}
	if cfg.EmbedDim != 1536 {
		t.Fatalf("expected default embedding dim 1536, got %d", cfg.EmbedDim)
	}
}

func TestLoadParsesPipelineOverrides(t *testing.T) {
	t.Setenv("CACHE_TTL", "5m")
	t.Setenv("HYBRID_SEMANTIC_BOOST", "1.5")
	t.Setenv("JUDGE_MAX_REFINEMENTS", "3")
	t.Setenv("KEYWORD_LEXICAL_ENABLED", "false")

	cfg := Load()
	if cfg.CacheTTL != 5*time.Minute {
		t.Fatalf("expected cache ttl override 5m, got %v", cfg.CacheTTL)
	}
	if cfg.HybridSemanticBoost != 1.5 {
		t.Fatalf("expected semantic boost override 1.5, got %v", cfg.HybridSemanticBoost)
	}
	if cfg.JudgeMaxRefinements != 3 {
		t.Fatalf("expected refinement override 3, got %d", cfg.JudgeMaxRefinements)
	}
	if cfg.KeywordLexicalEnabled {
		t.Fatalf("expected lexical search disabled")
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("SEARCH_TOP_N", "not-a-number")
	t.Setenv("HYDE_BOOST", "??")
	t.Setenv("CACHE_TTL", "soon")

	cfg := Load()
	if cfg.SearchTopN != 10 {
		t.Fatalf("expected fallback top n 10, got %d", cfg.SearchTopN)
	}
	if cfg.HydeBoost != 1.1 {
		t.Fatalf("expected fallback hyde boost 1.1, got %v", cfg.HydeBoost)
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Fatalf("expected fallback cache ttl 15m, got %v", cfg.CacheTTL)
	}
}
