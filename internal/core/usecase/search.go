package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/flowmindlabs/flowmind-rag/internal/core/domain"
	"github.com/flowmindlabs/flowmind-rag/internal/core/ports"
)

// enhancedMinConfidence gates the multi-vector path: below it the engine falls
// back to plain hypothetical-document search.
const enhancedMinConfidence = 0.3

// SearchEngine orchestrates the retrieval pipeline: query rewriting and
// strategy translation run independently, one of three retrieval branches
// executes, and a best-effort re-ranking pass finishes every run. The engine
// always returns a result, never an error. A branch that executed cleanly but
// matched nothing returns an empty result with truthful metadata; only a
// stage failure, where no retrieval call completed at all, degrades to the
// plain direct-embedding fallback across all courses.
type SearchEngine struct {
	rewriter   *QueryRewriter
	translator *QueryDecisionTranslator
	hyde       *HydeEngine
	fusion     *MultiVectorFusion
	embedder   ports.Embedder
	searcher   ports.VectorSearcher
	cfg        SearchConfig
}

func NewSearchEngine(
	rewriter *QueryRewriter,
	translator *QueryDecisionTranslator,
	hyde *HydeEngine,
	fusion *MultiVectorFusion,
	embedder ports.Embedder,
	searcher ports.VectorSearcher,
	cfg SearchConfig,
) *SearchEngine {
	return &SearchEngine{
		rewriter:   rewriter,
		translator: translator,
		hyde:       hyde,
		fusion:     fusion,
		embedder:   embedder,
		searcher:   searcher,
		cfg:        cfg.normalize(),
	}
}

func (e *SearchEngine) Search(ctx context.Context, query domain.Query) (*domain.SearchResult, error) {
	start := time.Now()

	var (
		wg          sync.WaitGroup
		rewrite     domain.RewriteResult
		translation domain.TranslationResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		rewrite = e.rewriter.Rewrite(ctx, query.Text)
	}()
	go func() {
		defer wg.Done()
		translation = e.translator.Translate(query.Text)
	}()
	wg.Wait()

	course := query.Course
	if course == domain.CourseBoth {
		course = translation.Filter.Course
	}

	steps := domain.ProcessingSteps{
		Rewritten:  len(rewrite.Rewrites) > 0,
		Translated: true,
	}

	// The translator's stripped query variants join the rewrites in the
	// keyword branches; dedup keeps the fan-out bounded.
	keywordQueries := mergeQueryVariants(rewrite.AllQueries(), translation.Queries)

	var (
		items    []domain.SearchResultItem
		executed bool
	)
	switch translation.Strategy {
	case domain.StrategyKeyword:
		items, executed = e.keywordSearch(ctx, keywordQueries, course)
	case domain.StrategyHybrid:
		items, steps.HydeGenerated, executed = e.hybridSearch(ctx, rewrite, keywordQueries, course)
	default:
		items, steps.HydeGenerated, executed = e.semanticSearch(ctx, rewrite, course)
	}

	if !executed {
		return e.fallbackSearch(ctx, query, start), nil
	}

	items, steps.Reranked = e.hyde.ReRankResults(ctx, items, query.Text)

	return &domain.SearchResult{
		Query:   query.Text,
		Course:  course,
		Results: items,
		Metadata: domain.SearchMetadata{
			Confidence:      searchConfidence(rewrite.Confidence, len(items)),
			SearchStrategy:  translation.Strategy,
			ProcessingSteps: steps,
			TotalResults:    len(items),
			DurationMs:      float64(time.Since(start).Microseconds()) / 1000.0,
		},
	}, nil
}

// semanticSearch runs hypothetical-document retrieval for the original query
// and direct-embedding retrieval for every rewrite, fused into one ranked set.
// With the enhanced variant enabled and a confident hypothetical query, the
// multi-vector fusion search replaces the plain HyDE pass.
func (e *SearchEngine) semanticSearch(ctx context.Context, rewrite domain.RewriteResult, course domain.Course) ([]domain.SearchResultItem, bool, bool) {
	var (
		primaryItems  []domain.SearchResultItem
		hydeGenerated bool
		primaryOK     bool
		wg            sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if e.cfg.EnhancedHydeEnabled && e.fusion != nil {
			hq := e.fusion.BuildHypotheticalQuery(ctx, rewrite.Original, course)
			if len(hq.PrimaryEmbedding) > 0 && hq.Confidence >= enhancedMinConfidence {
				primaryItems, primaryOK = e.fusion.EnhancedSearch(ctx, hq, course)
				hydeGenerated = len(hq.HypotheticalAnswers) > 0
				return
			}
			slog.Debug("enhanced_hyde_degraded", "confidence", hq.Confidence)
		}
		primaryItems, hydeGenerated, primaryOK = e.hyde.HydeSearch(ctx, rewrite.Original, course, "")
	}()

	rewriteItems, rewritesOK := e.directSearchAll(ctx, rewrite.Rewrites, course)
	wg.Wait()

	acc := make(map[string]domain.SearchResultItem, len(primaryItems)+len(rewriteItems))
	mergeCandidates(acc, primaryItems, 1.0)
	mergeCandidates(acc, rewriteItems, 1.0)
	return rankCandidates(acc, e.cfg.TopN), hydeGenerated, primaryOK || rewritesOK
}

// keywordSearch embeds every query variant directly (no hypothetical
// document) and, when enabled, adds a sparse lexical pass per course.
func (e *SearchEngine) keywordSearch(ctx context.Context, queries []string, course domain.Course) ([]domain.SearchResultItem, bool) {
	items, executed := e.directSearchAll(ctx, queries, course)

	acc := make(map[string]domain.SearchResultItem, len(items))
	mergeCandidates(acc, items, 1.0)

	if e.cfg.KeywordLexicalEnabled && len(queries) > 0 {
		for _, scope := range course.Collections() {
			lexical, err := e.searcher.SearchLexical(ctx, scope, queries[0], e.cfg.TopN)
			if err != nil {
				slog.Warn("lexical_search_skipped", "course", scope, "error", err)
				continue
			}
			executed = true
			mergeCandidates(acc, lexical, 1.0)
		}
	}
	return rankCandidates(acc, e.cfg.TopN), executed
}

// hybridSearch runs both branches concurrently and merges them: semantic
// scores are boosted before merging, and an item present in both branches is
// boosted further over the max of its two branch scores.
func (e *SearchEngine) hybridSearch(ctx context.Context, rewrite domain.RewriteResult, keywordQueries []string, course domain.Course) ([]domain.SearchResultItem, bool, bool) {
	var (
		wg            sync.WaitGroup
		semanticItems []domain.SearchResultItem
		keywordItems  []domain.SearchResultItem
		hydeGenerated bool
		semanticOK    bool
		keywordOK     bool
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		semanticItems, hydeGenerated, semanticOK = e.semanticSearch(ctx, rewrite, course)
	}()
	go func() {
		defer wg.Done()
		keywordItems, keywordOK = e.keywordSearch(ctx, keywordQueries, course)
	}()
	wg.Wait()

	acc := make(map[string]domain.SearchResultItem, len(semanticItems)+len(keywordItems))
	inSemantic := make(map[string]struct{}, len(semanticItems))
	for _, item := range semanticItems {
		item.Score *= e.cfg.HybridSemanticBoost
		inSemantic[item.Key()] = struct{}{}
		acc[item.Key()] = item
	}
	for _, item := range keywordItems {
		key := item.Key()
		if current, overlap := acc[key]; overlap {
			if _, semantic := inSemantic[key]; semantic {
				score := current.Score
				if item.Score > score {
					score = item.Score
				}
				current.Score = score * e.cfg.HybridOverlapBoost
				acc[key] = current
				continue
			}
		}
		if current, ok := acc[key]; !ok || item.Score > current.Score {
			acc[key] = item
		}
	}

	return rankCandidates(acc, e.cfg.TopN), hydeGenerated, semanticOK || keywordOK
}

// directSearchAll fans out a direct-embedding search per query variant and
// collects every hit; failed embeddings skip their variant. The second return
// value reports whether any variant's search executed.
func (e *SearchEngine) directSearchAll(ctx context.Context, queries []string, course domain.Course) ([]domain.SearchResultItem, bool) {
	if len(queries) == 0 {
		return nil, false
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		executed bool
	)
	collected := make([]domain.SearchResultItem, 0, len(queries)*e.cfg.TopN)
	for _, q := range queries {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			vector := e.hyde.CreateEmbedding(ctx, q)
			items, ok := e.hyde.SearchTranscripts(ctx, vector, course, e.cfg.TopN)
			mu.Lock()
			executed = executed || ok
			collected = append(collected, items...)
			mu.Unlock()
		}(q)
	}
	wg.Wait()
	return collected, executed
}

// fallbackSearch is the last resort after a stage failure: a plain
// direct-embedding search across all courses with no rewriting, no
// translation and no hypothetical document.
func (e *SearchEngine) fallbackSearch(ctx context.Context, query domain.Query, start time.Time) *domain.SearchResult {
	vector := e.hyde.CreateEmbedding(ctx, query.Text)
	items, _ := e.hyde.SearchTranscripts(ctx, vector, domain.CourseBoth, e.cfg.FallbackLimit)

	acc := make(map[string]domain.SearchResultItem, len(items))
	mergeCandidates(acc, items, 1.0)
	ranked := rankCandidates(acc, e.cfg.FallbackLimit)

	slog.Warn("search_fallback", "query", query.Text, "results", len(ranked))
	return &domain.SearchResult{
		Query:   query.Text,
		Course:  query.Course,
		Results: ranked,
		Metadata: domain.SearchMetadata{
			Confidence:     e.cfg.FallbackConfidence,
			SearchStrategy: domain.StrategySemantic,
			ProcessingSteps: domain.ProcessingSteps{
				Rewritten:     false,
				Translated:    false,
				HydeGenerated: false,
				Reranked:      false,
			},
			TotalResults: len(ranked),
			DurationMs:   float64(time.Since(start).Microseconds()) / 1000.0,
			FallbackUsed: true,
		},
	}
}

// mergeQueryVariants concatenates query lists, dropping blanks and
// case-insensitive duplicates while preserving first-seen order.
func mergeQueryVariants(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, 4)
	for _, list := range lists {
		for _, q := range list {
			q = strings.TrimSpace(q)
			if q == "" {
				continue
			}
			key := strings.ToLower(q)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, q)
		}
	}
	return out
}

// searchConfidence blends rewrite confidence with retrieval density.
func searchConfidence(rewriteConfidence float64, resultCount int) float64 {
	return clamp01(0.5*rewriteConfidence + 0.5*capRatio(float64(resultCount), 5))
}
