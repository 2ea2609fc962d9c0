package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/flowmindlabs/flowmind-rag/internal/core/domain"
	"github.com/flowmindlabs/flowmind-rag/internal/core/ports"
)

// SearchConfig carries the tunable constants of the retrieval pipeline.
// The boost factors are empirically chosen; they are parameters, not invariants.
type SearchConfig struct {
	TopN                  int
	RerankMinResults      int
	FallbackLimit         int
	FallbackConfidence    float64
	HydeBoost             float64
	HybridSemanticBoost   float64
	HybridOverlapBoost    float64
	EmbedDim              int
	KeywordLexicalEnabled bool
	EnhancedHydeEnabled   bool
}

func (c SearchConfig) normalize() SearchConfig {
	out := c
	if out.TopN <= 0 {
		out.TopN = 10
	}
	if out.RerankMinResults <= 0 {
		out.RerankMinResults = 3
	}
	if out.FallbackLimit <= 0 {
		out.FallbackLimit = 8
	}
	if out.FallbackConfidence <= 0 {
		out.FallbackConfidence = 0.5
	}
	if out.HydeBoost <= 0 {
		out.HydeBoost = 1.1
	}
	if out.HybridSemanticBoost <= 0 {
		out.HybridSemanticBoost = 1.2
	}
	if out.HybridOverlapBoost <= 0 {
		out.HybridOverlapBoost = 1.3
	}
	if out.EmbedDim <= 0 {
		out.EmbedDim = 1536
	}
	return out
}

// HydeEngine implements hypothetical-document-embedding retrieval: it asks the
// generative model to write a plausible answer passage, embeds both the raw
// query and the passage, searches with both vectors and fuses the results.
type HydeEngine struct {
	generator ports.TextGenerator
	embedder  ports.Embedder
	searcher  ports.VectorSearcher
	cfg       SearchConfig
}

func NewHydeEngine(generator ports.TextGenerator, embedder ports.Embedder, searcher ports.VectorSearcher, cfg SearchConfig) *HydeEngine {
	return &HydeEngine{
		generator: generator,
		embedder:  embedder,
		searcher:  searcher,
		cfg:       cfg.normalize(),
	}
}

// GenerateHypotheticalDocument produces a 200-400 word transcript-styled
// passage answering the question. On any failure the original question is
// returned unchanged, degrading to plain-query embedding.
func (e *HydeEngine) GenerateHypotheticalDocument(ctx context.Context, question string, course domain.Course, conversationContext string) string {
	doc, err := e.generator.Complete(ctx, buildHypotheticalDocumentPrompt(question, course, conversationContext), ports.GenerateOptions{
		Temperature: 0.8,
		MaxTokens:   600,
	})
	if err != nil || strings.TrimSpace(doc) == "" {
		slog.Warn("hyde_generation_fallback", "error", err)
		return question
	}
	return strings.TrimSpace(doc)
}

// CreateEmbedding embeds text at the configured dimensionality. Failures and
// dimension mismatches yield an empty vector so the caller can skip the branch.
func (e *HydeEngine) CreateEmbedding(ctx context.Context, text string) []float32 {
	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		slog.Warn("embedding_skipped", "error", err)
		return nil
	}
	if len(vector) != e.cfg.EmbedDim {
		slog.Warn("embedding_skipped", "reason", "dimension_mismatch", "got", len(vector), "want", e.cfg.EmbedDim)
		return nil
	}
	return vector
}

// SearchTranscripts queries every collection implied by the course scope with
// one vector. Failures degrade to an empty list. The second return value
// reports whether at least one collection query actually completed; it stays
// false when the embedding is missing or every collection errored, which is
// the signal that separates "nothing matched" from "could not search".
func (e *HydeEngine) SearchTranscripts(ctx context.Context, embedding []float32, course domain.Course, limit int) ([]domain.SearchResultItem, bool) {
	if len(embedding) == 0 {
		return nil, false
	}

	executed := false
	out := make([]domain.SearchResultItem, 0, limit)
	for _, scope := range course.Collections() {
		items, err := e.searcher.Search(ctx, scope, embedding, limit)
		if err != nil {
			slog.Warn("transcript_search_skipped", "course", scope, "error", err)
			continue
		}
		executed = true
		out = append(out, items...)
	}
	return out, executed
}

// HydeSearch runs the direct-query and hypothetical-document searches, boosts
// HyDE-originated scores, deduplicates by passage identity keeping the higher
// score, and returns the top results sorted descending. The boolean returns
// report whether a hypothetical document was generated and whether any
// underlying transcript search executed.
func (e *HydeEngine) HydeSearch(ctx context.Context, question string, course domain.Course, conversationContext string) ([]domain.SearchResultItem, bool, bool) {
	hypoDoc := e.GenerateHypotheticalDocument(ctx, question, course, conversationContext)
	hydeGenerated := hypoDoc != question

	var (
		wg           sync.WaitGroup
		directItems  []domain.SearchResultItem
		hydeItems    []domain.SearchResultItem
		directOK     bool
		hydeBranchOK bool
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		directItems, directOK = e.SearchTranscripts(ctx, e.CreateEmbedding(ctx, question), course, e.cfg.TopN)
	}()

	if hydeGenerated {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hydeItems, hydeBranchOK = e.SearchTranscripts(ctx, e.CreateEmbedding(ctx, hypoDoc), course, e.cfg.TopN)
		}()
	}
	wg.Wait()

	acc := make(map[string]domain.SearchResultItem, len(directItems)+len(hydeItems))
	mergeCandidates(acc, directItems, 1.0)
	mergeCandidates(acc, hydeItems, e.cfg.HydeBoost)

	return rankCandidates(acc, e.cfg.TopN), hydeGenerated, directOK || hydeBranchOK
}

// ReRankResults asks the generative model to reorder candidates by relevance.
// Result sets of three or fewer items, and any call or parse failure, return
// the input unchanged. The second return value reports whether a re-ranking
// was applied.
func (e *HydeEngine) ReRankResults(ctx context.Context, results []domain.SearchResultItem, originalQuery string) ([]domain.SearchResultItem, bool) {
	if len(results) <= e.cfg.RerankMinResults {
		return results, false
	}

	raw, err := e.generator.Complete(ctx, buildRerankPrompt(originalQuery, results), ports.GenerateOptions{
		Temperature: 0.1,
		MaxTokens:   100,
	})
	if err != nil {
		slog.Warn("rerank_skipped", "error", err)
		return results, false
	}

	order, ok := parseRerankIndices(raw, len(results))
	if !ok {
		slog.Warn("rerank_skipped", "reason", "parse", "raw", truncate(raw, previewMaxChars))
		return results, false
	}

	reordered := make([]domain.SearchResultItem, 0, len(results))
	seen := make(map[int]struct{}, len(order))
	for _, idx := range order {
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		reordered = append(reordered, results[idx-1])
	}
	for i, item := range results {
		if _, used := seen[i+1]; !used {
			reordered = append(reordered, item)
		}
	}
	return reordered, true
}

// parseRerankIndices extracts a bracketed list of 1-based indices from model
// output. Any token outside [1,n] or non-numeric invalidates the whole parse.
func parseRerankIndices(raw string, n int) ([]int, bool) {
	start := strings.Index(raw, "[")
	end := strings.Index(raw, "]")
	if start < 0 || end <= start {
		return nil, false
	}

	tokens := strings.Split(raw[start+1:end], ",")
	out := make([]int, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		idx, err := strconv.Atoi(token)
		if err != nil || idx < 1 || idx > n {
			return nil, false
		}
		out = append(out, idx)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// mergeCandidates folds boosted items into the accumulator, keeping the higher
// score for duplicate (video id, start time) passages.
func mergeCandidates(acc map[string]domain.SearchResultItem, items []domain.SearchResultItem, boost float64) {
	for _, item := range items {
		item.Score *= boost
		key := item.Key()
		if current, ok := acc[key]; ok && current.Score >= item.Score {
			continue
		}
		acc[key] = item
	}
}

// rankCandidates orders accumulated candidates by score descending with a
// deterministic tie-break on passage identity, truncated to topN.
func rankCandidates(acc map[string]domain.SearchResultItem, topN int) []domain.SearchResultItem {
	out := make([]domain.SearchResultItem, 0, len(acc))
	for _, item := range acc {
		out = append(out, item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Key() < out[j].Key()
	})

	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}
