package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/flowmindlabs/flowmind-rag/internal/core/domain"
	"github.com/flowmindlabs/flowmind-rag/internal/core/ports"
)

// primaryAnswerWeights are the decreasing contributions of the hypothetical
// answers to the primary embedding, renormalized to however many answers the
// model actually produced.
var primaryAnswerWeights = []float64{0.4, 0.3, 0.2, 0.1}

// defaultWeightProfiles maps query type to the contribution of each embedding
// source (primary, query, technical, context). Each profile sums to 1.0.
var defaultWeightProfiles = map[domain.QueryType]domain.SearchWeights{
	domain.QueryTypeConcept:        {Primary: 0.50, Query: 0.25, Technical: 0.15, Context: 0.10},
	domain.QueryTypeImplementation: {Primary: 0.40, Query: 0.20, Technical: 0.30, Context: 0.10},
	domain.QueryTypeDebugging:      {Primary: 0.35, Query: 0.30, Technical: 0.25, Context: 0.10},
	domain.QueryTypeComparison:     {Primary: 0.45, Query: 0.25, Technical: 0.15, Context: 0.15},
	domain.QueryTypeExample:        {Primary: 0.40, Query: 0.25, Technical: 0.20, Context: 0.15},
}

// queryTypeContexts seed the query-type-specific contextual embedding.
var queryTypeContexts = map[domain.QueryType]string{
	domain.QueryTypeConcept:        "definition explanation theory fundamentals how it works under the hood",
	domain.QueryTypeImplementation: "code implementation syntax api usage step by step building",
	domain.QueryTypeDebugging:      "error exception stack trace troubleshooting fix common mistakes",
	domain.QueryTypeComparison:     "difference comparison versus trade-offs when to use alternatives",
	domain.QueryTypeExample:        "example demonstration walkthrough sample code practical exercise",
}

// MultiVectorFusion builds the enhanced hypothetical-query representation:
// several weighted embeddings fused into a single primary vector plus
// secondary vectors with per-query-type search weights.
type MultiVectorFusion struct {
	generator ports.TextGenerator
	embedder  ports.Embedder
	searcher  ports.VectorSearcher
	cfg       SearchConfig
	profiles  map[domain.QueryType]domain.SearchWeights
	cache     *MemoCache[domain.HypotheticalQuery]
}

func NewMultiVectorFusion(generator ports.TextGenerator, embedder ports.Embedder, searcher ports.VectorSearcher, cfg SearchConfig, profiles map[domain.QueryType]domain.SearchWeights, cacheEntries int) *MultiVectorFusion {
	if profiles == nil {
		profiles = defaultWeightProfiles
	}
	if cacheEntries <= 0 {
		cacheEntries = 200
	}
	return &MultiVectorFusion{
		generator: generator,
		embedder:  embedder,
		searcher:  searcher,
		cfg:       cfg.normalize(),
		profiles:  profiles,
		cache:     NewMemoCache[domain.HypotheticalQuery](0, cacheEntries),
	}
}

// LoadWeightProfiles reads per-query-type weight overrides from a YAML file.
// Missing file or unknown types fall back to the built-in table.
func LoadWeightProfiles(path string) map[domain.QueryType]domain.SearchWeights {
	out := make(map[domain.QueryType]domain.SearchWeights, len(defaultWeightProfiles))
	for queryType, weights := range defaultWeightProfiles {
		out[queryType] = weights
	}
	if strings.TrimSpace(path) == "" {
		return out
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("weight_profiles_default", "path", path, "error", err)
		return out
	}

	var overrides map[string]domain.SearchWeights
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		slog.Warn("weight_profiles_default", "path", path, "error", err)
		return out
	}

	for name, weights := range overrides {
		queryType := domain.QueryType(strings.ToLower(strings.TrimSpace(name)))
		if _, known := defaultWeightProfiles[queryType]; !known {
			slog.Warn("weight_profile_skipped", "query_type", name)
			continue
		}
		sum := weights.Primary + weights.Query + weights.Technical + weights.Context
		if sum < 0.99 || sum > 1.01 {
			slog.Warn("weight_profile_skipped", "query_type", name, "sum", sum)
			continue
		}
		out[queryType] = weights
	}
	return out
}

// BuildHypotheticalQuery produces the multi-vector representation for one
// question, caching by (query text, course). A generation failure degrades to
// a query-embedding-only representation with low confidence.
func (f *MultiVectorFusion) BuildHypotheticalQuery(ctx context.Context, question string, course domain.Course) domain.HypotheticalQuery {
	cacheKey := domain.NewQuery(question, course).CacheKey()
	if cached, ok := f.cache.Get(cacheKey); ok {
		return cached
	}

	hq := f.buildUncached(ctx, question, course)
	f.cache.Set(cacheKey, hq)
	return hq
}

func (f *MultiVectorFusion) buildUncached(ctx context.Context, question string, course domain.Course) domain.HypotheticalQuery {
	hq := domain.HypotheticalQuery{
		Original:  question,
		QueryType: domain.QueryTypeConcept,
	}

	raw, err := f.generator.Complete(ctx, buildHypotheticalQueryPrompt(question, course), ports.GenerateOptions{
		Temperature: 0.7,
		MaxTokens:   900,
		JSONMode:    true,
	})
	if err == nil {
		if parsed, parseErr := parseHypotheticalQuery(raw); parseErr == nil {
			hq.QueryType = parsed.QueryType
			hq.HypotheticalAnswers = parsed.HypotheticalAnswers
			hq.TechnicalContext = parsed.TechnicalContext
			hq.RelatedQuestions = parsed.RelatedQuestions
			hq.ExpectedTopics = parsed.ExpectedTopics
		} else {
			slog.Warn("hypothetical_query_degraded", "reason", "parse", "error", parseErr)
		}
	} else {
		slog.Warn("hypothetical_query_degraded", "reason", "generate", "error", err)
	}

	f.embedHypotheticalQuery(ctx, &hq)
	hq.Weights = f.profiles[hq.QueryType]
	hq.Confidence = hypotheticalQueryConfidence(hq)
	return hq
}

func (f *MultiVectorFusion) embedHypotheticalQuery(ctx context.Context, hq *domain.HypotheticalQuery) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		hq.QueryEmbedding = f.safeEmbed(ctx, hq.Original)
	}()

	if len(hq.HypotheticalAnswers) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hq.PrimaryEmbedding = f.buildPrimaryEmbedding(ctx, hq.HypotheticalAnswers)
		}()
	}
	if strings.TrimSpace(hq.TechnicalContext) != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hq.TechnicalEmbedding = f.safeEmbed(ctx, hq.TechnicalContext)
		}()
	}
	if contextText, ok := queryTypeContexts[hq.QueryType]; ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hq.ContextEmbedding = f.safeEmbed(ctx, contextText)
		}()
	}

	wg.Wait()
}

// buildPrimaryEmbedding averages the hypothetical-answer embeddings with
// decreasing weights renormalized to the answers actually available.
func (f *MultiVectorFusion) buildPrimaryEmbedding(ctx context.Context, answers []string) []float32 {
	if len(answers) > len(primaryAnswerWeights) {
		answers = answers[:len(primaryAnswerWeights)]
	}

	vectors, err := f.embedder.Embed(ctx, answers)
	if err != nil {
		slog.Warn("primary_embedding_skipped", "error", err)
		return nil
	}

	weights := make([]float64, 0, len(vectors))
	var sum float64
	for i, vector := range vectors {
		if len(vector) != f.cfg.EmbedDim {
			weights = append(weights, 0)
			continue
		}
		weights = append(weights, primaryAnswerWeights[i])
		sum += primaryAnswerWeights[i]
	}
	if sum == 0 {
		return nil
	}

	primary := make([]float32, f.cfg.EmbedDim)
	for i, vector := range vectors {
		if weights[i] == 0 {
			continue
		}
		w := float32(weights[i] / sum)
		for d, v := range vector {
			primary[d] += w * v
		}
	}
	return primary
}

func (f *MultiVectorFusion) safeEmbed(ctx context.Context, text string) []float32 {
	vector, err := f.embedder.EmbedQuery(ctx, text)
	if err != nil || len(vector) != f.cfg.EmbedDim {
		return nil
	}
	return vector
}

// EnhancedSearch retrieves with every available embedding source and fuses
// scores by the query-type weight profile: an item's final score is the sum of
// weight x score over the sources that retrieved it. The second return value
// reports whether any source query completed.
func (f *MultiVectorFusion) EnhancedSearch(ctx context.Context, hq domain.HypotheticalQuery, course domain.Course) ([]domain.SearchResultItem, bool) {
	type weightedVector struct {
		vector []float32
		weight float64
	}
	sources := []weightedVector{
		{hq.PrimaryEmbedding, hq.Weights.Primary},
		{hq.QueryEmbedding, hq.Weights.Query},
		{hq.TechnicalEmbedding, hq.Weights.Technical},
		{hq.ContextEmbedding, hq.Weights.Context},
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		executed bool
		acc      = make(map[string]domain.SearchResultItem)
	)
	for _, source := range sources {
		if len(source.vector) == 0 || source.weight <= 0 {
			continue
		}
		wg.Add(1)
		go func(source weightedVector) {
			defer wg.Done()
			for _, scope := range course.Collections() {
				items, err := f.searcher.Search(ctx, scope, source.vector, f.cfg.TopN)
				if err != nil {
					slog.Warn("enhanced_search_branch_skipped", "course", scope, "error", err)
					continue
				}
				mu.Lock()
				executed = true
				for _, item := range items {
					key := item.Key()
					current, ok := acc[key]
					if !ok {
						current = item
						current.Score = 0
					}
					current.Score += source.weight * item.Score
					acc[key] = current
				}
				mu.Unlock()
			}
		}(source)
	}
	wg.Wait()

	return rankCandidates(acc, f.cfg.TopN), executed
}

// hypotheticalQueryConfidence is a bounded weighted sum over the richness of
// the generated representation: each term is capped individually before
// summing and the total is clamped to [0,1].
func hypotheticalQueryConfidence(hq domain.HypotheticalQuery) float64 {
	answerTerm := capRatio(float64(len(hq.HypotheticalAnswers)), 3)
	technicalTerm := capRatio(float64(len(hq.TechnicalContext)), 200)
	topicTerm := capRatio(float64(len(hq.ExpectedTopics)), 5)
	relatedTerm := capRatio(float64(len(hq.RelatedQuestions)), 3)

	return clamp01(0.35*answerTerm + 0.25*technicalTerm + 0.20*topicTerm + 0.20*relatedTerm)
}

func capRatio(value, limit float64) float64 {
	if value >= limit {
		return 1
	}
	if value <= 0 {
		return 0
	}
	return value / limit
}

func parseHypotheticalQuery(raw string) (domain.HypotheticalQuery, error) {
	var payload struct {
		QueryType           string   `json:"query_type"`
		HypotheticalAnswers []string `json:"hypothetical_answers"`
		TechnicalContext    string   `json:"technical_context"`
		RelatedQuestions    []string `json:"related_questions"`
		ExpectedTopics      []string `json:"expected_topics"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return domain.HypotheticalQuery{}, domain.WrapError(domain.ErrModelOutput, "parse hypothetical query", err)
	}

	queryType := domain.QueryType(strings.ToLower(strings.TrimSpace(payload.QueryType)))
	if _, known := defaultWeightProfiles[queryType]; !known {
		queryType = domain.QueryTypeConcept
	}

	return domain.HypotheticalQuery{
		QueryType:           queryType,
		HypotheticalAnswers: compactStrings(payload.HypotheticalAnswers),
		TechnicalContext:    strings.TrimSpace(payload.TechnicalContext),
		RelatedQuestions:    compactStrings(payload.RelatedQuestions),
		ExpectedTopics:      compactStrings(payload.ExpectedTopics),
	}, nil
}

func compactStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
