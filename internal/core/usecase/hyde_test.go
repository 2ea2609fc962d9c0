package usecase

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/flowmindlabs/flowmind-rag/internal/core/domain"
)

func testSearchConfig() SearchConfig {
	return SearchConfig{
		TopN:     10,
		EmbedDim: 2,
	}
}

func item(videoID string, start, score float64) domain.SearchResultItem {
	return domain.SearchResultItem{VideoID: videoID, StartTime: start, Score: score}
}

func TestHydeSearchBoostsHypotheticalHits(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "video transcript that answers") {
			return "an instructor-style passage about the event loop", nil
		}
		return "", errModelDown
	}}
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"what is the event loop":                           {1, 0},
			"an instructor-style passage about the event loop": {2, 0},
		},
	}
	searcher := &fakeSearcher{byVector: map[float32][]domain.SearchResultItem{
		1: {item("vid-a", 10, 0.95), item("vid-b", 20, 0.5)},
		2: {item("vid-a", 10, 0.91), item("vid-c", 30, 0.7)},
	}}
	engine := NewHydeEngine(gen, embedder, searcher, testSearchConfig())

	results, hydeGenerated, executed := engine.HydeSearch(context.Background(), "what is the event loop", domain.CourseNodeJS, "")
	if !hydeGenerated {
		t.Fatalf("expected hyde document to be generated")
	}
	if !executed {
		t.Fatalf("expected transcript searches to execute")
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 deduplicated results, got %d", len(results))
	}

	// vid-a appears in both branches; the boosted hyde score 0.91*1.1 wins
	// over the direct 0.95.
	if results[0].VideoID != "vid-a" {
		t.Fatalf("expected vid-a ranked first, got %s", results[0].VideoID)
	}
	if math.Abs(results[0].Score-0.91*1.1) > 1e-9 {
		t.Fatalf("expected boosted hyde score, got %v", results[0].Score)
	}
}

func TestHydeSearchFallsBackToQuestionOnModelFailure(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{"q": {1, 0}}}
	searcher := &fakeSearcher{byVector: map[float32][]domain.SearchResultItem{
		1: {item("vid-a", 10, 0.8)},
	}}
	engine := NewHydeEngine(&fakeGenerator{}, embedder, searcher, testSearchConfig())

	results, hydeGenerated, _ := engine.HydeSearch(context.Background(), "q", domain.CourseNodeJS, "")
	if hydeGenerated {
		t.Fatalf("expected no hyde document on model failure")
	}
	if len(results) != 1 || results[0].Score != 0.8 {
		t.Fatalf("expected unboosted direct result, got %+v", results)
	}
}

func TestCreateEmbeddingRejectsDimensionMismatch(t *testing.T) {
	embedder := &fakeEmbedder{defaultVec: []float32{1, 0, 0}}
	engine := NewHydeEngine(&fakeGenerator{}, embedder, &fakeSearcher{}, testSearchConfig())

	if got := engine.CreateEmbedding(context.Background(), "q"); got != nil {
		t.Fatalf("expected nil for wrong-dimension vector, got %v", got)
	}
}

func TestReRankSkipsSmallResultSets(t *testing.T) {
	gen := &fakeGenerator{}
	engine := NewHydeEngine(gen, &fakeEmbedder{}, &fakeSearcher{}, testSearchConfig())

	input := []domain.SearchResultItem{item("a", 1, 0.9), item("b", 2, 0.8), item("c", 3, 0.7)}
	results, reranked := engine.ReRankResults(context.Background(), input, "q")
	if reranked {
		t.Fatalf("expected no rerank for 3 results")
	}
	if len(results) != 3 || gen.callCount() != 0 {
		t.Fatalf("expected input unchanged without a model call")
	}
}

func TestReRankReordersAndAppendsUnmentioned(t *testing.T) {
	gen := &fakeGenerator{respond: func(string) (string, error) {
		return "Ranking: [3,1]", nil
	}}
	engine := NewHydeEngine(gen, &fakeEmbedder{}, &fakeSearcher{}, testSearchConfig())

	input := []domain.SearchResultItem{
		item("a", 1, 0.9), item("b", 2, 0.8), item("c", 3, 0.7), item("d", 4, 0.6),
	}
	results, reranked := engine.ReRankResults(context.Background(), input, "q")
	if !reranked {
		t.Fatalf("expected rerank to apply")
	}
	got := []string{results[0].VideoID, results[1].VideoID, results[2].VideoID, results[3].VideoID}
	want := []string{"c", "a", "b", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestReRankKeepsOrderOnInvalidIndices(t *testing.T) {
	gen := &fakeGenerator{respond: func(string) (string, error) {
		return "[1,9]", nil
	}}
	engine := NewHydeEngine(gen, &fakeEmbedder{}, &fakeSearcher{}, testSearchConfig())

	input := []domain.SearchResultItem{
		item("a", 1, 0.9), item("b", 2, 0.8), item("c", 3, 0.7), item("d", 4, 0.6),
	}
	results, reranked := engine.ReRankResults(context.Background(), input, "q")
	if reranked {
		t.Fatalf("expected rerank rejected for out-of-range index")
	}
	if results[0].VideoID != "a" || results[3].VideoID != "d" {
		t.Fatalf("expected original order preserved, got %+v", results)
	}
}

func TestParseRerankIndices(t *testing.T) {
	tests := []struct {
		raw  string
		n    int
		want []int
		ok   bool
	}{
		{"[3,1,2]", 3, []int{3, 1, 2}, true},
		{"The best order is [2, 1].", 2, []int{2, 1}, true},
		{"[0,1]", 2, nil, false},
		{"[a,b]", 2, nil, false},
		{"no brackets", 2, nil, false},
		{"[]", 2, nil, false},
	}
	for _, tt := range tests {
		got, ok := parseRerankIndices(tt.raw, tt.n)
		if ok != tt.ok {
			t.Errorf("parseRerankIndices(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("parseRerankIndices(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestRankCandidatesTruncatesAndBreaksTies(t *testing.T) {
	acc := map[string]domain.SearchResultItem{}
	mergeCandidates(acc, []domain.SearchResultItem{
		item("b", 1, 0.5), item("a", 1, 0.5), item("c", 1, 0.9),
	}, 1.0)

	ranked := rankCandidates(acc, 2)
	if len(ranked) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(ranked))
	}
	if ranked[0].VideoID != "c" || ranked[1].VideoID != "a" {
		t.Fatalf("expected score order with key tie-break, got %+v", ranked)
	}
}

func TestMergeCandidatesKeepsHigherScore(t *testing.T) {
	acc := map[string]domain.SearchResultItem{}
	mergeCandidates(acc, []domain.SearchResultItem{item("a", 1, 0.9)}, 1.0)
	mergeCandidates(acc, []domain.SearchResultItem{item("a", 1, 0.5)}, 1.0)

	if len(acc) != 1 {
		t.Fatalf("expected single entry, got %d", len(acc))
	}
	for _, v := range acc {
		if v.Score != 0.9 {
			t.Fatalf("expected higher score kept, got %v", v.Score)
		}
	}
}
