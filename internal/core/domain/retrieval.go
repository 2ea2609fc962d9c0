package domain

import "fmt"

// SearchResultItem is one retrieved transcript passage. Identity for
// deduplication is the (VideoID, StartTime) pair: two items with the same
// pair are the same underlying passage regardless of which retrieval branch
// produced them.
type SearchResultItem struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	StartTime   float64  `json:"start_time"`
	EndTime     float64  `json:"end_time"`
	VideoID     string   `json:"video_id"`
	CourseID    string   `json:"course_id"`
	SectionID   string   `json:"section_id"`
	SectionName string   `json:"section_name"`
	Topics      []string `json:"topics"`
	Score       float64  `json:"score"`
}

// Key returns the dedup identity of the underlying passage.
func (s SearchResultItem) Key() string {
	return fmt.Sprintf("%s:%.3f", s.VideoID, s.StartTime)
}

// Timestamp renders the start offset as a mm:ss (or h:mm:ss) display string.
func (s SearchResultItem) Timestamp() string {
	total := int(s.StartTime)
	if total < 0 {
		total = 0
	}
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// ProcessingSteps records which pipeline stages actually ran for one search.
type ProcessingSteps struct {
	Rewritten     bool `json:"rewritten"`
	Translated    bool `json:"translated"`
	HydeGenerated bool `json:"hyde_generated"`
	Reranked      bool `json:"reranked"`
	CacheHit      bool `json:"cache_hit"`
}

// SearchMetadata describes how a result set was produced. FallbackUsed marks
// results from the degraded direct-embedding path after a stage failure; an
// empty result set from a cleanly executed strategy does not set it.
type SearchMetadata struct {
	Confidence      float64         `json:"confidence"`
	SearchStrategy  SearchStrategy  `json:"search_strategy"`
	ProcessingSteps ProcessingSteps `json:"processing_steps"`
	TotalResults    int             `json:"total_results"`
	DurationMs      float64         `json:"duration_ms"`
	FallbackUsed    bool            `json:"fallback_used"`
}

// SearchResult is the ordered, deduplicated output of one orchestrated search.
type SearchResult struct {
	Query    string             `json:"query"`
	Course   Course             `json:"course"`
	Results  []SearchResultItem `json:"results"`
	Metadata SearchMetadata     `json:"metadata"`
}

// Answer is the user-facing output of the full ask flow. Refinements counts
// the improvement iterations the judge loop actually consumed.
type Answer struct {
	ReviewID    string             `json:"review_id,omitempty"`
	Text        string             `json:"text"`
	Sources     []SearchResultItem `json:"sources"`
	Evaluation  *Evaluation        `json:"evaluation,omitempty"`
	Metadata    SearchMetadata     `json:"metadata"`
	Refinements int                `json:"refinements"`
}

// HypotheticalQuery is the enhanced multi-vector representation of a question:
// one primary embedding plus weighted secondary embeddings. Ephemeral; built
// and consumed within one pipeline invocation (aside from the bounded cache).
type HypotheticalQuery struct {
	Original            string
	QueryType           QueryType
	HypotheticalAnswers []string
	TechnicalContext    string
	RelatedQuestions    []string
	ExpectedTopics      []string

	PrimaryEmbedding   []float32
	QueryEmbedding     []float32
	TechnicalEmbedding []float32
	ContextEmbedding   []float32

	Weights    SearchWeights
	Confidence float64
}

// SearchWeights governs how much each embedding source contributes to final
// scoring. The four weights sum to 1.0.
type SearchWeights struct {
	Primary   float64 `yaml:"primary"`
	Query     float64 `yaml:"query"`
	Technical float64 `yaml:"technical"`
	Context   float64 `yaml:"context"`
}
