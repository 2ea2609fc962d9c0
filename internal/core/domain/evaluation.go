package domain

import "time"

// Evaluation is the judge's verdict on one generated answer. All sub-scores
// lie in [0,1]; Overall is the model-supplied aggregate or the arithmetic
// mean of the five dimensions when the model omits it.
type Evaluation struct {
	Accuracy     float64 `json:"accuracy"`
	Relevance    float64 `json:"relevance"`
	Completeness float64 `json:"completeness"`
	Clarity      float64 `json:"clarity"`
	Helpfulness  float64 `json:"helpfulness"`
	Overall      float64 `json:"overall"`

	Strengths          []string `json:"strengths"`
	Weaknesses         []string `json:"weaknesses"`
	Improvements       []string `json:"improvements"`
	MissingInformation []string `json:"missing_information"`

	Confidence      float64 `json:"confidence"`
	PassesThreshold bool    `json:"passes_threshold"`
	FallbackVerdict bool    `json:"fallback_verdict"`
}

// DimensionMean returns the arithmetic mean of the five sub-scores.
func (e Evaluation) DimensionMean() float64 {
	return (e.Accuracy + e.Relevance + e.Completeness + e.Clarity + e.Helpfulness) / 5.0
}

type ComparisonWinner string

const (
	WinnerResponseA ComparisonWinner = "response_a"
	WinnerResponseB ComparisonWinner = "response_b"
	WinnerTie       ComparisonWinner = "tie"
)

// ResponseComparison is a pairwise judgment between two candidate answers.
type ResponseComparison struct {
	Winner     ComparisonWinner `json:"winner"`
	Confidence float64          `json:"confidence"`
	Reasoning  string           `json:"reasoning"`
	ScoreA     float64          `json:"score_a"`
	ScoreB     float64          `json:"score_b"`
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewReviewed ReviewStatus = "reviewed"
	ReviewFailed   ReviewStatus = "failed"
)

// AnswerReview is the persisted audit record of one answered question,
// re-judged out-of-band by the review worker.
type AnswerReview struct {
	ID       string         `json:"id"`
	Question string         `json:"question"`
	Course   Course         `json:"course"`
	Answer   string         `json:"answer"`
	Sources  string         `json:"sources"`
	Strategy SearchStrategy `json:"strategy"`

	Evaluation *Evaluation  `json:"evaluation,omitempty"`
	Status     ReviewStatus `json:"status"`
	ErrMessage string       `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
