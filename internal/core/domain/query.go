package domain

import "strings"

// Course is the subject-matter partition that restricts which vector
// collections are searched.
type Course string

const (
	CourseNodeJS Course = "nodejs"
	CoursePython Course = "python"
	CourseBoth   Course = "both"
)

// ParseCourse normalizes raw course input, defaulting to CourseBoth.
func ParseCourse(raw string) Course {
	switch Course(strings.ToLower(strings.TrimSpace(raw))) {
	case CourseNodeJS:
		return CourseNodeJS
	case CoursePython:
		return CoursePython
	default:
		return CourseBoth
	}
}

// Collections expands a course scope into the concrete per-course scopes to search.
func (c Course) Collections() []Course {
	if c == CourseBoth {
		return []Course{CourseNodeJS, CoursePython}
	}
	return []Course{c}
}

type SearchStrategy string

const (
	StrategySemantic SearchStrategy = "semantic"
	StrategyKeyword  SearchStrategy = "keyword"
	StrategyHybrid   SearchStrategy = "hybrid"
)

// QueryType classifies the intent of a question for multi-vector fusion
// weight selection.
type QueryType string

const (
	QueryTypeConcept        QueryType = "concept"
	QueryTypeImplementation QueryType = "implementation"
	QueryTypeDebugging      QueryType = "debugging"
	QueryTypeComparison     QueryType = "comparison"
	QueryTypeExample        QueryType = "example"
)

// Query is the immutable pipeline input.
type Query struct {
	Text   string
	Course Course
}

func NewQuery(text string, course Course) Query {
	return Query{Text: strings.TrimSpace(text), Course: course}
}

// CacheKey is the normalized (text, course) identity used by the result cache.
func (q Query) CacheKey() string {
	return strings.ToLower(strings.TrimSpace(q.Text)) + "|" + string(q.Course)
}

// RewriteResult holds alternate phrasings of one question, in generation order.
type RewriteResult struct {
	Original   string
	Rewrites   []string
	Confidence float64
}

// AllQueries returns the original query followed by its rewrites.
func (r RewriteResult) AllQueries() []string {
	out := make([]string, 0, len(r.Rewrites)+1)
	out = append(out, r.Original)
	out = append(out, r.Rewrites...)
	return out
}

// TranslationResult is the chosen retrieval plan for one query.
type TranslationResult struct {
	Strategy SearchStrategy
	Filter   SearchFilter
	Queries  []string
}

type SearchFilter struct {
	Course Course
}
