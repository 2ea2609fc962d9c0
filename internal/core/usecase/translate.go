package usecase

import (
	"strings"
	"unicode"

	"github.com/flowmindlabs/flowmind-rag/internal/core/domain"
)

// QueryDecisionTranslator maps a raw question to a retrieval plan: a search
// strategy, a course filter inferred from vocabulary, and the concrete query
// strings to execute. Classification is rule-based and deterministic;
// inconclusive input defaults to semantic search across both courses.
type QueryDecisionTranslator struct{}

func NewQueryDecisionTranslator() *QueryDecisionTranslator {
	return &QueryDecisionTranslator{}
}

var nodejsVocabulary = []string{
	"node", "nodejs", "node.js", "express", "npm", "event loop", "libuv",
	"require", "commonjs", "middleware", "javascript", "v8", "package.json",
}

var pythonVocabulary = []string{
	"python", "django", "flask", "pip", "pandas", "numpy", "virtualenv",
	"list comprehension", "decorator", "dunder", "pytest", "__init__",
}

var conceptualMarkers = []string{
	"what is", "what are", "explain", "why", "how does", "how do",
	"difference between", "when should", "compare", "understand", "concept",
}

var exactMatchMarkers = []string{
	"error", "exception", "undefined", "traceback", "stack trace",
	"called", "named", "keyword", "method", "function name", "syntax",
}

func (t *QueryDecisionTranslator) Translate(question string) domain.TranslationResult {
	lowered := strings.ToLower(question)

	course := inferCourse(lowered)
	strategy := inferStrategy(lowered)

	queries := []string{strings.TrimSpace(question)}
	if stripped := stripFillerWords(question); stripped != "" && !strings.EqualFold(stripped, queries[0]) {
		queries = append(queries, stripped)
	}

	return domain.TranslationResult{
		Strategy: strategy,
		Filter:   domain.SearchFilter{Course: course},
		Queries:  queries,
	}
}

func inferCourse(lowered string) domain.Course {
	nodeHit := containsAny(lowered, nodejsVocabulary)
	pythonHit := containsAny(lowered, pythonVocabulary)

	switch {
	case nodeHit && !pythonHit:
		return domain.CourseNodeJS
	case pythonHit && !nodeHit:
		return domain.CoursePython
	default:
		return domain.CourseBoth
	}
}

func inferStrategy(lowered string) domain.SearchStrategy {
	conceptual := containsAny(lowered, conceptualMarkers)
	exact := containsAny(lowered, exactMatchMarkers) || strings.Contains(lowered, "\"") || strings.Contains(lowered, "()")

	switch {
	case conceptual && exact:
		return domain.StrategyHybrid
	case exact:
		return domain.StrategyKeyword
	default:
		return domain.StrategySemantic
	}
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}

var fillerWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "can": {},
	"i": {}, "do": {}, "does": {}, "how": {}, "what": {}, "why": {}, "in": {},
	"of": {}, "to": {}, "me": {}, "please": {}, "you": {},
}

func stripFillerWords(question string) string {
	fields := strings.FieldsFunc(question, func(r rune) bool {
		return unicode.IsSpace(r) || r == '?' || r == '!' || r == ','
	})

	kept := make([]string, 0, len(fields))
	for _, field := range fields {
		if _, filler := fillerWords[strings.ToLower(field)]; filler {
			continue
		}
		kept = append(kept, field)
	}
	if len(kept) < 2 {
		return ""
	}
	return strings.Join(kept, " ")
}
