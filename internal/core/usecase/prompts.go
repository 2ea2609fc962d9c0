package usecase

import (
	"fmt"
	"strings"

	"github.com/flowmindlabs/flowmind-rag/internal/core/domain"
)

const (
	previewMaxChars = 200
	sourceMaxChars  = 600
)

func buildRewritePrompt(question string) string {
	return `You rewrite course-related questions for a transcript search engine.
Produce 2-4 alternate phrasings of the question below, each using different
vocabulary or angle a learner might use. Keep the meaning identical.
Return strict JSON: {"rewrites": [...], "confidence": number from 0 to 1}.
No markdown, no extra keys.

Question:
` + question
}

func buildHypotheticalDocumentPrompt(question string, course domain.Course, context string) string {
	courseLabel := "a programming course"
	switch course {
	case domain.CourseNodeJS:
		courseLabel = "a Node.js course"
	case domain.CoursePython:
		courseLabel = "a Python course"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `Write a 200-400 word excerpt from %s video transcript that answers the question below.
Write it the way an instructor actually speaks: first person, concrete examples,
minor verbal asides. Do not mention that it is hypothetical. Plain text only.

Question:
%s
`, courseLabel, question)

	if strings.TrimSpace(context) != "" {
		fmt.Fprintf(&b, "\nConversation context:\n%s\n", context)
	}
	return b.String()
}

func buildRerankPrompt(question string, results []domain.SearchResultItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Order the passages below by relevance to the question.
Return only a bracketed list of 1-based indices, most relevant first, e.g. [3,1,2].

Question:
%s

Passages:
`, question)

	for i, item := range results {
		fmt.Fprintf(&b, "[%d] section=%s time=%s\n%s\n\n", i+1, item.SectionName, item.Timestamp(), truncate(item.Text, previewMaxChars))
	}
	return b.String()
}

func buildAnswerPrompt(question string, sources []domain.SearchResultItem) string {
	var contextBuilder strings.Builder
	for i, item := range sources {
		fmt.Fprintf(&contextBuilder, "[%d] course=%s section=%s time=%s score=%.3f\n%s\n\n",
			i+1, item.CourseID, item.SectionName, item.Timestamp(), item.Score, item.Text)
	}

	return fmt.Sprintf(`Answer the student's question using only the course transcript excerpts below.
Reference sections by name when helpful. If the excerpts are insufficient, say so directly.

Question:
%s

Transcript excerpts:
%s`, question, contextBuilder.String())
}

func buildHypotheticalQueryPrompt(question string, course domain.Course) string {
	return fmt.Sprintf(`You analyze a student question for a %s transcript search engine.
Return strict JSON with keys:
query_type (one of: concept, implementation, debugging, comparison, example),
hypothetical_answers (array of up to 4 short answer passages),
technical_context (string of related technical terms and APIs),
related_questions (array of strings),
expected_topics (array of strings).
No markdown, no extra keys.

Question:
%s`, course, question)
}

func buildEvaluationPrompt(question, response string, sources []domain.SearchResultItem, course domain.Course) string {
	var sourcesBuilder strings.Builder
	for i, item := range sources {
		fmt.Fprintf(&sourcesBuilder, "[%d] %s\n", i+1, truncate(item.Text, sourceMaxChars))
	}
	if sourcesBuilder.Len() == 0 {
		sourcesBuilder.WriteString("(no sources retrieved)\n")
	}

	return fmt.Sprintf(`You are a strict quality judge for answers about the %s course material.
Score the response on five dimensions, each from 0 to 1:
accuracy:     0.0 contradicts sources, 0.2 mostly wrong, 0.4 partially wrong, 0.6 minor errors, 0.8 accurate, 1.0 fully grounded
relevance:    0.0 off-topic, 0.2 tangential, 0.4 partially on-topic, 0.6 mostly relevant, 0.8 relevant, 1.0 directly answers
completeness: 0.0 empty, 0.2 fragment, 0.4 major gaps, 0.6 adequate, 0.8 thorough, 1.0 exhaustive for the question scope
clarity:      0.0 unreadable, 0.2 confusing, 0.4 hard to follow, 0.6 readable, 0.8 clear, 1.0 exceptionally clear
helpfulness:  0.0 useless, 0.2 barely useful, 0.4 somewhat useful, 0.6 useful, 0.8 actionable, 1.0 ideal for a learner

Return strict JSON with keys:
accuracy, relevance, completeness, clarity, helpfulness, overall (numbers 0-1),
strengths, weaknesses, improvements, missing_information (arrays of strings),
confidence (number 0-1).
No markdown, no extra keys.

Question:
%s

Response:
%s

Sources:
%s`, course, question, response, sourcesBuilder.String())
}

func buildImprovementPrompt(original string, eval domain.Evaluation, question string, sources []domain.SearchResultItem, course domain.Course) string {
	var sourcesBuilder strings.Builder
	for i, item := range sources {
		fmt.Fprintf(&sourcesBuilder, "[%d] %s\n", i+1, truncate(item.Text, sourceMaxChars))
	}

	return fmt.Sprintf(`Rewrite the answer below so it would score above 0.70 on every judged dimension.
Fix the weaknesses, apply the improvements, cover the missing information.
Keep it grounded in the sources. Return only the rewritten answer, plain text.

Question (%s course):
%s

Current answer:
%s

Judge breakdown:
accuracy=%.2f relevance=%.2f completeness=%.2f clarity=%.2f helpfulness=%.2f overall=%.2f
Strengths: %s
Weaknesses: %s
Improvements: %s
Missing information: %s

Sources:
%s`, course, question, original,
		eval.Accuracy, eval.Relevance, eval.Completeness, eval.Clarity, eval.Helpfulness, eval.Overall,
		joinOrNone(eval.Strengths), joinOrNone(eval.Weaknesses),
		joinOrNone(eval.Improvements), joinOrNone(eval.MissingInformation),
		sourcesBuilder.String())
}

func buildComparisonPrompt(question, responseA, responseB string, course domain.Course) string {
	return fmt.Sprintf(`Compare two answers to the same %s course question.
Return strict JSON: {"winner": "response_a"|"response_b"|"tie",
"confidence": number 0-1, "reasoning": string,
"score_a": number 0-1, "score_b": number 0-1}.
No markdown, no extra keys.

Question:
%s

Response A:
%s

Response B:
%s`, course, question, responseA, responseB)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none noted"
	}
	return strings.Join(items, "; ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
