package llm

import (
	"fmt"
	"strings"

	"hermes/internal/domain/insight"
)

const jsonSchemaSnippet = `{` +
	`"summary_text": string (<=1200 chars, newline allowed), ` +
	`"keywords": array<string> (3-10 unique, lowercase, no punctuation), ` +
	`"sentiment_score": number (-1.0..1.0), ` +
	`"anomalies": array<object> where object = {"label": string (<=64), "description": string (<=512), "score": number (0.0..1.0)}` +
	`}`

// BuildAnalysisMessages produces the system/user message pair asking the
// model for structured JSON output. Article bodies are trimmed greedily
// so the user prompt stays within in.MaxChars.
func BuildAnalysisMessages(in *insight.AnalysisInput) []Message {
	system := "Role: you are a research analyst assistant specialized in the finance domain.\n" +
		"Goal: from the provided articles, produce the day's key developments for one ticker as\n" +
		"- a fact-based summary (summary_text)\n" +
		"- key keywords (keywords)\n" +
		"- an overall sentiment score (sentiment_score)\n" +
		"- a list of anomalous events (anomalies)\n\n" +
		"Output format: JSON ONLY (no prose, code fences or preamble). Schema: " + jsonSchemaSnippet + ".\n\n" +
		"Rules:\n" +
		"1) State facts only; never invent figures or events absent from the articles.\n" +
		"2) When information is insufficient, say so explicitly instead of leaving fields blank (anomalies may be an empty array).\n" +
		"3) summary_text must avoid investment-advice wording, overconfidence and unverified rumors.\n" +
		"4) keywords: 3-10 items, lowercase, whitespace-tokenized, deduplicated, punctuation stripped.\n" +
		"5) sentiment_score: -1.0 (very negative) to 1.0 (very positive), 0 is neutral.\n" +
		"6) anomalies: concise descriptions of unusual patterns (earnings surprises, large acquisitions, regulation or litigation, leadership changes, sharp price signals); score is confidence/strength in 0..1.\n" +
		fmt.Sprintf("7) locale=%s.\n", in.Locale)

	trimmed := trimArticles(in.Items, in.MaxChars)
	lines := []string{
		fmt.Sprintf("[Ticker] %s", in.Ticker),
		fmt.Sprintf("[Locale] %s", in.Locale),
		"[Instructions] Read the articles and output JSON only, following the rules above.",
		"[Articles]",
	}
	for i, t := range trimmed {
		lines = append(lines,
			fmt.Sprintf("%d. Title: %s", i+1, t.title),
			"Body: ",
			t.excerpt,
			"",
		)
	}

	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: strings.Join(lines, "\n")},
	}
}

type trimmedArticle struct {
	title   string
	excerpt string
}

// trimArticles greedily concatenates per-article excerpts until the
// character budget is exhausted.
func trimArticles(items []insight.InputArticle, maxChars int) []trimmedArticle {
	result := make([]trimmedArticle, 0, len(items))
	used := 0
	for _, it := range items {
		title := strings.TrimSpace(it.Title)
		body := strings.TrimSpace(it.Body)

		header := fmt.Sprintf("Title: %s\n", title)
		budget := maxChars - used - len(header)
		if budget <= 0 {
			break
		}
		excerpt := body
		if len(excerpt) > budget {
			excerpt = excerpt[:budget]
		}
		// 2 accounts for newline spacing between entries.
		used += len(header) + len(excerpt) + 2
		result = append(result, trimmedArticle{title: title, excerpt: excerpt})
		if used >= maxChars {
			break
		}
	}
	return result
}
