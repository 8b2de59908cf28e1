package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/domain/insight"
)

func TestBuildAnalysisMessages_Structure(t *testing.T) {
	in := &insight.AnalysisInput{
		Ticker:   "AAPL",
		Locale:   "en_US",
		MaxChars: 2000,
		Items: []insight.InputArticle{
			{Title: "Apple jumps", Body: "Shares rallied."},
			{Title: "Supplier news", Body: "A key supplier reported shortages."},
		},
	}

	msgs := BuildAnalysisMessages(in)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, RoleUser, msgs[1].Role)

	assert.Contains(t, msgs[0].Content, "JSON ONLY")
	assert.Contains(t, msgs[0].Content, "locale=en_US")

	assert.Contains(t, msgs[1].Content, "[Ticker] AAPL")
	assert.Contains(t, msgs[1].Content, "1. Title: Apple jumps")
	assert.Contains(t, msgs[1].Content, "2. Title: Supplier news")
}

func TestTrimArticles_RespectsBudget(t *testing.T) {
	long := strings.Repeat("a", 5000)
	items := []insight.InputArticle{
		{Title: "first", Body: long},
		{Title: "second", Body: long},
	}

	trimmed := trimArticles(items, 1000)
	require.Len(t, trimmed, 1)
	assert.Less(t, len(trimmed[0].excerpt), 1000)
}

func TestTrimArticles_GreedyOrder(t *testing.T) {
	items := []insight.InputArticle{
		{Title: "a", Body: "short one"},
		{Title: "b", Body: "short two"},
		{Title: "c", Body: strings.Repeat("x", 10000)},
	}

	trimmed := trimArticles(items, 500)
	require.GreaterOrEqual(t, len(trimmed), 3)
	assert.Equal(t, "short one", trimmed[0].excerpt)
	assert.Equal(t, "short two", trimmed[1].excerpt)
	// The last article is cut to whatever budget remains.
	assert.Less(t, len(trimmed[2].excerpt), 500)
}

func TestTrimArticles_ZeroBudget(t *testing.T) {
	items := []insight.InputArticle{{Title: "a", Body: "body"}}
	assert.Empty(t, trimArticles(items, 0))
}
