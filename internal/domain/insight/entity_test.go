package insight

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/pkg/errors"
)

func validResult() *AnalysisResult {
	return &AnalysisResult{
		Ticker:      "aapl",
		SummaryText: "Solid quarter.",
		Keywords:    []string{"apple", "earnings"},
		Sentiment:   0.4,
		Anomalies: []AnomalyItem{
			{Label: "surprise", Description: "beat estimates", Score: 0.7},
		},
	}
}

func TestNormalize_Success(t *testing.T) {
	r := validResult()
	require.NoError(t, r.Normalize())
	assert.Equal(t, "AAPL", r.Ticker)
	assert.False(t, r.GeneratedAt.IsZero())
}

func TestNormalize_KeywordDedupe(t *testing.T) {
	r := validResult()
	r.Keywords = []string{"Apple", "apple", " APPLE ", "earnings", "", "rally"}
	require.NoError(t, r.Normalize())
	// Case-insensitive, order-preserving, first casing wins.
	assert.Equal(t, []string{"Apple", "earnings", "rally"}, r.Keywords)
}

func TestNormalize_KeywordCap(t *testing.T) {
	r := validResult()
	r.Keywords = []string{"k1", "k2", "k3", "k4", "k5", "k6", "k7", "k8", "k9", "k10", "k11", "k12"}
	require.NoError(t, r.Normalize())
	assert.Len(t, r.Keywords, MaxKeywords)
	assert.Equal(t, "k1", r.Keywords[0])
}

func TestNormalize_SentimentBounds(t *testing.T) {
	for _, bad := range []float64{-1.01, 1.01, 5} {
		r := validResult()
		r.Sentiment = bad
		err := r.Normalize()
		require.Error(t, err)
		var ve *errors.ValidationError
		assert.True(t, errors.As(err, &ve))
	}
}

func TestNormalize_AnomalyScoreBounds(t *testing.T) {
	r := validResult()
	r.Anomalies[0].Score = 1.2
	require.Error(t, r.Normalize())

	r = validResult()
	r.Anomalies[0].Score = -0.1
	require.Error(t, r.Normalize())
}

func TestNormalize_Truncation(t *testing.T) {
	r := validResult()
	r.SummaryText = strings.Repeat("s", 5000)
	r.Anomalies[0].Label = strings.Repeat("l", 100)
	r.Anomalies[0].Description = strings.Repeat("d", 1000)
	require.NoError(t, r.Normalize())
	assert.Len(t, r.SummaryText, 4000)
	assert.Len(t, r.Anomalies[0].Label, 64)
	assert.Len(t, r.Anomalies[0].Description, 512)
}

func TestNormalize_BlankFields(t *testing.T) {
	r := validResult()
	r.SummaryText = "   "
	require.Error(t, r.Normalize())

	r = validResult()
	r.Ticker = ""
	require.Error(t, r.Normalize())
}

func TestMaxAnomalyScore(t *testing.T) {
	r := validResult()
	r.Anomalies = append(r.Anomalies, AnomalyItem{Label: "x", Description: "y", Score: 0.9})
	assert.InDelta(t, 0.9, r.MaxAnomalyScore(), 1e-9)

	r.Anomalies = nil
	assert.Zero(t, r.MaxAnomalyScore())
}

func TestAnalysisInput_Validate(t *testing.T) {
	in := &AnalysisInput{
		Ticker:   " aapl ",
		MaxChars: 2000,
		Items:    []InputArticle{{Title: "t", Body: "b"}},
	}
	require.NoError(t, in.Validate())
	assert.Equal(t, "AAPL", in.Ticker)

	in.Items = nil
	require.Error(t, in.Validate())

	in = &AnalysisInput{Ticker: "AAPL", MaxChars: 100, Items: []InputArticle{{Title: "t", Body: "b"}}}
	require.Error(t, in.Validate(), "budget below minimum")
}
