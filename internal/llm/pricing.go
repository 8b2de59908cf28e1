package llm

import (
	"github.com/shopspring/decimal"
)

// ModelPrice holds USD cost per 1K tokens for one model.
type ModelPrice struct {
	PromptPer1K     decimal.Decimal
	CompletionPer1K decimal.Decimal
}

// defaultPriceModel is used for unknown models so cost gating always has
// a non-zero basis.
const defaultPriceModel = "gpt-4o-mini"

var priceTable = map[string]ModelPrice{
	"gpt-4o-mini": {
		PromptPer1K:     decimal.NewFromFloat(0.0005),
		CompletionPer1K: decimal.NewFromFloat(0.0015),
	},
	"gpt-4o": {
		PromptPer1K:     decimal.NewFromFloat(0.0025),
		CompletionPer1K: decimal.NewFromFloat(0.0100),
	},
	"gpt-4.1": {
		PromptPer1K:     decimal.NewFromFloat(0.0030),
		CompletionPer1K: decimal.NewFromFloat(0.0100),
	},
}

// EstimateCost computes the usage-based USD cost for a call. Unknown
// models fall back to the default model's pricing.
func EstimateCost(model string, promptTokens, completionTokens int) decimal.Decimal {
	price, ok := priceTable[model]
	if !ok {
		price = priceTable[defaultPriceModel]
	}
	thousand := decimal.NewFromInt(1000)
	prompt := decimal.NewFromInt(int64(promptTokens)).Div(thousand).Mul(price.PromptPer1K)
	completion := decimal.NewFromInt(int64(completionTokens)).Div(thousand).Mul(price.CompletionPer1K)
	return prompt.Add(completion)
}

// EstimatePromptTokens approximates token usage from message character
// length with a conservative 4-characters-per-token heuristic.
func EstimatePromptTokens(messages []Message) int {
	chars := 0
	for _, m := range messages {
		chars += len(m.Role) + len(m.Content)
	}
	return (chars + 3) / 4
}
