package openai

import (
	"github.com/poiesic/lmao/ai"
	"github.com/tmc/langchaingo/llms"
)

// TokenCounter counts tokens with the tokenizer of a model.
type TokenCounter struct {
	model string
}

// NewTokenCounter returns a counter for model. Unknown models fall back
// to the tokenizer's default encoding.
func NewTokenCounter(model string) ai.TokenCounter {
	return &TokenCounter{model: model}
}

// CountTokens returns the number of tokens in text.
func (t *TokenCounter) CountTokens(text string) int {
	return llms.CountTokens(t.model, text)
}
