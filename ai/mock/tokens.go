package mock

import "strings"

// WordCounter is an ai.TokenCounter that counts whitespace separated words.
type WordCounter struct{}

// CountTokens returns the number of words in text.
func (WordCounter) CountTokens(text string) int {
	return len(strings.Fields(text))
}
