// Package budget estimates prompt sizes and trims retrieved context so a
// grounded prompt fits the model's input window. Because several LLM backends
// with different tokenizers are supported, it uses a conservative character
// heuristic: 1 token ≈ 4 characters.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// separatorTokens is charged for each "\n\n" between context chunks.
	separatorTokens = 1
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// FitContext drops chunks from the end of the ranked list until the fixed
// part of the prompt plus the remaining chunks fit within maxTokens. Chunks
// are never reordered or truncated. maxTokens <= 0 disables the limit.
//
// When fixed alone exceeds the budget the empty slice is returned; callers
// should warn separately.
func FitContext(fixed string, chunks []string, maxTokens int) []string {
	if maxTokens <= 0 || len(chunks) == 0 {
		return chunks
	}

	total := Estimate(fixed)
	for i, c := range chunks {
		cost := Estimate(c)
		if i > 0 {
			cost += separatorTokens
		}
		if total+cost > maxTokens {
			return chunks[:i]
		}
		total += cost
	}
	return chunks
}
