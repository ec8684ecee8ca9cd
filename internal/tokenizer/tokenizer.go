// Package tokenizer provides a deterministic token count heuristic for
// cost estimation. No real tokenizer model is involved; the estimate
// only needs to be stable and monotonic in text length.
package tokenizer

// EstimateTokens estimates the token count of a text string.
// Uses the rule of thumb: ~4 characters per token.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// EstimatePair estimates input and output token counts for a
// prompt/completion pair.
func EstimatePair(prompt, completion string) (int, int) {
	return EstimateTokens(prompt), EstimateTokens(completion)
}
