package llmrouter

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokenEncoding is cl100k_base, a reasonable estimator across vendors.
const tokenEncoding = "cl100k_base"

// TokenEstimator counts tokens for texts whose vendor reported no usage.
// Falls back to chars/4 when the encoding cannot be loaded.
type TokenEstimator struct {
	encoding *tiktoken.Tiktoken
}

var (
	defaultEstimator     *TokenEstimator
	defaultEstimatorOnce sync.Once
)

// NewTokenEstimator builds an estimator, or an estimator in fallback mode if
// the encoding is unavailable.
func NewTokenEstimator() *TokenEstimator {
	enc, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		return &TokenEstimator{}
	}
	return &TokenEstimator{encoding: enc}
}

// Count returns the token count for text.
func (e *TokenEstimator) Count(text string) int {
	if e == nil || e.encoding == nil {
		return len(text) / 4
	}
	return len(e.encoding.Encode(text, nil, nil))
}

// CountMessages returns the summed token count of all message contents plus
// a small per-message overhead for role framing.
func (e *TokenEstimator) CountMessages(messages []Message) int {
	const perMessageOverhead = 4
	total := 0
	for _, m := range messages {
		total += e.Count(m.Content) + perMessageOverhead
	}
	return total
}

// EstimateTokens counts tokens with a process-wide shared estimator.
func EstimateTokens(text string) int {
	return sharedEstimator().Count(text)
}

func sharedEstimator() *TokenEstimator {
	defaultEstimatorOnce.Do(func() {
		defaultEstimator = NewTokenEstimator()
	})
	return defaultEstimator
}
