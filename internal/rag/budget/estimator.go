package budget

import (
	"math"
	"strings"

	"github.com/akolanti/GoAnalyze/internal/config"
)

// Estimator approximates the token cost of text. Implementations must err on
// the high side: budgets treat the estimate as an upper bound.
type Estimator interface {
	EstimateTokens(text string) int
}

// WordEstimator applies a fixed words-per-token ratio (~0.75 words per token
// for English). It is a heuristic, not a tokenizer count.
type WordEstimator struct{}

func (WordEstimator) EstimateTokens(text string) int {
	return EstimateWordCount(len(strings.Fields(text)))
}

// EstimateWordCount converts a word count to estimated tokens, used where only
// metadata is available and content must not be read.
func EstimateWordCount(words int) int {
	if words <= 0 {
		return 0
	}
	return int(math.Ceil(float64(words) / config.WordsPerToken))
}

// EstimatorFunc adapts a function, e.g. a provider tokenizer, to Estimator.
type EstimatorFunc func(text string) int

func (f EstimatorFunc) EstimateTokens(text string) int {
	return f(text)
}

func orDefault(est Estimator) Estimator {
	if est == nil {
		return WordEstimator{}
	}
	return est
}
