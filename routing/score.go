package routing

import "strings"

// Scorer estimates task complexity on a 0-100 scale. It is a separate,
// swappable capability so a future scoring-based policy can replace the
// threshold rules without changing the Policy interface.
type Scorer interface {
	Score(description string) int
}

// KeywordScorer scores from description length plus weighted keyword
// presence: complex vocabulary raises the estimate, simple vocabulary
// lowers it. The result is clamped to [0, 100].
type KeywordScorer struct {
	Complex []string
	Simple  []string
}

// DefaultScorer returns a KeywordScorer with the standard vocabulary.
func DefaultScorer() *KeywordScorer {
	return &KeywordScorer{
		Complex: []string{
			"analyze", "benchmark", "dataset", "distributed",
			"optimize", "pipeline", "simulation", "train",
		},
		Simple: []string{"echo", "hello", "list", "ping", "print", "simple"},
	}
}

// Score implements Scorer.
func (k *KeywordScorer) Score(description string) int {
	score := len(description) / 20
	lower := strings.ToLower(description)
	for _, kw := range k.Complex {
		if strings.Contains(lower, kw) {
			score += 15
		}
	}
	for _, kw := range k.Simple {
		if strings.Contains(lower, kw) {
			score -= 10
		}
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
