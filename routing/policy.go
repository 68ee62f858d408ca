// Package routing decides which executor class should run a task.
package routing

import (
	"fmt"
	"strings"
)

// Class identifies a class of executor.
type Class string

const (
	ClassLocal    Class = "local"
	ClassCloud    Class = "cloud"
	ClassExternal Class = "external"
)

// Decision is the outcome of routing a task description.
type Decision struct {
	Class      Class   `json:"class"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// Thresholds configures the rule cutoffs and keyword set.
type Thresholds struct {
	// ShortMaxLen routes descriptions below this length to local executors.
	ShortMaxLen int
	// LongMinLen routes descriptions above this length to cloud executors.
	LongMinLen int
	// ComplexKeywords routes descriptions mentioning any of these to cloud.
	ComplexKeywords []string
}

// DefaultThresholds returns the standard rule configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ShortMaxLen: 50,
		LongMinLen:  200,
		ComplexKeywords: []string{
			"analyze", "benchmark", "dataset", "distributed",
			"optimize", "pipeline", "simulation", "train",
		},
	}
}

// Policy maps task descriptions to executor classes. Decide is total and
// side-effect-free: it always returns a decision and never fails.
type Policy struct {
	thresholds Thresholds
	scorer     Scorer
}

// NewPolicy creates a Policy with the given thresholds. A nil scorer falls
// back to the default keyword scorer.
func NewPolicy(t Thresholds, scorer Scorer) *Policy {
	if scorer == nil {
		scorer = DefaultScorer()
	}
	return &Policy{thresholds: t, scorer: scorer}
}

// Decide evaluates the routing rules in order; the first match wins.
func (p *Policy) Decide(description string) Decision {
	n := len(description)

	if n < p.thresholds.ShortMaxLen {
		return Decision{
			Class:      ClassLocal,
			Reason:     fmt.Sprintf("short description (%d < %d chars)", n, p.thresholds.ShortMaxLen),
			Confidence: 0.9,
		}
	}
	if n > p.thresholds.LongMinLen {
		return Decision{
			Class:      ClassCloud,
			Reason:     fmt.Sprintf("long description (%d > %d chars)", n, p.thresholds.LongMinLen),
			Confidence: 0.8,
		}
	}
	lower := strings.ToLower(description)
	for _, kw := range p.thresholds.ComplexKeywords {
		if strings.Contains(lower, kw) {
			return Decision{
				Class:      ClassCloud,
				Reason:     fmt.Sprintf("complex-task keyword %q", kw),
				Confidence: 0.7,
			}
		}
	}
	return Decision{
		Class:      ClassLocal,
		Reason:     "no rule matched, defaulting to local",
		Confidence: 0.6,
	}
}

// Complexity reports the auxiliary complexity estimate for diagnostics. It
// does not affect Decide.
func (p *Policy) Complexity(description string) int {
	return p.scorer.Score(description)
}
