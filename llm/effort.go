package llm

import (
	"strings"

	"github.com/shellsage/shellsage/errors"
)

// Effort selects how much thinking a model is asked to do. Each backend owns
// its own translation: token-budget backends map to a thinking budget, string
// backends pass the level through, and backends without first-class reasoning
// ignore it.
type Effort string

const (
	EffortOff    Effort = "off"
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// ParseEffort validates a user-supplied effort level.
func ParseEffort(s string) (Effort, error) {
	switch Effort(strings.ToLower(strings.TrimSpace(s))) {
	case EffortOff:
		return EffortOff, nil
	case EffortLow, "":
		return EffortLow, nil
	case EffortMedium:
		return EffortMedium, nil
	case EffortHigh:
		return EffortHigh, nil
	}
	return "", errors.NewKind(errors.KindConfiguration, "invalid effort %q: must be off, low, medium or high", s)
}

// answerHeadroom is the number of output tokens reserved for the answer on
// top of the thinking budget.
const answerHeadroom = 6000

// ThinkingBudget returns the thinking token budget for budget-based backends.
// Zero means thinking must not be requested at all.
func (e Effort) ThinkingBudget() int64 {
	switch e {
	case EffortLow:
		return 5000
	case EffortMedium:
		return 10000
	case EffortHigh:
		return 20000
	}
	return 0
}

// MaxTokens returns the output token ceiling for budget-based backends:
// the thinking budget plus headroom for the answer, or fallback when
// thinking is off.
func (e Effort) MaxTokens(fallback int64) int64 {
	budget := e.ThinkingBudget()
	if budget == 0 {
		return fallback
	}
	return budget + answerHeadroom
}

// reasoningModelHints are substrings of model names known to accept a
// reasoning parameter on OpenAI-compatible local endpoints. Anything else
// gets the effort silently dropped rather than a request error.
var reasoningModelHints = []string{
	"deepseek-r1",
	"deepseek-reasoner",
	"qwq",
	"gpt-oss",
	"o1",
	"o3",
	"o4",
	"-thinking",
	"-think",
}

// ModelSupportsReasoning is a name-based heuristic for backends whose
// capability cannot be queried.
func ModelSupportsReasoning(model string) bool {
	m := strings.ToLower(model)
	for _, hint := range reasoningModelHints {
		if strings.Contains(m, hint) {
			return true
		}
	}
	return false
}
