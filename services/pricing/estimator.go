package pricing

import (
	"math"
	"strings"
)

// Rate holds a USD price pair per 1000 tokens.
type Rate struct {
	Prompt     float64
	Completion float64
}

// Rule binds a case-insensitive model-name substring to a rate pair.
type Rule struct {
	Match string
	Rate  Rate
}

// DefaultRules is the built-in rate table. Rules are evaluated in
// declaration order and the first substring match wins, so more specific
// model names must appear before generic ones.
var DefaultRules = []Rule{
	{Match: "gpt-4", Rate: Rate{Prompt: 0.03, Completion: 0.06}},
	{Match: "gpt-3.5", Rate: Rate{Prompt: 0.0015, Completion: 0.002}},
	{Match: "claude-3-opus", Rate: Rate{Prompt: 0.015, Completion: 0.075}},
	{Match: "claude-3-sonnet", Rate: Rate{Prompt: 0.003, Completion: 0.015}},
	{Match: "claude-3-haiku", Rate: Rate{Prompt: 0.00025, Completion: 0.00125}},
}

// DefaultRate applies when no rule matches the model name.
var DefaultRate = Rate{Prompt: 0.01, Completion: 0.03}

// Estimator computes deterministic USD cost estimates from token usage.
// It is immutable after construction and safe for concurrent use.
type Estimator struct {
	rules       []Rule
	defaultRate Rate
}

// NewEstimator builds an estimator from an ordered rule list and a fallback
// rate. The rule order is the precedence order.
func NewEstimator(rules []Rule, defaultRate Rate) *Estimator {
	normalized := make([]Rule, len(rules))
	for i, r := range rules {
		normalized[i] = Rule{Match: strings.ToLower(r.Match), Rate: r.Rate}
	}
	return &Estimator{
		rules:       normalized,
		defaultRate: defaultRate,
	}
}

// DefaultEstimator returns an estimator backed by DefaultRules.
func DefaultEstimator() *Estimator {
	return NewEstimator(DefaultRules, DefaultRate)
}

// Rate returns the rate pair for a model name. Matching is a
// case-insensitive substring test against each rule in order; when no rule
// matches, the default rate is returned. Never fails.
func (e *Estimator) Rate(model string) Rate {
	name := strings.ToLower(model)
	for _, r := range e.rules {
		if strings.Contains(name, r.Match) {
			return r.Rate
		}
	}
	return e.defaultRate
}

// Estimate returns the estimated USD cost for a completion, rounded to six
// decimal places. Zero tokens cost exactly 0. Negative token counts are
// clamped to zero so a malformed upstream usage object can never produce a
// negative charge. Pure function: no I/O, no error paths.
func (e *Estimator) Estimate(model string, promptTokens, completionTokens int) float64 {
	if promptTokens < 0 {
		promptTokens = 0
	}
	if completionTokens < 0 {
		completionTokens = 0
	}

	rate := e.Rate(model)
	cost := float64(promptTokens)/1000*rate.Prompt + float64(completionTokens)/1000*rate.Completion

	return math.Round(cost*1e6) / 1e6
}
