package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimator_Estimate_KnownModels(t *testing.T) {
	estimator := DefaultEstimator()

	tests := []struct {
		name             string
		model            string
		promptTokens     int
		completionTokens int
		want             float64
	}{
		{
			name:             "gpt-4 per-1k rates",
			model:            "gpt-4",
			promptTokens:     1000,
			completionTokens: 1000,
			want:             0.09,
		},
		{
			name:             "gpt-4 substring matches dated variant",
			model:            "gpt-4-0613",
			promptTokens:     1000,
			completionTokens: 1000,
			want:             0.09,
		},
		{
			name:             "gpt-4 matches provider-prefixed name",
			model:            "openai/gpt-4",
			promptTokens:     500,
			completionTokens: 500,
			want:             0.045,
		},
		{
			name:             "gpt-3.5-turbo",
			model:            "gpt-3.5-turbo",
			promptTokens:     1000,
			completionTokens: 1000,
			want:             0.0035,
		},
		{
			name:             "claude-3-opus",
			model:            "claude-3-opus-20240229",
			promptTokens:     1000,
			completionTokens: 1000,
			want:             0.09,
		},
		{
			name:             "claude-3-sonnet",
			model:            "claude-3-sonnet-20240229",
			promptTokens:     1000,
			completionTokens: 1000,
			want:             0.018,
		},
		{
			name:             "claude-3-haiku",
			model:            "claude-3-haiku-20240307",
			promptTokens:     1000,
			completionTokens: 1000,
			want:             0.0015,
		},
		{
			name:             "matching is case insensitive",
			model:            "GPT-4",
			promptTokens:     1000,
			completionTokens: 1000,
			want:             0.09,
		},
		{
			name:             "unknown model falls back to default rates",
			model:            "totally-unknown-model-xyz",
			promptTokens:     1000,
			completionTokens: 1000,
			want:             0.04,
		},
		{
			name:             "prompt tokens only",
			model:            "gpt-4",
			promptTokens:     2000,
			completionTokens: 0,
			want:             0.06,
		},
		{
			name:             "completion tokens only",
			model:            "gpt-4",
			promptTokens:     0,
			completionTokens: 2000,
			want:             0.12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := estimator.Estimate(tt.model, tt.promptTokens, tt.completionTokens)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEstimator_Estimate_ZeroTokens(t *testing.T) {
	estimator := DefaultEstimator()

	for _, model := range []string{"gpt-4", "gpt-3.5-turbo", "claude-3-opus", "totally-unknown-model-xyz", ""} {
		assert.Equal(t, 0.0, estimator.Estimate(model, 0, 0), "model %q", model)
	}
}

func TestEstimator_Estimate_NegativeTokensClampedToZero(t *testing.T) {
	estimator := DefaultEstimator()

	assert.Equal(t, 0.0, estimator.Estimate("gpt-4", -100, -100))
	assert.Equal(t, 0.06, estimator.Estimate("gpt-4", -100, 1000))
	assert.Equal(t, 0.03, estimator.Estimate("gpt-4", 1000, -1))
}

func TestEstimator_Estimate_MonotonicInTokenCounts(t *testing.T) {
	estimator := DefaultEstimator()

	counts := []int{0, 1, 10, 500, 1000, 50000}
	for _, model := range []string{"gpt-4", "claude-3-haiku", "some-unlisted-model"} {
		prev := -1.0
		for _, n := range counts {
			cost := estimator.Estimate(model, n, 0)
			assert.GreaterOrEqual(t, cost, prev, "prompt tokens model=%s n=%d", model, n)
			prev = cost
		}

		prev = -1.0
		for _, n := range counts {
			cost := estimator.Estimate(model, 0, n)
			assert.GreaterOrEqual(t, cost, prev, "completion tokens model=%s n=%d", model, n)
			prev = cost
		}
	}
}

func TestEstimator_Estimate_RoundsToSixDecimals(t *testing.T) {
	estimator := DefaultEstimator()

	// 7 prompt tokens at 0.0015/1k is 0.0000105, which rounds half away
	// from zero to 0.000011.
	assert.Equal(t, 0.000011, estimator.Estimate("gpt-3.5-turbo", 7, 0))

	// 1 prompt token at 0.03/1k needs no rounding.
	assert.Equal(t, 0.00003, estimator.Estimate("gpt-4", 1, 0))
}

func TestEstimator_RuleOrderDeterminesPrecedence(t *testing.T) {
	turbo := Rate{Prompt: 0.01, Completion: 0.03}
	generic := Rate{Prompt: 0.03, Completion: 0.06}

	t.Run("specific rule listed first wins", func(t *testing.T) {
		estimator := NewEstimator([]Rule{
			{Match: "gpt-4-turbo", Rate: turbo},
			{Match: "gpt-4", Rate: generic},
		}, DefaultRate)

		assert.Equal(t, turbo, estimator.Rate("gpt-4-turbo-preview"))
		assert.Equal(t, generic, estimator.Rate("gpt-4"))
	})

	t.Run("generic rule listed first shadows the specific one", func(t *testing.T) {
		estimator := NewEstimator([]Rule{
			{Match: "gpt-4", Rate: generic},
			{Match: "gpt-4-turbo", Rate: turbo},
		}, DefaultRate)

		assert.Equal(t, generic, estimator.Rate("gpt-4-turbo-preview"))
	})
}

func TestEstimator_Rate_DefaultFallback(t *testing.T) {
	estimator := DefaultEstimator()

	assert.Equal(t, DefaultRate, estimator.Rate("mistral-large"))
	assert.Equal(t, DefaultRate, estimator.Rate(""))
}

func TestEstimator_Estimate_DoesNotMutateSharedState(t *testing.T) {
	a := DefaultEstimator()
	b := DefaultEstimator()

	_ = a.Estimate("gpt-4", 123, 456)

	assert.Equal(t, b.Estimate("gpt-4", 123, 456), a.Estimate("gpt-4", 123, 456))
	assert.Equal(t, Rate{Prompt: 0.03, Completion: 0.06}, a.Rate("gpt-4"))
}
