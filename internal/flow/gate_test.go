package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ozbooks/agent-smith/internal/model"
)

func TestShouldAutoApply(t *testing.T) {
	tests := []struct {
		name       string
		mode       model.IntelligenceMode
		confidence int
		want       bool
	}{
		{name: "conservative never applies at 100", mode: model.ModeConservative, confidence: 100, want: false},
		{name: "conservative never applies at 0", mode: model.ModeConservative, confidence: 0, want: false},
		{name: "smart applies at 90", mode: model.ModeSmart, confidence: 90, want: true},
		{name: "smart does not apply at 89", mode: model.ModeSmart, confidence: 89, want: false},
		{name: "aggressive applies at 80", mode: model.ModeAggressive, confidence: 80, want: true},
		{name: "aggressive does not apply at 79", mode: model.ModeAggressive, confidence: 79, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldAutoApply(tt.confidence, tt.mode))
		})
	}
}

func TestShouldAskUser(t *testing.T) {
	tests := []struct {
		name       string
		mode       model.IntelligenceMode
		confidence int
		want       bool
	}{
		{name: "smart asks at 85", mode: model.ModeSmart, confidence: 85, want: true},
		{name: "smart asks at exactly 70", mode: model.ModeSmart, confidence: 70, want: true},
		{name: "smart does not ask below 70", mode: model.ModeSmart, confidence: 69, want: false},
		{name: "smart does not ask at auto-apply level", mode: model.ModeSmart, confidence: 90, want: false},
		{name: "aggressive asks at 50", mode: model.ModeAggressive, confidence: 50, want: true},
		{name: "aggressive does not ask at 49", mode: model.ModeAggressive, confidence: 49, want: false},
		{name: "conservative asks even at 100", mode: model.ModeConservative, confidence: 100, want: true},
		{name: "conservative asks at 0", mode: model.ModeConservative, confidence: 0, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldAskUser(tt.confidence, tt.mode))
		})
	}
}

func TestThresholdOrdering(t *testing.T) {
	conservative := model.ModeConservative.Thresholds()
	smart := model.ModeSmart.Thresholds()
	aggressive := model.ModeAggressive.Thresholds()

	assert.Greater(t, conservative.AutoApply, smart.AutoApply)
	assert.Greater(t, smart.AutoApply, aggressive.AutoApply)
	assert.Greater(t, conservative.AutoApply, 100)
}

func TestDecide(t *testing.T) {
	result := func(category string, confidence int, source model.CategorizationSource) model.CategorizationResult {
		return model.CategorizationResult{Category: category, Confidence: confidence, Source: source}
	}

	tests := []struct {
		name   string
		result model.CategorizationResult
		mode   model.IntelligenceMode
		want   model.DecisionAction
	}{
		{
			name:   "empty category always skips",
			result: result("", 95, model.SourceNone),
			mode:   model.ModeAggressive,
			want:   model.ActionSkip,
		},
		{
			name:   "high confidence applies under smart",
			result: result("Groceries", 95, model.SourceRule),
			mode:   model.ModeSmart,
			want:   model.ActionApply,
		},
		{
			name:   "ask band asks under smart",
			result: result("Hardware & Garden", 85, model.SourceLLM),
			mode:   model.ModeSmart,
			want:   model.ActionAsk,
		},
		{
			name:   "below ask floor skips",
			result: result("Misc", 40, model.SourceLLM),
			mode:   model.ModeSmart,
			want:   model.ActionSkip,
		},
		{
			name:   "conservative asks even at full confidence",
			result: result("Groceries", 100, model.SourceRule),
			mode:   model.ModeConservative,
			want:   model.ActionAsk,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.result, tt.mode))
		})
	}
}

func TestNeedsDelegation(t *testing.T) {
	tests := []struct {
		name     string
		estimate ComplexityEstimate
		want     bool
	}{
		{name: "at both limits stays inline", estimate: ComplexityEstimate{TransactionCount: DelegationTransactionLimit, EstimatedTokens: DelegationTokenBudget}, want: false},
		{name: "transaction count over limit", estimate: ComplexityEstimate{TransactionCount: DelegationTransactionLimit + 1}, want: true},
		{name: "token budget over limit", estimate: ComplexityEstimate{TransactionCount: 5, EstimatedTokens: DelegationTokenBudget + 1}, want: true},
		{name: "empty batch stays inline", estimate: ComplexityEstimate{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.estimate.NeedsDelegation())
		})
	}
}

func TestEstimateComplexity(t *testing.T) {
	txns := []model.Transaction{
		{ID: "1", Payee: "MYSTERY SHOP"},
		{ID: "2", Payee: "ANOTHER SHOP"},
	}
	categories := []model.Category{{ID: 1, Title: "Groceries"}}

	estimate := EstimateComplexity(txns, categories)
	assert.Equal(t, 2, estimate.TransactionCount)
	assert.Positive(t, estimate.EstimatedTokens)
	assert.True(t, estimate.Parallelizable)
}
