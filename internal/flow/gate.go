package flow

import "github.com/ozbooks/agent-smith/internal/model"

// ShouldAutoApply reports whether a result at the given confidence may be
// applied without confirmation under the mode. Conservative mode's
// threshold is unreachable, so it never auto-applies even at 100.
func ShouldAutoApply(confidence int, mode model.IntelligenceMode) bool {
	return confidence >= mode.Thresholds().AutoApply
}

// ShouldAskUser reports whether the result falls in the mode's ask band:
// at or above the ask threshold but below auto-apply.
func ShouldAskUser(confidence int, mode model.IntelligenceMode) bool {
	t := mode.Thresholds()
	return confidence >= t.AskUser && confidence < t.AutoApply
}

// Decide maps a categorization result to the gate action. Results with no
// category are always skipped; below the ask threshold is a designed skip,
// not an error.
func Decide(result model.CategorizationResult, mode model.IntelligenceMode) model.DecisionAction {
	if result.Category == "" || result.Source == model.SourceNone {
		return model.ActionSkip
	}
	if ShouldAutoApply(result.Confidence, mode) {
		return model.ActionApply
	}
	if ShouldAskUser(result.Confidence, mode) {
		return model.ActionAsk
	}
	return model.ActionSkip
}
