package model

import "fmt"

// IntelligenceMode controls how aggressively the flow applies
// categorizations without human confirmation.
type IntelligenceMode string

// Intelligence mode constants.
const (
	ModeConservative IntelligenceMode = "conservative"
	ModeSmart        IntelligenceMode = "smart"
	ModeAggressive   IntelligenceMode = "aggressive"
)

// ModeThresholds holds the confidence gates for a mode. AutoApply is the
// minimum confidence for unattended application; AskUser is the minimum
// confidence worth prompting about. Below AskUser the transaction is
// skipped.
type ModeThresholds struct {
	AutoApply int
	AskUser   int
}

// autoApplyNever is above any reachable confidence, so conservative mode
// always requires confirmation.
const autoApplyNever = 101

var modeThresholds = map[IntelligenceMode]ModeThresholds{
	ModeConservative: {AutoApply: autoApplyNever, AskUser: 0},
	ModeSmart:        {AutoApply: 90, AskUser: 70},
	ModeAggressive:   {AutoApply: 80, AskUser: 50},
}

// ParseIntelligenceMode converts a config string into a mode.
func ParseIntelligenceMode(s string) (IntelligenceMode, error) {
	switch IntelligenceMode(s) {
	case ModeConservative, ModeSmart, ModeAggressive:
		return IntelligenceMode(s), nil
	default:
		return "", fmt.Errorf("invalid intelligence mode: %q", s)
	}
}

// Thresholds returns the confidence gates for the mode. Unknown modes fall
// back to conservative, the safest behavior.
func (m IntelligenceMode) Thresholds() ModeThresholds {
	if t, ok := modeThresholds[m]; ok {
		return t
	}
	return modeThresholds[ModeConservative]
}
