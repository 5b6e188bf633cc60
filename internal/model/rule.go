// Package model defines the core domain models used throughout the application.
package model

import "time"

// CategoryRule assigns a category to transactions whose payee matches one of
// its inclusion patterns. Rules are evaluated in declaration order and the
// first match wins.
type CategoryRule struct {
	CreatedAt  time.Time `yaml:"created_at,omitempty"`
	AmountMin  *float64  `yaml:"amount_min,omitempty"`
	AmountMax  *float64  `yaml:"amount_max,omitempty"`
	Name       string    `yaml:"name"`
	Category   string    `yaml:"category"`
	Patterns   []string  `yaml:"patterns"`
	Exclude    []string  `yaml:"exclude,omitempty"`
	Accounts   []string  `yaml:"accounts,omitempty"`
	Confidence int       `yaml:"confidence"`
	Regex      bool      `yaml:"regex,omitempty"`
}

// LabelRule applies a set of labels to transactions matching its predicate.
// Unlike category rules, every matching label rule contributes: labels are
// unioned, deduplicated, and sorted.
type LabelRule struct {
	AmountMin  *float64 `yaml:"amount_min,omitempty"`
	AmountMax  *float64 `yaml:"amount_max,omitempty"`
	Name       string   `yaml:"name"`
	Categories []string `yaml:"categories,omitempty"`
	Accounts   []string `yaml:"accounts,omitempty"`
	Patterns   []string `yaml:"patterns,omitempty"`
	Labels     []string `yaml:"labels"`
	Confidence int      `yaml:"confidence"`
	Regex      bool     `yaml:"regex,omitempty"`
}

// RuleCandidate is a category rule proposed by the rule-learning step from a
// high-confidence LLM decision. Candidates are surfaced for human approval
// and are never added to the active rule set automatically.
type RuleCandidate struct {
	ProposedAt    time.Time
	Rule          CategoryRule
	TransactionID string
	Payee         string
	Reasoning     string
	ID            int64
}
