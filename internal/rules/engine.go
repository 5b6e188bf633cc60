// Package rules implements the two-phase rule engine: an ordered
// first-match-wins category pass followed by a union label pass.
package rules

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ozbooks/agent-smith/internal/model"
)

// Engine evaluates category and label rules against transactions. Matching
// is a pure function of the transaction and the rule lists; the engine
// holds no mutable state beyond pre-compiled regexes, so concurrent reads
// are safe.
type Engine struct {
	categoryRegex map[string]*regexp.Regexp
	labelRegex    map[string]*regexp.Regexp
	categoryRules []model.CategoryRule
	labelRules    []model.LabelRule
}

// NewEngine creates an engine over the given rule lists. Regex patterns are
// pre-compiled; a pattern that fails to compile never matches.
func NewEngine(categoryRules []model.CategoryRule, labelRules []model.LabelRule) *Engine {
	e := &Engine{
		categoryRules: categoryRules,
		labelRules:    labelRules,
		categoryRegex: make(map[string]*regexp.Regexp),
		labelRegex:    make(map[string]*regexp.Regexp),
	}

	for _, rule := range categoryRules {
		if !rule.Regex {
			continue
		}
		for _, p := range append(append([]string{}, rule.Patterns...), rule.Exclude...) {
			if re, err := regexp.Compile("(?i)" + p); err == nil {
				e.categoryRegex[ruleKey(rule.Name, p)] = re
			}
		}
	}
	for _, rule := range labelRules {
		if !rule.Regex {
			continue
		}
		for _, p := range rule.Patterns {
			if re, err := regexp.Compile("(?i)" + p); err == nil {
				e.labelRegex[ruleKey(rule.Name, p)] = re
			}
		}
	}

	return e
}

func ruleKey(rule, pattern string) string {
	return rule + "\x00" + pattern
}

// MatchCategory returns the first category rule (in declaration order)
// matching the transaction, or nil when none matches. A nil result is the
// expected no-match state, not an error.
func (e *Engine) MatchCategory(txn model.Transaction) *model.CategoryRule {
	for i := range e.categoryRules {
		rule := &e.categoryRules[i]
		if e.matchesCategoryRule(txn, rule) {
			return rule
		}
	}
	return nil
}

// matchesCategoryRule checks inclusion patterns, exclusions, amount bounds,
// and the account allow-list. Exclusion always wins over inclusion on the
// same rule.
func (e *Engine) matchesCategoryRule(txn model.Transaction, rule *model.CategoryRule) bool {
	if !e.anyPatternMatches(txn.Payee, rule.Patterns, rule.Regex, rule.Name, e.categoryRegex) {
		return false
	}
	if e.anyPatternMatches(txn.Payee, rule.Exclude, rule.Regex, rule.Name, e.categoryRegex) {
		return false
	}
	if !amountWithin(txn.Amount, rule.AmountMin, rule.AmountMax) {
		return false
	}
	if len(rule.Accounts) > 0 && !contains(rule.Accounts, txn.AccountID) {
		return false
	}
	return true
}

// ApplyLabelRules returns the union of labels from every matching label
// rule, deduplicated and sorted. Label rules match against the already
// resolved category, not the transaction's raw category field. An empty
// result is not an error.
func (e *Engine) ApplyLabelRules(txn model.Transaction, resolvedCategory string) []string {
	seen := make(map[string]struct{})

	for i := range e.labelRules {
		rule := &e.labelRules[i]
		if !e.matchesLabelRule(txn, resolvedCategory, rule) {
			continue
		}
		for _, label := range rule.Labels {
			seen[label] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return nil
	}

	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func (e *Engine) matchesLabelRule(txn model.Transaction, resolvedCategory string, rule *model.LabelRule) bool {
	if len(rule.Categories) > 0 && !containsFold(rule.Categories, resolvedCategory) {
		return false
	}
	if len(rule.Accounts) > 0 && !contains(rule.Accounts, txn.AccountID) {
		return false
	}
	if len(rule.Patterns) > 0 && !e.anyPatternMatches(txn.Payee, rule.Patterns, rule.Regex, rule.Name, e.labelRegex) {
		return false
	}
	if !amountWithin(txn.Amount, rule.AmountMin, rule.AmountMax) {
		return false
	}
	return true
}

// CategorizeAndLabel runs the category pass and, when a category resolves,
// the label pass. When no rule matches, the category is left empty and
// source/confidence finalization belongs to the caller (the hybrid flow).
func (e *Engine) CategorizeAndLabel(txn model.Transaction) model.CategorizationResult {
	rule := e.MatchCategory(txn)
	if rule == nil {
		return model.CategorizationResult{
			Source:    model.SourceNone,
			DecidedAt: time.Now(),
		}
	}

	return model.CategorizationResult{
		Category:   rule.Category,
		Labels:     e.ApplyLabelRules(txn, rule.Category),
		Confidence: rule.Confidence,
		Source:     model.SourceRule,
		DecidedAt:  time.Now(),
	}
}

// LabelsFor runs only the label pass with an externally supplied category,
// used when the LLM fallback resolves the category.
func (e *Engine) LabelsFor(txn model.Transaction, category string) []string {
	return e.ApplyLabelRules(txn, category)
}

// anyPatternMatches reports whether any pattern matches the payee,
// case-insensitive substring by default, regex when the rule is flagged.
func (e *Engine) anyPatternMatches(payee string, patterns []string, isRegex bool, ruleName string, compiled map[string]*regexp.Regexp) bool {
	if len(patterns) == 0 {
		return false
	}

	lowered := strings.ToLower(payee)
	for _, p := range patterns {
		if isRegex {
			if re, ok := compiled[ruleKey(ruleName, p)]; ok && re.MatchString(payee) {
				return true
			}
			continue
		}
		if strings.Contains(lowered, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// amountWithin checks inclusive bounds against the signed amount.
func amountWithin(amount float64, minAmount, maxAmount *float64) bool {
	if minAmount != nil && amount < *minAmount {
		return false
	}
	if maxAmount != nil && amount > *maxAmount {
		return false
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
