package rules

import (
	"strings"
	"time"
	"unicode"

	"github.com/ozbooks/agent-smith/internal/model"
)

// LearningThreshold is the minimum LLM confidence before a decision is
// worth proposing as a rule.
const LearningThreshold = 90

// ProposeRule derives a candidate category rule from a high-confidence LLM
// decision. It is pure: the candidate is returned for human approval and
// persistence is the caller's job. Returns nil when the decision is not
// LLM-sourced, below the learning threshold, or the payee yields no usable
// merchant token.
func ProposeRule(txn model.Transaction, result model.CategorizationResult) *model.RuleCandidate {
	if result.Source != model.SourceLLM || result.Confidence < LearningThreshold {
		return nil
	}

	merchant := MerchantToken(txn.Payee)
	if merchant == "" {
		return nil
	}

	return &model.RuleCandidate{
		ProposedAt:    time.Now(),
		TransactionID: txn.ID,
		Payee:         txn.Payee,
		Reasoning:     result.Reasoning,
		Rule: model.CategoryRule{
			Name:       "learned-" + strings.ToLower(merchant),
			Patterns:   []string{merchant},
			Category:   result.Category,
			Confidence: result.Confidence,
		},
	}
}

// MerchantToken extracts the leading alphabetic token sequence from a
// payee, e.g. "WOOLWORTHS METRO 123 SYDNEY" -> "WOOLWORTHS METRO". The
// sequence stops at the first token containing a digit, which is usually a
// store number or reference.
func MerchantToken(payee string) string {
	var kept []string
	for _, token := range strings.Fields(payee) {
		alphabetic := true
		for _, r := range token {
			if unicode.IsDigit(r) {
				alphabetic = false
				break
			}
		}
		if !alphabetic {
			break
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}
