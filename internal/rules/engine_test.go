package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozbooks/agent-smith/internal/model"
)

func floatPtr(f float64) *float64 { return &f }

func txn(payee string, amount float64) model.Transaction {
	return model.Transaction{
		ID:        "txn-1",
		Payee:     payee,
		Amount:    amount,
		AccountID: "acc-everyday",
		Date:      time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestMatchCategory(t *testing.T) {
	groceries := model.CategoryRule{
		Name:       "groceries",
		Patterns:   []string{"WOOLWORTHS", "COLES"},
		Category:   "Groceries",
		Confidence: 95,
	}
	fuel := model.CategoryRule{
		Name:       "fuel",
		Patterns:   []string{"COLES EXPRESS"},
		Category:   "Fuel",
		Confidence: 90,
	}

	tests := []struct {
		name        string
		rules       []model.CategoryRule
		payee       string
		amount      float64
		accountID   string
		wantRule    string
		wantNoMatch bool
	}{
		{
			name:     "substring match is case-insensitive",
			rules:    []model.CategoryRule{groceries},
			payee:    "woolworths metro 123",
			amount:   -45.50,
			wantRule: "groceries",
		},
		{
			name:     "first match wins in declaration order",
			rules:    []model.CategoryRule{groceries, fuel},
			payee:    "COLES EXPRESS 4521",
			amount:   -60.00,
			wantRule: "groceries",
		},
		{
			name:     "order reversed changes the winner",
			rules:    []model.CategoryRule{fuel, groceries},
			payee:    "COLES EXPRESS 4521",
			amount:   -60.00,
			wantRule: "fuel",
		},
		{
			name:        "no pattern matches",
			rules:       []model.CategoryRule{groceries},
			payee:       "ACME HARDWARE STORE",
			amount:      -12.00,
			wantNoMatch: true,
		},
		{
			name: "exclusion wins over inclusion",
			rules: []model.CategoryRule{{
				Name:       "groceries",
				Patterns:   []string{"COLES"},
				Exclude:    []string{"COLES EXPRESS"},
				Category:   "Groceries",
				Confidence: 95,
			}},
			payee:       "COLES EXPRESS 4521",
			amount:      -60.00,
			wantNoMatch: true,
		},
		{
			name: "amount below minimum does not match",
			rules: []model.CategoryRule{{
				Name:       "large-transfers",
				Patterns:   []string{"TRANSFER"},
				Category:   "Transfers",
				Confidence: 80,
				AmountMin:  floatPtr(-100.00),
			}},
			payee:       "TRANSFER TO SAVINGS",
			amount:      -250.00,
			wantNoMatch: true,
		},
		{
			name: "amount within inclusive bounds matches",
			rules: []model.CategoryRule{{
				Name:       "coffee",
				Patterns:   []string{"CAFE"},
				Category:   "Eating Out",
				Confidence: 85,
				AmountMin:  floatPtr(-20.00),
				AmountMax:  floatPtr(0.00),
			}},
			payee:    "CAFE DI STASIO",
			amount:   -20.00,
			wantRule: "coffee",
		},
		{
			name: "account restriction blocks other accounts",
			rules: []model.CategoryRule{{
				Name:       "business-software",
				Patterns:   []string{"GITHUB"},
				Category:   "Software",
				Confidence: 90,
				Accounts:   []string{"acc-business"},
			}},
			payee:       "GITHUB.COM",
			amount:      -15.00,
			accountID:   "acc-everyday",
			wantNoMatch: true,
		},
		{
			name: "account restriction allows listed account",
			rules: []model.CategoryRule{{
				Name:       "business-software",
				Patterns:   []string{"GITHUB"},
				Category:   "Software",
				Confidence: 90,
				Accounts:   []string{"acc-business"},
			}},
			payee:     "GITHUB.COM",
			amount:    -15.00,
			accountID: "acc-business",
			wantRule:  "business-software",
		},
		{
			name: "regex rule matches anchored pattern",
			rules: []model.CategoryRule{{
				Name:       "toll-roads",
				Patterns:   []string{`^LINKT\b`},
				Category:   "Tolls",
				Confidence: 92,
				Regex:      true,
			}},
			payee:    "LINKT MELBOURNE",
			amount:   -8.42,
			wantRule: "toll-roads",
		},
		{
			name: "regex rule does not match mid-string when anchored",
			rules: []model.CategoryRule{{
				Name:       "toll-roads",
				Patterns:   []string{`^LINKT\b`},
				Category:   "Tolls",
				Confidence: 92,
				Regex:      true,
			}},
			payee:       "PAYMENT LINKT MELBOURNE",
			amount:      -8.42,
			wantNoMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(tt.rules, nil)
			transaction := txn(tt.payee, tt.amount)
			if tt.accountID != "" {
				transaction.AccountID = tt.accountID
			}

			rule := engine.MatchCategory(transaction)
			if tt.wantNoMatch {
				assert.Nil(t, rule)
				return
			}
			require.NotNil(t, rule)
			assert.Equal(t, tt.wantRule, rule.Name)
		})
	}
}

func TestApplyLabelRules(t *testing.T) {
	labelRules := []model.LabelRule{
		{
			Name:       "tax-deductible",
			Categories: []string{"Software", "Office Supplies"},
			Labels:     []string{"tax-deductible"},
		},
		{
			Name:     "subscription",
			Patterns: []string{"GITHUB", "NETFLIX"},
			Labels:   []string{"subscription", "recurring"},
		},
		{
			Name:     "shared-expense",
			Accounts: []string{"acc-joint"},
			Labels:   []string{"shared"},
		},
	}
	engine := NewEngine(nil, labelRules)

	t.Run("union of all matching rules, sorted and deduplicated", func(t *testing.T) {
		labels := engine.ApplyLabelRules(txn("GITHUB.COM", -15.00), "Software")
		assert.Equal(t, []string{"recurring", "subscription", "tax-deductible"}, labels)
	})

	t.Run("category matching is case-insensitive", func(t *testing.T) {
		labels := engine.ApplyLabelRules(txn("OFFICEWORKS", -30.00), "office supplies")
		assert.Equal(t, []string{"tax-deductible"}, labels)
	})

	t.Run("no matching rules yields nil", func(t *testing.T) {
		labels := engine.ApplyLabelRules(txn("WOOLWORTHS", -45.50), "Groceries")
		assert.Nil(t, labels)
	})

	t.Run("account-scoped label applies on the listed account", func(t *testing.T) {
		transaction := txn("WOOLWORTHS", -45.50)
		transaction.AccountID = "acc-joint"
		labels := engine.ApplyLabelRules(transaction, "Groceries")
		assert.Equal(t, []string{"shared"}, labels)
	})
}

func TestCategorizeAndLabel(t *testing.T) {
	engine := NewEngine(
		[]model.CategoryRule{{
			Name:       "groceries",
			Patterns:   []string{"WOOLWORTHS"},
			Category:   "Groceries",
			Confidence: 95,
		}},
		[]model.LabelRule{{
			Name:       "essentials",
			Categories: []string{"Groceries"},
			Labels:     []string{"essentials"},
		}},
	)

	t.Run("rule match carries category, labels, confidence and source", func(t *testing.T) {
		result := engine.CategorizeAndLabel(txn("WOOLWORTHS METRO 123", -45.50))
		assert.Equal(t, "Groceries", result.Category)
		assert.Equal(t, []string{"essentials"}, result.Labels)
		assert.Equal(t, 95, result.Confidence)
		assert.Equal(t, model.SourceRule, result.Source)
		assert.False(t, result.DecidedAt.IsZero())
	})

	t.Run("no match leaves category empty with none source", func(t *testing.T) {
		result := engine.CategorizeAndLabel(txn("ACME HARDWARE STORE", -12.00))
		assert.Empty(t, result.Category)
		assert.Equal(t, model.SourceNone, result.Source)
		assert.Zero(t, result.Confidence)
	})
}

func TestLabelsFor(t *testing.T) {
	engine := NewEngine(nil, []model.LabelRule{{
		Name:       "tax-deductible",
		Categories: []string{"Hardware & Garden"},
		Labels:     []string{"tax-deductible"},
	}})

	// Label pass with the LLM-resolved category instead of a rule's.
	labels := engine.LabelsFor(txn("ACME HARDWARE STORE", -12.00), "Hardware & Garden")
	assert.Equal(t, []string{"tax-deductible"}, labels)
}

func TestInvalidRegexNeverMatches(t *testing.T) {
	engine := NewEngine([]model.CategoryRule{{
		Name:       "broken",
		Patterns:   []string{"(unclosed"},
		Category:   "Broken",
		Confidence: 50,
		Regex:      true,
	}}, nil)

	assert.Nil(t, engine.MatchCategory(txn("(unclosed", -10.00)))
}
