package flow

import (
	"github.com/ozbooks/agent-smith/internal/llm"
	"github.com/ozbooks/agent-smith/internal/model"
)

// Delegation thresholds: batches needing LLM work beyond either bound are
// signalled for parallel-worker dispatch instead of being run inline.
const (
	DelegationTransactionLimit = 100
	DelegationTokenBudget      = 50000
)

// ComplexityEstimate describes the LLM work a batch would require.
type ComplexityEstimate struct {
	TransactionCount int
	EstimatedTokens  int
	Parallelizable   bool
}

// NeedsDelegation reports whether the batch should be handed to a parallel
// worker rather than processed inline.
func (e ComplexityEstimate) NeedsDelegation() bool {
	return e.TransactionCount > DelegationTransactionLimit || e.EstimatedTokens > DelegationTokenBudget
}

// EstimateComplexity sizes the LLM work for the transactions no rule
// matched. Transactions are independent, so the work is always
// parallelizable; the shared rule list is read-only during evaluation.
func EstimateComplexity(txns []model.Transaction, categories []model.Category) ComplexityEstimate {
	estimate := ComplexityEstimate{
		TransactionCount: len(txns),
		Parallelizable:   true,
	}

	for i := range txns {
		estimate.EstimatedTokens += llm.EstimateTokens(llm.BuildPrompt(txns[i], categories))
	}

	return estimate
}
