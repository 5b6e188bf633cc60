package flow

import (
	"context"

	"github.com/ozbooks/agent-smith/internal/llm"
	"github.com/ozbooks/agent-smith/internal/model"
)

// Classifier defines the contract for the LLM fallback.
type Classifier interface {
	// SuggestCategory returns the model's (category, confidence, reasoning)
	// triple for a transaction. An empty category means no confident match,
	// which is a valid answer, not an error.
	SuggestCategory(ctx context.Context, txn model.Transaction, categories []model.Category) (*llm.ClassificationResponse, error)
}

// Pending is a categorization awaiting user confirmation.
type Pending struct {
	Transaction model.Transaction
	Result      model.CategorizationResult
	Categories  []model.Category
}

// Prompter defines the contract for user interaction at the ask-user gate.
type Prompter interface {
	// ConfirmCategorization presents a pending decision. The returned result
	// may carry a user-adjusted category; ok=false means the user skipped.
	ConfirmCategorization(ctx context.Context, pending Pending) (result model.CategorizationResult, ok bool, err error)
}
