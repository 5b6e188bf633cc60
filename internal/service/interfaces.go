// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/ozbooks/agent-smith/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate     *time.Time
	EndDate       *time.Time
	Uncategorized bool
	Limit         int
}

// TransactionSource supplies transactions from an external ledger. The
// categorization core never calls the network directly; this is its only
// view of PocketSmith.
type TransactionSource interface {
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
}

// CategorySource supplies the category catalog used for rule targets and
// LLM prompt building.
type CategorySource interface {
	GetCategories(ctx context.Context) ([]model.Category, error)
}

// TransactionUpdater writes confirmed categorization decisions back to the
// external ledger.
type TransactionUpdater interface {
	UpdateTransaction(ctx context.Context, id string, category string, labels []string) error
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Decision audit log
	SaveDecision(ctx context.Context, txn model.Transaction, result model.CategorizationResult, action model.DecisionAction) error
	GetDecisionsByDateRange(ctx context.Context, start, end time.Time) ([]Decision, error)

	// Rule observability
	IncrementRuleMatchCount(ctx context.Context, ruleName string) error
	GetRuleMatchCounts(ctx context.Context) (map[string]int, error)

	// Rule learning
	SaveRuleCandidate(ctx context.Context, candidate *model.RuleCandidate) error
	GetPendingRuleCandidates(ctx context.Context) ([]model.RuleCandidate, error)
	DeleteRuleCandidate(ctx context.Context, id int64) error

	// CGT lot tracking
	SaveLot(ctx context.Context, lot *model.AssetLot) error
	GetAllLots(ctx context.Context) ([]model.AssetLot, error)
	SaveCGTEvent(ctx context.Context, event *model.CGTEvent) error
	GetCGTEvents(ctx context.Context, start, end time.Time) ([]model.CGTEvent, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Decision is one audited categorization outcome.
type Decision struct {
	DecidedAt     time.Time
	TransactionID string
	Payee         string
	Category      string
	Source        model.CategorizationSource
	Action        model.DecisionAction
	Reasoning     string
	Labels        []string
	Confidence    int
}

// CompletionStats shows the results of a categorization run.
type CompletionStats struct {
	TotalTransactions int
	AutoApplied       int
	UserConfirmed     int
	Skipped           int
	LLMCalls          int
	RulesProposed     int
	Duration          time.Duration
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
