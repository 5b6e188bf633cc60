package model

import "time"

// CategorizationSource indicates how a transaction's category was decided.
type CategorizationSource string

// Categorization source constants.
const (
	SourceRule CategorizationSource = "rule"
	SourceLLM  CategorizationSource = "llm"
	SourceNone CategorizationSource = "none"
)

// CategorizationResult is the outcome of running a transaction through the
// rule engine and, when needed, the LLM fallback. Results are created fresh
// per evaluation and never mutated afterwards.
type CategorizationResult struct {
	DecidedAt  time.Time
	Category   string
	Source     CategorizationSource
	Reasoning  string   // Present only when Source == SourceLLM
	Labels     []string // Deduplicated, sorted
	Confidence int      // 0-100
	LLMUsed    bool
}

// ExternalCallRequest carries the work the flow cannot resolve inline: a
// prepared prompt and the transactions it covers, to be executed by an
// orchestration layer holding model access.
type ExternalCallRequest struct {
	Prompt          string
	TransactionIDs  []string
	EstimatedTokens int
}

// DecisionAction is the gate decision taken for a categorization result.
type DecisionAction string

// Decision action constants.
const (
	ActionApply DecisionAction = "apply"
	ActionAsk   DecisionAction = "ask"
	ActionSkip  DecisionAction = "skip"
)
