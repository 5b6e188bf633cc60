// Package flow implements the hybrid categorization flow: rule engine
// first, LLM fallback for misses, confidence-gated apply/ask/skip, and
// rule learning from confirmed LLM decisions.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ozbooks/agent-smith/internal/llm"
	"github.com/ozbooks/agent-smith/internal/model"
	"github.com/ozbooks/agent-smith/internal/rules"
	"github.com/ozbooks/agent-smith/internal/service"
)

// Flow orchestrates the rule engine, LLM fallback, decision gate, and rule
// learning for one transaction or a batch.
type Flow struct {
	engine     *rules.Engine
	classifier Classifier
	prompter   Prompter
	storage    service.Storage
	updater    service.TransactionUpdater
	stats      *rules.Stats
	progress   func(processed, total int)
	mode       model.IntelligenceMode
}

// Config holds configuration options for the flow.
type Config struct {
	// Progress, when set, is called after each transaction is acted on.
	Progress func(processed, total int)
	Mode     model.IntelligenceMode
}

// New creates a flow over the given collaborators. Storage and updater may
// be nil for dry runs; the prompter may be nil when the mode's ask band is
// never reachable.
func New(engine *rules.Engine, classifier Classifier, prompter Prompter, storage service.Storage, updater service.TransactionUpdater, cfg Config) *Flow {
	mode := cfg.Mode
	if mode == "" {
		mode = model.ModeConservative
	}

	return &Flow{
		engine:     engine,
		classifier: classifier,
		prompter:   prompter,
		storage:    storage,
		updater:    updater,
		stats:      rules.NewStats(),
		progress:   cfg.Progress,
		mode:       mode,
	}
}

// Stats exposes the rule match-count side table.
func (f *Flow) Stats() *rules.Stats {
	return f.stats
}

// Categorize resolves one transaction: rules first, then the LLM fallback.
// LLM failures and unparseable responses degrade to a source=none result;
// they are never retried here (retry policy lives in the classifier) and
// never corrupt rule state.
func (f *Flow) Categorize(ctx context.Context, txn model.Transaction, categories []model.Category) model.CategorizationResult {
	if rule := f.engine.MatchCategory(txn); rule != nil {
		f.stats.RecordMatch(rule.Name)
		return model.CategorizationResult{
			Category:   rule.Category,
			Labels:     f.engine.ApplyLabelRules(txn, rule.Category),
			Confidence: rule.Confidence,
			Source:     model.SourceRule,
			DecidedAt:  time.Now(),
		}
	}

	if f.classifier == nil {
		return noneResult()
	}

	resp, err := f.classifier.SuggestCategory(ctx, txn, categories)
	if err != nil {
		slog.Warn("LLM fallback failed, leaving transaction uncategorized",
			"transaction_id", txn.ID,
			"payee", txn.Payee,
			"error", err)
		return noneResult()
	}

	if resp.Category == "" {
		return noneResult()
	}

	return model.CategorizationResult{
		Category:   resp.Category,
		Labels:     f.engine.ApplyLabelRules(txn, resp.Category),
		Confidence: resp.Confidence,
		Source:     model.SourceLLM,
		LLMUsed:    true,
		Reasoning:  resp.Reasoning,
		DecidedAt:  time.Now(),
	}
}

func noneResult() model.CategorizationResult {
	return model.CategorizationResult{
		Source:    model.SourceNone,
		DecidedAt: time.Now(),
	}
}

// BatchResult is the outcome of a batch run. When External is set the
// batch exceeded the inline budget and nothing past the rule pass was
// executed: the caller owns dispatching the delegated work.
type BatchResult struct {
	External   *model.ExternalCallRequest
	Results    map[string]model.CategorizationResult
	Candidates []model.RuleCandidate
	Stats      service.CompletionStats
}

// ProcessBatch runs the full flow over a transaction batch. A cancelled
// context aborts cleanly: transactions not yet resolved stay untouched
// (NONE), never half-labeled.
func (f *Flow) ProcessBatch(ctx context.Context, txns []model.Transaction, categories []model.Category) (*BatchResult, error) {
	started := time.Now()
	result := &BatchResult{
		Results: make(map[string]model.CategorizationResult, len(txns)),
	}
	result.Stats.TotalTransactions = len(txns)

	// Rule pass first: anything a rule resolves never costs an LLM call,
	// and what remains decides whether the batch is delegated.
	var needsLLM []model.Transaction
	for i := range txns {
		txn := txns[i]
		if rule := f.engine.MatchCategory(txn); rule != nil {
			f.stats.RecordMatch(rule.Name)
			if f.storage != nil {
				if err := f.storage.IncrementRuleMatchCount(ctx, rule.Name); err != nil {
					slog.Warn("failed to persist rule match count",
						"rule", rule.Name,
						"error", err)
				}
			}
			result.Results[txn.ID] = model.CategorizationResult{
				Category:   rule.Category,
				Labels:     f.engine.ApplyLabelRules(txn, rule.Category),
				Confidence: rule.Confidence,
				Source:     model.SourceRule,
				DecidedAt:  time.Now(),
			}
		} else {
			needsLLM = append(needsLLM, txn)
		}
	}

	if estimate := EstimateComplexity(needsLLM, categories); estimate.NeedsDelegation() {
		slog.Info("batch exceeds inline budget, signalling delegation",
			"llm_transactions", estimate.TransactionCount,
			"estimated_tokens", estimate.EstimatedTokens)
		result.External = externalRequest(needsLLM, categories, estimate)
		return result, nil
	}

	for _, txn := range needsLLM {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		r := f.Categorize(ctx, txn, categories)
		result.Results[txn.ID] = r
		if r.LLMUsed {
			result.Stats.LLMCalls++
		}

		if candidate := rules.ProposeRule(txn, r); candidate != nil {
			result.Candidates = append(result.Candidates, *candidate)
		}
	}

	// Decision gate over every result, rule- and llm-sourced alike.
	processed := 0
	for i := range txns {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		txn := txns[i]
		r, ok := result.Results[txn.ID]
		if !ok {
			continue
		}

		if err := f.decide(ctx, txn, r, categories, &result.Stats); err != nil {
			if errors.Is(err, context.Canceled) {
				return result, err
			}
			slog.Error("failed to act on categorization",
				"transaction_id", txn.ID,
				"error", err)
		}

		processed++
		if f.progress != nil {
			f.progress(processed, len(txns))
		}
	}

	for i := range result.Candidates {
		if f.storage == nil {
			break
		}
		if err := f.storage.SaveRuleCandidate(ctx, &result.Candidates[i]); err != nil {
			slog.Warn("failed to save rule candidate",
				"rule", result.Candidates[i].Rule.Name,
				"error", err)
		} else {
			result.Stats.RulesProposed++
		}
	}

	result.Stats.Duration = time.Since(started)
	return result, nil
}

// decide runs the gate for one result and performs the chosen action.
func (f *Flow) decide(ctx context.Context, txn model.Transaction, r model.CategorizationResult, categories []model.Category, stats *service.CompletionStats) error {
	action := Decide(r, f.mode)

	switch action {
	case model.ActionApply:
		if err := f.apply(ctx, txn, r); err != nil {
			return err
		}
		stats.AutoApplied++

	case model.ActionAsk:
		if f.prompter == nil {
			stats.Skipped++
			action = model.ActionSkip
			break
		}
		confirmed, ok, err := f.prompter.ConfirmCategorization(ctx, Pending{
			Transaction: txn,
			Result:      r,
			Categories:  categories,
		})
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			stats.Skipped++
			action = model.ActionSkip
			break
		}
		r = confirmed
		if err := f.apply(ctx, txn, r); err != nil {
			return err
		}
		stats.UserConfirmed++

	case model.ActionSkip:
		stats.Skipped++
	}

	if f.storage != nil {
		if err := f.storage.SaveDecision(ctx, txn, r, action); err != nil {
			slog.Warn("failed to record decision",
				"transaction_id", txn.ID,
				"error", err)
		}
	}

	return nil
}

func (f *Flow) apply(ctx context.Context, txn model.Transaction, r model.CategorizationResult) error {
	if f.updater == nil {
		return nil
	}
	if err := f.updater.UpdateTransaction(ctx, txn.ID, r.Category, r.Labels); err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", txn.ID, err)
	}
	return nil
}

func externalRequest(txns []model.Transaction, categories []model.Category, estimate ComplexityEstimate) *model.ExternalCallRequest {
	ids := make([]string, len(txns))
	var prompt string
	for i, txn := range txns {
		ids[i] = txn.ID
		if i == 0 {
			prompt = llm.BuildPrompt(txn, categories)
		}
	}
	return &model.ExternalCallRequest{
		Prompt:          prompt,
		TransactionIDs:  ids,
		EstimatedTokens: estimate.EstimatedTokens,
	}
}
