package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ozbooks/agent-smith/internal/model"
	"github.com/ozbooks/agent-smith/internal/service"
)

// SaveDecision appends one categorization outcome to the audit log. Every
// non-rule-sourced decision carries source, confidence, and reasoning so a
// reviewer can audit why a category was chosen.
func (s *SQLiteStorage) SaveDecision(ctx context.Context, txn model.Transaction, result model.CategorizationResult, action model.DecisionAction) error {
	decidedAt := result.DecidedAt
	if decidedAt.IsZero() {
		decidedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (transaction_id, payee, category, labels, source, confidence, action, reasoning, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.Payee, result.Category, strings.Join(result.Labels, ","),
		string(result.Source), result.Confidence, string(action), result.Reasoning, decidedAt)
	if err != nil {
		return fmt.Errorf("failed to save decision: %w", err)
	}
	return nil
}

// GetDecisionsByDateRange returns the audit log entries in [start, end].
func (s *SQLiteStorage) GetDecisionsByDateRange(ctx context.Context, start, end time.Time) ([]service.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, payee, category, labels, source, confidence, action, reasoning, decided_at
		FROM decisions
		WHERE decided_at >= ? AND decided_at <= ?
		ORDER BY decided_at`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []service.Decision
	for rows.Next() {
		var d service.Decision
		var labels, source, action string
		if err := rows.Scan(&d.TransactionID, &d.Payee, &d.Category, &labels,
			&source, &d.Confidence, &action, &d.Reasoning, &d.DecidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		if labels != "" {
			d.Labels = strings.Split(labels, ",")
		}
		d.Source = model.CategorizationSource(source)
		d.Action = model.DecisionAction(action)
		decisions = append(decisions, d)
	}

	return decisions, rows.Err()
}

// IncrementRuleMatchCount bumps a rule's persisted match counter.
func (s *SQLiteStorage) IncrementRuleMatchCount(ctx context.Context, ruleName string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rule_stats (rule_name, match_count, last_matched_at)
		VALUES (?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(rule_name) DO UPDATE SET
			match_count = match_count + 1,
			last_matched_at = CURRENT_TIMESTAMP`,
		ruleName)
	if err != nil {
		return fmt.Errorf("failed to increment rule match count: %w", err)
	}
	return nil
}

// GetRuleMatchCounts returns all persisted rule match counters.
func (s *SQLiteStorage) GetRuleMatchCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT rule_name, match_count FROM rule_stats`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("failed to scan rule stat: %w", err)
		}
		counts[name] = count
	}

	return counts, rows.Err()
}
