package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ozbooks/agent-smith/internal/model"
)

// SaveRuleCandidate stores a proposed rule pending human approval.
func (s *SQLiteStorage) SaveRuleCandidate(ctx context.Context, candidate *model.RuleCandidate) error {
	proposedAt := candidate.ProposedAt
	if proposedAt.IsZero() {
		proposedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rule_candidates (name, pattern, category, confidence, transaction_id, payee, reasoning, proposed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		candidate.Rule.Name,
		strings.Join(candidate.Rule.Patterns, "|"),
		candidate.Rule.Category,
		candidate.Rule.Confidence,
		candidate.TransactionID,
		candidate.Payee,
		candidate.Reasoning,
		proposedAt)
	if err != nil {
		return fmt.Errorf("failed to save rule candidate: %w", err)
	}
	return nil
}

// GetPendingRuleCandidates returns all candidates awaiting approval.
func (s *SQLiteStorage) GetPendingRuleCandidates(ctx context.Context) ([]model.RuleCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, pattern, category, confidence, transaction_id, payee, reasoning, proposed_at
		FROM rule_candidates
		ORDER BY proposed_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []model.RuleCandidate
	for rows.Next() {
		var c model.RuleCandidate
		var pattern string
		if err := rows.Scan(&c.ID, &c.Rule.Name, &pattern, &c.Rule.Category,
			&c.Rule.Confidence, &c.TransactionID, &c.Payee, &c.Reasoning, &c.ProposedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule candidate: %w", err)
		}
		c.Rule.Patterns = strings.Split(pattern, "|")
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// DeleteRuleCandidate removes a candidate after approval or rejection.
func (s *SQLiteStorage) DeleteRuleCandidate(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rule_candidates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule candidate: %w", err)
	}
	return nil
}
