package rules

import "sync"

// Stats tracks per-rule match counts as an explicit side table keyed by
// rule name. Counting lives outside the matcher so MatchCategory stays a
// pure function; callers record matches after each evaluation.
type Stats struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewStats creates an empty match-count table.
func NewStats() *Stats {
	return &Stats{counts: make(map[string]int)}
}

// RecordMatch increments the counter for a rule.
func (s *Stats) RecordMatch(ruleName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[ruleName]++
}

// Counts returns a copy of the current match counts.
func (s *Stats) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}
