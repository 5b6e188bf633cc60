package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Transaction represents a single bank transaction fetched from PocketSmith.
// It is read-only input to the categorization core; the core never mutates
// it, and every re-evaluation produces a fresh result.
type Transaction struct {
	Date      time.Time
	ID        string
	Payee     string // Raw payee string from the bank feed
	Memo      string
	AccountID string
	Category  string   // Existing category, if any
	Labels    []string // Existing labels, if any
	Amount    float64  // Signed: negative for spend, positive for income
}

// Hash creates a stable key for LLM suggestion caching and duplicate
// detection.
func (t *Transaction) Hash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.Payee,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
