// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// PocketSmith errors. ErrNotFound covers lookups against its
	// resources, e.g. resolving a category title that does not exist.
	ErrNotFound             = errors.New("not found")
	ErrPocketSmithAuth      = errors.New("pocketsmith authentication failed")
	ErrPocketSmithRateLimit = errors.New("pocketsmith rate limit exceeded")

	// Categorization errors. ErrNoRuleMatch is an expected terminal state,
	// not a failure: it is what sends a transaction to the LLM fallback.
	ErrNoRuleMatch    = errors.New("no rule match")
	ErrLLMUnavailable = errors.New("llm unavailable")
	ErrLLMParse       = errors.New("llm response unparseable")

	// CGT errors.
	ErrInsufficientLots = errors.New("insufficient lots for sale")
	ErrInvalidQuantity  = errors.New("quantity must be positive")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry. Cancellation
// never does: a cancelled context stays cancelled.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrPocketSmithRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
