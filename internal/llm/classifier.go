package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ozbooks/agent-smith/internal/common"
	"github.com/ozbooks/agent-smith/internal/model"
	"github.com/ozbooks/agent-smith/internal/service"
)

// Classifier wraps a Client with prompt building, caching, rate limiting,
// and retries.
type Classifier struct {
	client      Client
	cache       *suggestionCache
	logger      *slog.Logger
	rateLimiter *rateLimiter
	retryOpts   service.RetryOptions
}

// Config holds configuration for the LLM classifier.
type Config struct {
	Provider   string
	APIKey     string
	Model      string
	MaxRetries int
	RetryDelay time.Duration
	CacheTTL   time.Duration
	RateLimit  int
	MaxTokens  int
}

// NewClassifier creates a new LLM-based classifier.
func NewClassifier(cfg Config, logger *slog.Logger) (*Classifier, error) {
	var client Client
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "", "anthropic":
		client, err = newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider %q", common.ErrInvalidConfig, cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	return NewClassifierWithClient(client, cfg, logger), nil
}

// NewClassifierWithClient wires a classifier around an existing client,
// used by tests with a mock.
func NewClassifierWithClient(client Client, cfg Config, logger *slog.Logger) *Classifier {
	retryOpts := common.DefaultRetryOptions()
	if cfg.MaxRetries > 0 {
		retryOpts.MaxAttempts = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		retryOpts.InitialDelay = cfg.RetryDelay
	}

	return &Classifier{
		client:      client,
		cache:       newSuggestionCache(cfg.CacheTTL),
		logger:      logger,
		retryOpts:   retryOpts,
		rateLimiter: newRateLimiter(cfg.RateLimit),
	}
}

// SuggestCategory asks the model to categorize a single transaction
// against the available catalog. A response with an empty category means
// the model had no confident match; that is a valid answer, not an error.
func (c *Classifier) SuggestCategory(ctx context.Context, txn model.Transaction, categories []model.Category) (*ClassificationResponse, error) {
	if suggestion, found := c.cache.get(txn.Hash()); found {
		c.logger.Debug("cache hit for transaction",
			"transaction_id", txn.ID,
			"payee", txn.Payee)
		return &suggestion, nil
	}

	if err := c.rateLimiter.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	prompt := BuildPrompt(txn, categories)

	var resp *ClassificationResponse
	err := common.WithRetry(ctx, func() error {
		var classifyErr error
		resp, classifyErr = c.client.Classify(ctx, prompt)
		if classifyErr != nil {
			c.logger.Warn("LLM classification attempt failed",
				"error", classifyErr,
				"transaction_id", txn.ID)
			return &common.RetryableError{Err: classifyErr, Retryable: true}
		}
		return nil
	}, c.retryOpts)
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	c.cache.set(txn.Hash(), *resp)

	c.logger.Info("transaction classified",
		"transaction_id", txn.ID,
		"payee", txn.Payee,
		"category", resp.Category,
		"confidence", resp.Confidence)

	return resp, nil
}

// BuildPrompt creates the categorization prompt for one transaction. It is
// exported so the flow can carry it inside a NeedsExternalCall outcome when
// work is delegated instead of run inline.
func BuildPrompt(txn model.Transaction, categories []model.Category) string {
	var categoryList strings.Builder
	for _, cat := range categories {
		categoryList.WriteString("- " + cat.FullTitle() + "\n")
	}

	details := fmt.Sprintf("Payee: %s\nAmount: $%.2f AUD\nDate: %s",
		txn.Payee,
		txn.Amount,
		txn.Date.Format("2006-01-02"))
	if txn.Memo != "" {
		details += "\nMemo: " + txn.Memo
	}
	if txn.Category != "" {
		details += "\nExisting Category: " + txn.Category
	}

	return fmt.Sprintf(`Categorize this Australian bank transaction into one of the available categories based solely on the transaction details.

IMPORTANT GUIDELINES:
- Base your answer purely on what the transaction IS, not assumptions about its purpose
- Only use categories from the list below; do not invent new ones
- If no category fits with reasonable confidence, answer NONE

Available Categories:
%s
Transaction Details:
%s

Respond in this exact format:
CATEGORY: <category name from the list>
CONFIDENCE: <0-100>
REASONING: <one short sentence explaining the choice>

Or, if nothing fits:
NONE`,
		categoryList.String(),
		details)
}

// EstimateTokens gives a coarse token estimate for delegation decisions:
// roughly one token per four characters of prompt.
func EstimateTokens(prompt string) int {
	return len(prompt)/4 + 1
}

// Close stops background goroutines and cleans up resources.
func (c *Classifier) Close() error {
	if c.cache != nil {
		c.cache.Close()
	}
	if c.rateLimiter != nil {
		c.rateLimiter.Close()
	}
	return nil
}
