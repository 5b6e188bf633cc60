package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ozbooks/agent-smith/internal/common"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// anthropicClient implements Client using the Anthropic Messages API.
type anthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// newAnthropicClient creates an Anthropic-backed client.
func newAnthropicClient(cfg Config) (*anthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic api key", common.ErrMissingConfig)
	}

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 1024
	}

	return &anthropicClient{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Classify sends the prompt and parses the structured response.
func (c *anthropicClient) Classify(ctx context.Context, prompt string) (*ClassificationResponse, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrLLMUnavailable, err)
	}

	if len(message.Content) == 0 {
		return nil, fmt.Errorf("%w: empty response", common.ErrLLMParse)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return parseClassification(text.String())
}
