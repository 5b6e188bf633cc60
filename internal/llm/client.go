package llm

import "context"

// ClassificationResponse is the parsed triple an LLM returns for one
// transaction.
type ClassificationResponse struct {
	Category   string
	Reasoning  string
	Confidence int // 0-100
}

// Client abstracts the underlying model API so the classifier can be
// tested against a mock and providers can be swapped.
type Client interface {
	// Classify sends a prompt and parses the structured classification
	// response.
	Classify(ctx context.Context, prompt string) (*ClassificationResponse, error)
}
