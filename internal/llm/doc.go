// Package llm provides the LLM fallback for transactions no rule matches:
// prompt building, the Anthropic client, response parsing, caching, and
// rate limiting.
package llm
