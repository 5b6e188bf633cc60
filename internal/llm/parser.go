package llm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ozbooks/agent-smith/internal/common"
)

// parseClassification parses the CATEGORY/CONFIDENCE/REASONING line format.
// Models occasionally decorate the format, so parsing is forgiving about
// percentages, markdown emphasis, and stray text, but a response with no
// usable category fails with ErrLLMParse.
func parseClassification(content string) (*ClassificationResponse, error) {
	var resp ClassificationResponse
	var haveConfidence bool

	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*"))

		switch {
		case strings.HasPrefix(line, "CATEGORY:"):
			resp.Category = strings.TrimSpace(strings.TrimPrefix(line, "CATEGORY:"))
		case strings.HasPrefix(line, "CONFIDENCE:"):
			conf, err := parseConfidence(strings.TrimSpace(strings.TrimPrefix(line, "CONFIDENCE:")))
			if err == nil {
				resp.Confidence = conf
				haveConfidence = true
			}
		case strings.HasPrefix(line, "REASONING:"):
			resp.Reasoning = strings.TrimSpace(strings.TrimPrefix(line, "REASONING:"))
		case strings.HasPrefix(line, "NONE"):
			// Explicit no-confident-match marker.
			return &ClassificationResponse{}, nil
		}
	}

	if resp.Category == "" {
		return nil, fmt.Errorf("%w: no category in response", common.ErrLLMParse)
	}
	if !haveConfidence {
		return nil, fmt.Errorf("%w: no confidence in response", common.ErrLLMParse)
	}

	return &resp, nil
}

// parseConfidence accepts "85", "85%", or "0.85" and normalizes to 0-100.
func parseConfidence(s string) (int, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")

	// Strip anything after the number, e.g. "85 (fairly sure)".
	if idx := strings.IndexAny(s, " ("); idx > 0 {
		s = s[:idx]
	}

	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}

	if val > 0 && val <= 1 {
		val *= 100
	}
	if val < 0 {
		val = 0
	}
	if val > 100 {
		val = 100
	}

	return int(val + 0.5), nil
}
