package llmgen

import (
	"fmt"
	"strings"

	"caseforge-be/pkg/review"
)

// extractJSON pulls the JSON object out of a model response. Models wrap
// output in markdown fences or prose often enough that taking the outermost
// brace pair is the reliable option.
func extractJSON(raw string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("%w: no JSON object in model output", review.ErrMalformedResponse)
	}
	return cleaned[start : end+1], nil
}

// bulletList renders names as a one-per-line list for prompt interpolation.
func bulletList(names []string) string {
	var b strings.Builder
	for _, name := range names {
		b.WriteString("- ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	return b.String()
}
