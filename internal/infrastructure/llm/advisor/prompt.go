// Package advisor holds the prompt and response contract shared by the
// language-model quality advisors.
package advisor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

const (
	maxSummarizedResults = 10
	maxSnippetRunes      = 300
)

// BuildAssessmentPrompt renders the evaluation request for one candidate set.
func BuildAssessmentPrompt(query string, set domain.CandidateSet, req domain.Requirements) string {
	var summary strings.Builder
	n := min(set.Len(), maxSummarizedResults)
	for i := range n {
		r := set.At(i)
		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(&summary, "[%d] engine=%s score=%.3f title=%s\n%s\n\n", i+1, r.SourceEngine, r.Score, title, snippet(r.Content))
	}
	if n == 0 {
		summary.WriteString("(no results)\n")
	}

	return fmt.Sprintf(`You review search results and decide whether they answer the user's query.
Return strict JSON object with keys:
quality_score (number from 0 to 1), is_satisfied (boolean), should_expand (boolean),
expansion_suggestions (array of short follow-up search phrases), evaluation_reasoning (string).
No markdown, no extra keys.

Query:
%s

Required entities: %s
Required metrics: %s
Required attributes: %s

Results (%d total):
%s`, query, listOrNone(req.Entities), listOrNone(req.Metrics), listOrNone(req.Attributes), set.Len(), summary.String())
}

// ParseAssessment decodes a model answer. Surrounding prose is tolerated;
// anything that is not a JSON object is an ErrAdvisorParse.
func ParseAssessment(raw string) (domain.AdvisorAssessment, error) {
	var out domain.AdvisorAssessment
	if err := json.Unmarshal([]byte(ExtractJSONObject(raw)), &out); err != nil {
		return domain.AdvisorAssessment{}, domain.WrapError(domain.ErrAdvisorParse, "parse advisor response", err)
	}
	return out, nil
}

func ExtractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func snippet(content string) string {
	runes := []rune(strings.Join(strings.Fields(content), " "))
	if len(runes) <= maxSnippetRunes {
		return string(runes)
	}
	return string(runes[:maxSnippetRunes]) + "..."
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
