package advisor

import (
	"strings"
	"testing"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

func TestBuildAssessmentPromptIncludesResultsAndRequirements(t *testing.T) {
	set := domain.MergeCandidates([]domain.SearchResult{
		{ID: "a", Title: "Q3", Content: "Revenue   grew.", Score: 0.9, SourceEngine: domain.SourceVector},
		{ID: "b", Content: strings.Repeat("x", 400), Score: 0.2, SourceEngine: domain.SourceLexical},
	})

	prompt := BuildAssessmentPrompt("acme revenue", set, domain.Requirements{Entities: []string{"Acme"}})

	for _, want := range []string{"acme revenue", "Required entities: Acme", "Required metrics: none", "Revenue grew.", "(untitled)", "Results (2 total)", "evaluation_reasoning"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, strings.Repeat("x", 301)) {
		t.Fatalf("expected long content to be truncated")
	}
}

func TestBuildAssessmentPromptEmptySet(t *testing.T) {
	prompt := BuildAssessmentPrompt("q", domain.CandidateSet{}, domain.Requirements{})
	if !strings.Contains(prompt, "(no results)") {
		t.Fatalf("expected empty marker, got %s", prompt)
	}
}

func TestParseAssessment(t *testing.T) {
	got, err := ParseAssessment("Sure! ```json\n{\"quality_score\":0.4,\"should_expand\":true,\"expansion_suggestions\":[\"acme 2024\"],\"evaluation_reasoning\":\"thin\"}\n```")
	if err != nil {
		t.Fatalf("ParseAssessment() error = %v", err)
	}
	if got.QualityScore == nil || *got.QualityScore != 0.4 {
		t.Fatalf("unexpected score %+v", got.QualityScore)
	}
	if got.IsSatisfied != nil {
		t.Fatalf("absent field must stay nil")
	}
	if got.ShouldExpand == nil || !*got.ShouldExpand || len(got.ExpansionSuggestions) != 1 || got.Reasoning != "thin" {
		t.Fatalf("unexpected assessment %+v", got)
	}
}

func TestParseAssessmentRejectsNonJSON(t *testing.T) {
	for _, raw := range []string{"", "no json here", "{broken"} {
		if _, err := ParseAssessment(raw); !domain.IsKind(err, domain.ErrAdvisorParse) {
			t.Fatalf("ParseAssessment(%q) expected ErrAdvisorParse, got %v", raw, err)
		}
	}
}
