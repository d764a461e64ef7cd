package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

func candidateSet(scores ...float64) domain.CandidateSet {
	results := make([]domain.SearchResult, 0, len(scores))
	for i, score := range scores {
		results = append(results, domain.SearchResult{
			ID:      fmt.Sprintf("doc-%d", i),
			Title:   fmt.Sprintf("title %d", i),
			Content: fmt.Sprintf("content number %d", i),
			Score:   score,
		})
	}
	return domain.MergeCandidates(results)
}

func TestEvaluateHeuristicScore(t *testing.T) {
	e := NewQualityEvaluator()
	got := e.Evaluate(context.Background(), "q", candidateSet(0.9, 0.8, 0.7, 0.6, 0.5), domain.Requirements{})

	if math.Abs(got.Score-0.78) > 1e-9 {
		t.Fatalf("expected heuristic score 0.78, got %v", got.Score)
	}
	if !got.IsSatisfied || got.ShouldExpand {
		t.Fatalf("expected satisfied without expansion, got %+v", got)
	}
	if got.Source != domain.AssessmentHeuristic {
		t.Fatalf("expected heuristic source, got %q", got.Source)
	}
}

func TestEvaluateUnsatisfiedBelowMinimumCount(t *testing.T) {
	e := NewQualityEvaluator()
	got := e.Evaluate(context.Background(), "q", candidateSet(0.3, 0.3), domain.Requirements{})
	if got.IsSatisfied {
		t.Fatalf("expected unsatisfied for two weak results")
	}
	if !got.ShouldExpand {
		t.Fatalf("expected expansion request")
	}
}

func TestEvaluateEmptyCandidateSet(t *testing.T) {
	e := NewQualityEvaluator()
	got := e.Evaluate(context.Background(), "q", domain.CandidateSet{}, domain.Requirements{Entities: []string{"Acme"}})
	if got.Score != 0 || got.IsSatisfied {
		t.Fatalf("expected score 0 and unsatisfied, got %+v", got)
	}
	if !reflect.DeepEqual(got.MissingEntities, []string{"Acme"}) {
		t.Fatalf("expected Acme missing, got %v", got.MissingEntities)
	}
}

func TestEvaluateContentRatioBlocksSatisfaction(t *testing.T) {
	set := domain.MergeCandidates([]domain.SearchResult{
		{ID: "a", Content: "text", Score: 0.9},
		{ID: "b", Content: "text two", Score: 0.9},
		{ID: "c", Content: "   ", Score: 0.9},
	})
	got := NewQualityEvaluator().Evaluate(context.Background(), "q", set, domain.Requirements{})
	if got.IsSatisfied {
		t.Fatalf("expected unsatisfied with content ratio 2/3, got %+v", got)
	}
}

func TestEvaluateCoverageIsCaseInsensitive(t *testing.T) {
	set := domain.MergeCandidates([]domain.SearchResult{
		{ID: "a", Title: "ACME annual report", Content: "Revenue grew 12% in 2023.", Score: 0.9},
	})
	req := domain.Requirements{
		Entities:   []string{"acme", "Globex"},
		Metrics:    []string{"revenue", "margin"},
		Attributes: []string{"2023", "Globex"},
	}
	got := NewQualityEvaluator().Evaluate(context.Background(), "q", set, req)

	if !reflect.DeepEqual(got.MissingEntities, []string{"Globex"}) {
		t.Fatalf("unexpected missing entities: %v", got.MissingEntities)
	}
	if !reflect.DeepEqual(got.MissingMetrics, []string{"margin"}) {
		t.Fatalf("unexpected missing metrics: %v", got.MissingMetrics)
	}
	if !reflect.DeepEqual(got.MissingAttributes, []string{"Globex"}) {
		t.Fatalf("unexpected missing attributes: %v", got.MissingAttributes)
	}
	if !reflect.DeepEqual(got.ExpansionSuggestions, []string{"Globex", "margin"}) {
		t.Fatalf("expected deduplicated suggestions, got %v", got.ExpansionSuggestions)
	}
}

func TestEvaluateAppliesAdvisorOverrides(t *testing.T) {
	oracle := &fakeOracle{advice: domain.AdvisorAssessment{
		QualityScore:         floatPtr(1.7),
		ShouldExpand:         boolPtr(true),
		ExpansionSuggestions: []string{" revenue by region ", "", "revenue by region"},
		Reasoning:            "regional split missing",
	}}
	e := NewQualityEvaluator(WithSemanticOracle(oracle))

	got := e.Evaluate(context.Background(), "q", candidateSet(0.9, 0.8, 0.7, 0.6, 0.5), domain.Requirements{})
	if got.Source != domain.AssessmentAdvisor {
		t.Fatalf("expected advisor source, got %q", got.Source)
	}
	if got.Score != 1 {
		t.Fatalf("expected clamped advisor score 1, got %v", got.Score)
	}
	if !got.IsSatisfied {
		t.Fatalf("absent is_satisfied must keep the heuristic value")
	}
	if !got.ShouldExpand {
		t.Fatalf("expected advisor should_expand override")
	}
	if !reflect.DeepEqual(got.ExpansionSuggestions, []string{"revenue by region"}) {
		t.Fatalf("unexpected suggestions: %v", got.ExpansionSuggestions)
	}
	if got.Reasoning != "regional split missing" {
		t.Fatalf("unexpected reasoning %q", got.Reasoning)
	}
}

func TestEvaluateFallsBackWhenAdvisorFails(t *testing.T) {
	tests := []struct {
		name   string
		oracle *fakeOracle
	}{
		{name: "parse failure", oracle: &fakeOracle{err: domain.WrapError(domain.ErrAdvisorParse, "assess", errors.New("not json"))}},
		{name: "unavailable", oracle: &fakeOracle{err: errors.New("dial tcp: refused")}},
		{name: "panic", oracle: &fakeOracle{panics: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := NewQualityEvaluator(WithSemanticOracle(tc.oracle))
			got := e.Evaluate(context.Background(), "q", candidateSet(0.3, 0.3), domain.Requirements{})
			want := NewQualityEvaluator().Evaluate(context.Background(), "q", candidateSet(0.3, 0.3), domain.Requirements{})
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("expected heuristic fallback\n got: %+v\nwant: %+v", got, want)
			}
			if tc.oracle.calls != 1 {
				t.Fatalf("expected one advisor call, got %d", tc.oracle.calls)
			}
		})
	}
}
