package usecase

import (
	"reflect"
	"testing"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

func TestExpansionPolicyDecide(t *testing.T) {
	policy := NewExpansionPolicy(domain.DefaultMaxExpansions)

	tests := []struct {
		name        string
		assessment  domain.QualityAssessment
		count       int
		wantState   domain.ExpansionState
		wantReason  string
		wantQueries []string
	}{
		{
			name:        "unsatisfied with suggestions expands with first two",
			assessment:  domain.QualityAssessment{ShouldExpand: true, ExpansionSuggestions: []string{"a", "b", "c"}},
			count:       0,
			wantState:   domain.StateExpanding,
			wantReason:  domain.ReasonExpanding,
			wantQueries: []string{"a", "b"},
		},
		{
			name:       "budget exhausted wins over should expand",
			assessment: domain.QualityAssessment{ShouldExpand: true, ExpansionSuggestions: []string{"a"}},
			count:      2,
			wantState:  domain.StateTerminated,
			wantReason: domain.ReasonMaxExpansions,
		},
		{
			name:       "satisfied terminates",
			assessment: domain.QualityAssessment{IsSatisfied: true},
			count:      0,
			wantState:  domain.StateTerminated,
			wantReason: domain.ReasonSatisfied,
		},
		{
			name:       "no suggestions terminates",
			assessment: domain.QualityAssessment{ShouldExpand: true, ExpansionSuggestions: []string{" ", ""}},
			count:      1,
			wantState:  domain.StateTerminated,
			wantReason: domain.ReasonNoSuggestions,
		},
		{
			name:        "duplicate suggestions collapse before truncation",
			assessment:  domain.QualityAssessment{ShouldExpand: true, ExpansionSuggestions: []string{"a", "a", "b"}},
			count:       1,
			wantState:   domain.StateExpanding,
			wantReason:  domain.ReasonExpanding,
			wantQueries: []string{"a", "b"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := policy.Decide(tc.assessment, tc.count)
			if got.State != tc.wantState || got.Reason != tc.wantReason {
				t.Fatalf("expected %s/%q, got %s/%q", tc.wantState, tc.wantReason, got.State, got.Reason)
			}
			if got.ShouldExpand != (tc.wantState == domain.StateExpanding) {
				t.Fatalf("should_expand inconsistent with state: %+v", got)
			}
			if tc.wantQueries != nil && !reflect.DeepEqual(got.SuggestedQueries, tc.wantQueries) {
				t.Fatalf("expected queries %v, got %v", tc.wantQueries, got.SuggestedQueries)
			}
		})
	}
}

func TestExpansionPolicyTerminatesWithinBudget(t *testing.T) {
	alwaysExpand := domain.QualityAssessment{ShouldExpand: true, ExpansionSuggestions: []string{"more"}}

	for maxExpansions := 0; maxExpansions <= 5; maxExpansions++ {
		policy := NewExpansionPolicy(maxExpansions)
		evaluations := 0
		count := 0
		for {
			evaluations++
			decision := policy.Decide(alwaysExpand, count)
			if decision.State == domain.StateTerminated {
				break
			}
			count++
			if evaluations > maxExpansions+1 {
				t.Fatalf("max=%d: no termination after %d evaluations", maxExpansions, evaluations)
			}
		}
		if evaluations != maxExpansions+1 {
			t.Fatalf("max=%d: expected %d evaluations, got %d", maxExpansions, maxExpansions+1, evaluations)
		}
	}
}

func TestNewExpansionPolicyDefaultsNegativeBudget(t *testing.T) {
	if got := NewExpansionPolicy(-1).MaxExpansions; got != domain.DefaultMaxExpansions {
		t.Fatalf("expected default budget %d, got %d", domain.DefaultMaxExpansions, got)
	}
}
