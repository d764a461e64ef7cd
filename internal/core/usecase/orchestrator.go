package usecase

import "github.com/kirillkom/evidence-retrieval/internal/core/domain"

// ExpansionPolicy decides whether another retrieval round should run.
type ExpansionPolicy struct {
	MaxExpansions int
}

func NewExpansionPolicy(maxExpansions int) ExpansionPolicy {
	if maxExpansions < 0 {
		maxExpansions = domain.DefaultMaxExpansions
	}
	return ExpansionPolicy{MaxExpansions: maxExpansions}
}

// Decide is pure: the same assessment and round count always produce the same
// decision. The round budget is checked before the assessment.
func (p ExpansionPolicy) Decide(assessment domain.QualityAssessment, expansionCount int) domain.ExpansionDecision {
	if expansionCount >= p.MaxExpansions {
		return domain.ExpansionDecision{
			State:  domain.StateTerminated,
			Reason: domain.ReasonMaxExpansions,
		}
	}
	if !assessment.ShouldExpand {
		return domain.ExpansionDecision{
			State:  domain.StateTerminated,
			Reason: domain.ReasonSatisfied,
		}
	}

	suggestions := unionStrings(assessment.ExpansionSuggestions)
	if len(suggestions) == 0 {
		return domain.ExpansionDecision{
			State:  domain.StateTerminated,
			Reason: domain.ReasonNoSuggestions,
		}
	}
	if len(suggestions) > domain.MaxSuggestedQueries {
		suggestions = suggestions[:domain.MaxSuggestedQueries]
	}
	return domain.ExpansionDecision{
		State:            domain.StateExpanding,
		ShouldExpand:     true,
		Reason:           domain.ReasonExpanding,
		SuggestedQueries: suggestions,
	}
}
