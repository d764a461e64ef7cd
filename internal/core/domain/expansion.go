package domain

type ExpansionState string

const (
	StateEvaluating ExpansionState = "evaluating"
	StateExpanding  ExpansionState = "expanding"
	StateTerminated ExpansionState = "terminated"
)

const (
	DefaultMaxExpansions = 2
	MaxSuggestedQueries  = 2
)

const (
	ReasonMaxExpansions = "max expansions reached"
	ReasonSatisfied     = "evaluator does not request expansion"
	ReasonNoSuggestions = "no expansion suggestions available"
	ReasonExpanding     = "expanding with suggested queries"
	ReasonCancelled     = "cancelled; returning accumulated candidates"
)

type ExpansionDecision struct {
	State            ExpansionState `json:"state"`
	ShouldExpand     bool           `json:"should_expand"`
	Reason           string         `json:"reason"`
	SuggestedQueries []string       `json:"suggested_queries"`
}

// ExpansionRound records one evaluate/decide step of a pipeline run.
type ExpansionRound struct {
	Round      int               `json:"round"`
	Assessment QualityAssessment `json:"assessment"`
	Decision   ExpansionDecision `json:"decision"`
	Queries    []string          `json:"queries,omitempty"`
	Added      int               `json:"added"`
}
