package domain

// Requirements are the entities, metrics and attributes a query needs covered.
type Requirements struct {
	Entities   []string `json:"entities,omitempty"`
	Metrics    []string `json:"metrics,omitempty"`
	Attributes []string `json:"attributes,omitempty"`
}

func (r Requirements) IsEmpty() bool {
	return len(r.Entities) == 0 && len(r.Metrics) == 0 && len(r.Attributes) == 0
}

type AssessmentSource string

const (
	AssessmentHeuristic AssessmentSource = "heuristic"
	AssessmentAdvisor   AssessmentSource = "advisor"
)

type QualityAssessment struct {
	Score                float64          `json:"score"`
	IsSatisfied          bool             `json:"is_satisfied"`
	ShouldExpand         bool             `json:"should_expand"`
	MissingEntities      []string         `json:"missing_entities"`
	MissingMetrics       []string         `json:"missing_metrics"`
	MissingAttributes    []string         `json:"missing_attributes"`
	ExpansionSuggestions []string         `json:"expansion_suggestions"`
	Reasoning            string           `json:"reasoning,omitempty"`
	Source               AssessmentSource `json:"source"`
}

// AdvisorAssessment is the structured answer of the semantic oracle. Nil
// fields were absent from the response and leave heuristic values untouched.
type AdvisorAssessment struct {
	QualityScore         *float64 `json:"quality_score"`
	IsSatisfied          *bool    `json:"is_satisfied"`
	ShouldExpand         *bool    `json:"should_expand"`
	ExpansionSuggestions []string `json:"expansion_suggestions"`
	Reasoning            string   `json:"evaluation_reasoning"`
}
