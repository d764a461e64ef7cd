package domain

import "time"

// Artifact is the user-facing, uncleaned view of one search result.
type Artifact struct {
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
	Source   SourceEngine   `json:"source"`
	Title    string         `json:"title"`
	FileID   string         `json:"file_id,omitempty"`
	FileName string         `json:"file_name,omitempty"`
}

// RetrievalRequest is the full pipeline input.
type RetrievalRequest struct {
	SearchRequest
	Requirements  Requirements `json:"requirements"`
	MaxExpansions *int         `json:"max_expansions,omitempty"`
}

// RetrievalOutcome is the terminal output of a pipeline run. CleanedText is
// model input only; Artifacts are for presentation only.
type RetrievalOutcome struct {
	RunID       string            `json:"run_id"`
	Query       string            `json:"query"`
	CorpusID    string            `json:"corpus_id"`
	CleanedText string            `json:"cleaned_text"`
	Artifacts   []Artifact        `json:"artifacts"`
	Graph       DiscourseGraph    `json:"discourse_graph"`
	FusedText   string            `json:"fused_text"`
	Assessment  QualityAssessment `json:"assessment"`
	Rounds      []ExpansionRound  `json:"rounds"`
	Expansions  int               `json:"expansions"`
	Termination string            `json:"termination"`
	Candidates  CandidateSet      `json:"-"`
}

// RetrievalRun is the audit record persisted for each pipeline run.
type RetrievalRun struct {
	ID          string
	CorpusID    string
	ActorID     string
	Query       string
	ResultCount int
	Expansions  int
	Score       float64
	Satisfied   bool
	Termination string
	StartedAt   time.Time
	Duration    time.Duration
}

// RetrievalCompleted is published after each pipeline run.
type RetrievalCompleted struct {
	RunID       string    `json:"run_id"`
	CorpusID    string    `json:"corpus_id"`
	Query       string    `json:"query"`
	ResultCount int       `json:"result_count"`
	Expansions  int       `json:"expansions"`
	Score       float64   `json:"score"`
	Satisfied   bool      `json:"satisfied"`
	Termination string    `json:"termination"`
	CompletedAt time.Time `json:"completed_at"`
}

// CorpusAccess is the resolved permission context for an actor on a corpus.
type CorpusAccess struct {
	CorpusID string
	Elevated bool
}
