package ports

import (
	"context"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

// SearchBackend is one independent index queried by the search gateway.
// Implementations return normalized results; they must honor PublicOnly by
// restricting the request they send, not by filtering afterwards.
type SearchBackend interface {
	Name() string
	Engine() domain.SourceEngine
	Search(ctx context.Context, query domain.BackendQuery) ([]domain.SearchResult, error)
}

// SemanticOracle is the optional language-model advisor for quality review.
type SemanticOracle interface {
	Assess(ctx context.Context, query string, candidates domain.CandidateSet, req domain.Requirements) (domain.AdvisorAssessment, error)
}

// Embedder builds query vectors for vector backends.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// AccessResolver validates a corpus and resolves the actor's access level.
type AccessResolver interface {
	ResolveAccess(ctx context.Context, corpusID, actorID string) (domain.CorpusAccess, error)
}

// RunRecorder persists the audit record of a pipeline run.
type RunRecorder interface {
	RecordRun(ctx context.Context, run domain.RetrievalRun) error
}

// EventPublisher announces completed pipeline runs.
type EventPublisher interface {
	PublishRetrievalCompleted(ctx context.Context, event domain.RetrievalCompleted) error
}

// Tokenizer splits text into word tokens for keyword extraction.
type Tokenizer interface {
	Tokenize(text string) []string
}
