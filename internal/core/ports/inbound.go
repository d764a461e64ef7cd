package ports

import (
	"context"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

// RetrievalService is the inbound contract for the full retrieval pipeline.
type RetrievalService interface {
	Retrieve(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalOutcome, error)
	Search(ctx context.Context, req domain.SearchRequest) (domain.CandidateSet, error)
	Fuse(texts []string) domain.FusionResult
}
