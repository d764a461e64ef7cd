package qdrant

import (
	"context"
	"fmt"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
)

const (
	DefaultDenseVectorName  = "text-dense"
	DefaultSparseVectorName = "text-sparse"
)

// DenseBackend embeds the query and runs a vector similarity search.
type DenseBackend struct {
	client     *Client
	embedder   ports.Embedder
	vectorName string
}

// NewDenseBackend searches the collection's default vector when vectorName is
// empty, otherwise the named dense vector.
func NewDenseBackend(client *Client, embedder ports.Embedder, vectorName string) *DenseBackend {
	return &DenseBackend{client: client, embedder: embedder, vectorName: vectorName}
}

func (b *DenseBackend) Name() string                { return "qdrant" }
func (b *DenseBackend) Engine() domain.SourceEngine { return domain.SourceVector }

func (b *DenseBackend) Search(ctx context.Context, q domain.BackendQuery) ([]domain.SearchResult, error) {
	vector, err := b.embedder.EmbedQuery(ctx, q.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	var body any = vector
	if b.vectorName != "" {
		body = map[string]any{"name": b.vectorName, "vector": vector}
	}
	return b.client.search(ctx, "search", body, q)
}

// SparseBackend runs a BM25-style search over the hashed-term sparse vector
// stored next to the dense one. It serves as a lexical engine.
type SparseBackend struct {
	client     *Client
	tokenizer  ports.Tokenizer
	vectorName string
}

func NewSparseBackend(client *Client, tokenizer ports.Tokenizer, vectorName string) *SparseBackend {
	if vectorName == "" {
		vectorName = DefaultSparseVectorName
	}
	return &SparseBackend{client: client, tokenizer: tokenizer, vectorName: vectorName}
}

func (b *SparseBackend) Name() string                { return "qdrant-sparse" }
func (b *SparseBackend) Engine() domain.SourceEngine { return domain.SourceLexical }

func (b *SparseBackend) Search(ctx context.Context, q domain.BackendQuery) ([]domain.SearchResult, error) {
	sparse := encodeSparseQuery(q.Query, b.tokenizer)
	if len(sparse.Indices) == 0 {
		return []domain.SearchResult{}, nil
	}
	body := map[string]any{
		"name":   b.vectorName,
		"vector": sparse,
	}
	return b.client.search(ctx, "sparse_search", body, q)
}
