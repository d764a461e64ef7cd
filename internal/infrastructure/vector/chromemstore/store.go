// Package chromemstore is the embedded vector backend built on chromem-go.
package chromemstore

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/philippgille/chromem-go"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
)

const titleKey = "title"

type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// Open loads a persistent database from path, or an in-memory one when path
// is empty.
func Open(path, collection string, embedder ports.Embedder) (*Store, error) {
	var (
		db  *chromem.DB
		err error
	)
	if strings.TrimSpace(path) == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, true)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}

	c, err := db.GetOrCreateCollection(collection, nil, embeddingFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("open chromem collection %s: %w", collection, err)
	}
	return &Store{db: db, collection: c}, nil
}

func embeddingFunc(embedder ports.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vector, err := embedder.EmbedQuery(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed: %w", err)
		}
		return vector, nil
	}
}

func (s *Store) Name() string                { return "chromem" }
func (s *Store) Engine() domain.SourceEngine { return domain.SourceVector }

func (s *Store) Count() int {
	return s.collection.Count()
}

// Add embeds and stores documents; an existing id is overwritten.
func (s *Store) Add(ctx context.Context, docs []domain.EvidenceDocument) error {
	if len(docs) == 0 {
		return nil
	}
	out := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		if err := d.Validate(); err != nil {
			return err
		}
		out = append(out, chromem.Document{
			ID:       d.ID,
			Metadata: d.Fields(),
			Content:  d.Content,
		})
	}
	if err := s.collection.AddDocuments(ctx, out, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add chromem documents: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, q domain.BackendQuery) ([]domain.SearchResult, error) {
	n := min(q.TopK, s.collection.Count())
	if n <= 0 {
		return []domain.SearchResult{}, nil
	}

	where := map[string]string{domain.MetaCorpusID: q.CorpusID}
	if q.PublicOnly {
		where[domain.MetaPermissionLevel] = domain.PermissionPublic
	}

	hits, err := s.collection.Query(ctx, q.Query, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		metadata := make(map[string]any, len(h.Metadata))
		for k, v := range h.Metadata {
			if k == titleKey {
				continue
			}
			metadata[k] = v
		}
		out = append(out, domain.SearchResult{
			ID:       h.ID,
			Title:    h.Metadata[titleKey],
			Content:  h.Content,
			Score:    float64(h.Similarity),
			Metadata: metadata,
		})
	}
	return out, nil
}
