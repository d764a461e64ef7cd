package chromemstore

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

// keywordEmbedder maps text onto three axes so similarity is predictable.
type keywordEmbedder struct{}

func (keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	return []float32{
		float32(strings.Count(lower, "revenue")) + 0.01,
		float32(strings.Count(lower, "risk")) + 0.01,
		0.01,
	}, nil
}

func seededStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("", "evidence", keywordEmbedder{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	docs := []domain.EvidenceDocument{
		{ID: "rev-public", CorpusID: "kb", Title: "Revenue", Content: "revenue revenue grew", PermissionLevel: "public", FileName: "q3.pdf"},
		{ID: "rev-internal", CorpusID: "kb", Title: "Revenue detail", Content: "revenue by region", PermissionLevel: "internal"},
		{ID: "risk", CorpusID: "kb", Title: "Risk", Content: "risk register"},
		{ID: "other-corpus", CorpusID: "other", Title: "Revenue", Content: "revenue elsewhere"},
	}
	if err := store.Add(context.Background(), docs); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	return store
}

func TestSearchRanksBySimilarityWithinCorpus(t *testing.T) {
	store := seededStore(t)

	got, err := store.Search(context.Background(), domain.BackendQuery{CorpusID: "kb", Query: "revenue", TopK: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected the 3 documents of corpus kb, got %d", len(got))
	}
	for _, r := range got {
		if r.ID == "other-corpus" {
			t.Fatalf("result leaked from another corpus")
		}
	}
	if got[0].ID != "rev-public" && got[0].ID != "rev-internal" {
		t.Fatalf("expected a revenue document first, got %s", got[0].ID)
	}
	if got[len(got)-1].ID != "risk" {
		t.Fatalf("expected risk document last, got %s", got[len(got)-1].ID)
	}
}

func TestSearchPublicOnlyFiltersPermission(t *testing.T) {
	store := seededStore(t)

	got, err := store.Search(context.Background(), domain.BackendQuery{CorpusID: "kb", Query: "revenue", TopK: 10, PublicOnly: true})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, r := range got {
		if r.ID == "rev-internal" {
			t.Fatalf("internal document returned for public-only query")
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected rev-public and risk (default public), got %d", len(got))
	}
}

func TestSearchMapsTitleAndMetadata(t *testing.T) {
	store := seededStore(t)

	got, err := store.Search(context.Background(), domain.BackendQuery{CorpusID: "kb", Query: "revenue revenue", TopK: 1, PublicOnly: true})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if got[0].Title != "Revenue" || got[0].MetadataString(domain.MetaFileName) != "q3.pdf" {
		t.Fatalf("unexpected mapping %+v", got[0])
	}
	if _, ok := got[0].Metadata["title"]; ok {
		t.Fatalf("title must not be duplicated into metadata")
	}
}

func TestSearchEmptyCollection(t *testing.T) {
	store, err := Open("", "empty", keywordEmbedder{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	got, err := store.Search(context.Background(), domain.BackendQuery{CorpusID: "kb", Query: "x", TopK: 5})
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v %v", got, err)
	}
}

func TestAddRejectsInvalidDocument(t *testing.T) {
	store, err := Open("", "evidence", keywordEmbedder{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	err = store.Add(context.Background(), []domain.EvidenceDocument{{ID: "x", CorpusID: "kb"}})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
