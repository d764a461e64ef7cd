package bleveindex

import (
	"context"
	"testing"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

func seededIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open("", AnalyzerStandard)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	docs := []domain.EvidenceDocument{
		{ID: "rev-public", CorpusID: "kb", Title: "Quarterly revenue", Content: "Revenue grew twelve percent with revenue from services.", FileName: "q3.pdf"},
		{ID: "rev-internal", CorpusID: "kb", Title: "Regional breakdown", Content: "Revenue by region stayed flat.", PermissionLevel: "internal"},
		{ID: "risk", CorpusID: "kb", Title: "Risk register", Content: "Supply chain risk increased."},
		{ID: "other", CorpusID: "other", Title: "Revenue", Content: "Revenue of another corpus."},
	}
	if err := idx.Add(context.Background(), docs); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	return idx
}

func TestSearchMatchesWithinCorpus(t *testing.T) {
	idx := seededIndex(t)

	got, err := idx.Search(context.Background(), domain.BackendQuery{CorpusID: "kb", Query: "revenue", TopK: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 revenue hits in corpus kb, got %d: %+v", len(got), got)
	}
	for i, r := range got {
		if r.ID == "other" || r.ID == "risk" {
			t.Fatalf("unexpected hit %s", r.ID)
		}
		if r.Score <= 0 {
			t.Fatalf("expected positive score, got %v", r.Score)
		}
		if i > 0 && got[i-1].Score < r.Score {
			t.Fatalf("expected descending scores")
		}
	}
}

func TestSearchPublicOnly(t *testing.T) {
	idx := seededIndex(t)

	got, err := idx.Search(context.Background(), domain.BackendQuery{CorpusID: "kb", Query: "revenue", TopK: 10, PublicOnly: true})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "rev-public" {
		t.Fatalf("expected only rev-public, got %+v", got)
	}
	r := got[0]
	if r.Title != "Quarterly revenue" || r.Content == "" {
		t.Fatalf("expected stored title and content, got %+v", r)
	}
	if r.MetadataString(domain.MetaFileName) != "q3.pdf" || r.MetadataString(domain.MetaCorpusID) != "kb" {
		t.Fatalf("unexpected metadata %+v", r.Metadata)
	}
	if _, ok := r.Metadata[fieldContent]; ok {
		t.Fatalf("content must not be duplicated into metadata")
	}
}

func TestSearchTitleOnlyMatch(t *testing.T) {
	idx := seededIndex(t)

	got, err := idx.Search(context.Background(), domain.BackendQuery{CorpusID: "kb", Query: "register", TopK: 3})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "risk" {
		t.Fatalf("expected title match on risk, got %+v", got)
	}
}

func TestSearchZeroTopK(t *testing.T) {
	idx := seededIndex(t)

	got, err := idx.Search(context.Background(), domain.BackendQuery{CorpusID: "kb", Query: "revenue"})
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v %v", got, err)
	}
}

func TestAddRejectsInvalidDocument(t *testing.T) {
	idx, err := Open("", AnalyzerStandard)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer idx.Close()

	err = idx.Add(context.Background(), []domain.EvidenceDocument{{ID: "x", Content: "text"}})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestOpenPersistentIndexReopens(t *testing.T) {
	path := t.TempDir() + "/evidence.bleve"

	idx, err := Open(path, AnalyzerCJK)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := idx.Add(context.Background(), []domain.EvidenceDocument{{ID: "a", CorpusID: "kb", Content: "收入增长"}}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(path, "")
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Search(context.Background(), domain.BackendQuery{CorpusID: "kb", Query: "收入", TopK: 3})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected persisted document, got %+v", got)
	}
}
