package chunking

import (
	"strings"
	"testing"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

func TestSplitShortTextIsOneChunk(t *testing.T) {
	s := NewSplitter(100, 10)
	got := s.Split("  revenue grew  ")
	if len(got) != 1 || got[0] != "revenue grew" {
		t.Fatalf("unexpected chunks %q", got)
	}
	if s.Split("   ") != nil {
		t.Fatalf("expected nil for blank text")
	}
}

func TestSplitBreaksOnWhitespaceWithOverlap(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta ", 20)
	s := NewSplitter(50, 10)
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 50 {
			t.Fatalf("chunk %d exceeds window: %d runes", i, len([]rune(c)))
		}
		for _, w := range strings.Fields(c) {
			switch w {
			case "alpha", "beta", "gamma", "delta":
			default:
				t.Fatalf("chunk %d cut a word: %q", i, w)
			}
		}
	}
}

func TestSplitterNormalizesOptions(t *testing.T) {
	s := NewSplitter(0, -1)
	if s.ChunkSize != 900 || s.Overlap != 0 {
		t.Fatalf("unexpected defaults %+v", s)
	}
	s = NewSplitter(40, 40)
	if s.Overlap != 10 {
		t.Fatalf("expected overlap clamp to a quarter, got %d", s.Overlap)
	}
}

func TestSplitDocumentsAssignsChunkIDs(t *testing.T) {
	s := NewSplitter(30, 0)
	docs := []domain.EvidenceDocument{
		{ID: "short", CorpusID: "kb", Content: "fits"},
		{ID: "long", CorpusID: "kb", Title: "Report", Content: strings.Repeat("revenue grew ", 8), Metadata: map[string]string{"region": "emea"}},
	}
	out := s.SplitDocuments(docs)
	if out[0].ID != "short" || out[0].Metadata != nil {
		t.Fatalf("short document must pass through untouched: %+v", out[0])
	}
	if len(out) < 3 {
		t.Fatalf("expected long document to split, got %d docs", len(out))
	}
	if out[1].ID != "long#0" || out[2].ID != "long#1" {
		t.Fatalf("unexpected chunk ids %q %q", out[1].ID, out[2].ID)
	}
	if out[2].Title != "Report" || out[2].Metadata["region"] != "emea" || out[2].Metadata[MetaChunkIndex] != "1" {
		t.Fatalf("chunk lost document fields: %+v", out[2])
	}
	if docs[1].Metadata[MetaChunkIndex] != "" {
		t.Fatalf("source metadata must not be mutated")
	}
}
