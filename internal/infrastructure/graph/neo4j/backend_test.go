package neo4j

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/resilience"
)

var recordKeys = []string{"id", "start_entity", "end_entity", "description", "start_chunks", "end_chunks", "file_id", "file_name", "score"}

func relationRecord(id, start, end, description string, score float64) *neo4j.Record {
	return &neo4j.Record{
		Keys: recordKeys,
		Values: []any{
			id, start, end, description,
			[]any{`see <img src="https://cdn.example.com/acme.png">`},
			[]any{},
			"f-1", "", score,
		},
	}
}

func TestSearchMapsRelations(t *testing.T) {
	var gotParams map[string]any
	backend := newWithRunner(func(_ context.Context, _ string, params map[string]any) ([]*neo4j.Record, error) {
		gotParams = params
		return []*neo4j.Record{
			relationRecord("4:rel:1", "Acme", "Globex", "acquired in 2024", 2.5),
			relationRecord("4:rel:2", "Acme", "Initech", "", 1),
		}, nil
	})

	got, err := backend.Search(context.Background(), domain.BackendQuery{CorpusID: "kb", Query: "Acme (parent)", TopK: 4, PublicOnly: true})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if gotParams["query"] != `Acme \(parent\)` {
		t.Fatalf("expected escaped query, got %v", gotParams["query"])
	}
	if gotParams["public_only"] != true || gotParams["corpus_id"] != "kb" || gotParams["top_k"] != 4 {
		t.Fatalf("unexpected params %+v", gotParams)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	first := got[0]
	if first.ID != "4:rel:1" || first.Score != 2.5 || first.SourceEngine != domain.SourceGraph {
		t.Fatalf("unexpected first result %+v", first)
	}
	if first.Content != "Acme -> Globex: acquired in 2024" {
		t.Fatalf("unexpected content %q", first.Content)
	}
	relation, ok := first.Metadata[domain.MetaGraphRelation].(map[string]any)
	if !ok {
		t.Fatalf("expected graph_relation metadata, got %+v", first.Metadata)
	}
	if relation["start_entity"] != "Acme" || relation["end_entity"] != "Globex" || relation["relation_description"] != "acquired in 2024" {
		t.Fatalf("unexpected relation %+v", relation)
	}
	if chunks := relation["start_node_chunks"].([]string); len(chunks) != 1 {
		t.Fatalf("expected start chunk, got %v", chunks)
	}
	if first.MetadataString(domain.MetaFileID) != "f-1" {
		t.Fatalf("expected file id metadata")
	}
	if _, ok := first.Metadata[domain.MetaFileName]; ok {
		t.Fatalf("empty file name must be omitted")
	}
	if got[1].Content != "Acme -> Initech" {
		t.Fatalf("unexpected content without description %q", got[1].Content)
	}
}

func TestSearchSkipsBlankQuery(t *testing.T) {
	called := false
	backend := newWithRunner(func(context.Context, string, map[string]any) ([]*neo4j.Record, error) {
		called = true
		return nil, nil
	})

	got, err := backend.Search(context.Background(), domain.BackendQuery{CorpusID: "kb", Query: "   ", TopK: 3})
	if err != nil || len(got) != 0 || called {
		t.Fatalf("expected no query for blank input, got %v %v called=%v", got, err, called)
	}
}

func TestSearchRetriesAndWrapsTemporary(t *testing.T) {
	calls := 0
	backend := newWithRunner(func(context.Context, string, map[string]any) ([]*neo4j.Record, error) {
		calls++
		return nil, &timeoutError{}
	}, WithExecutor(resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	})))

	_, err := backend.Search(context.Background(), domain.BackendQuery{CorpusID: "kb", Query: "Acme", TopK: 3})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestEnsureIndexPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	backend := newWithRunner(func(context.Context, string, map[string]any) ([]*neo4j.Record, error) {
		return nil, boom
	})
	if err := backend.EnsureIndex(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestEscapeLucene(t *testing.T) {
	tests := map[string]string{
		"revenue":          "revenue",
		"  a   b ":         "a b",
		"C++ && title:foo": `C\+\+ \&\& title\:foo`,
		"":                 "",
	}
	for in, want := range tests {
		if got := escapeLucene(in); got != want {
			t.Fatalf("escapeLucene(%q) = %q, want %q", in, got, want)
		}
	}
}

type timeoutError struct{}

func (*timeoutError) Error() string   { return "i/o timeout" }
func (*timeoutError) Timeout() bool   { return true }
func (*timeoutError) Temporary() bool { return true }
