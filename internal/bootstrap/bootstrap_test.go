package bootstrap

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/evidence-retrieval/internal/config"
	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

func embeddedConfig() config.Config {
	return config.Config{
		BleveEnabled:           true,
		BleveAnalyzer:          "standard",
		EmbedProvider:          "ollama",
		OracleProvider:         "none",
		FusionTokenizer:        "simple",
		FusionMaxCoreSentences: 200,
		RetrievalTopK:          5,
		RetrievalExpansionTopK: 5,
		RetrievalMaxExpansions: 2,
	}
}

func TestNewWiresEmbeddedLexicalPipeline(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, embeddedConfig(), Options{Service: "test", Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Queue != nil || app.Corpora != nil {
		t.Fatalf("expected no queue and no corpus repository without configuration")
	}
	if len(app.Indexers) != 1 || app.Indexers[0].Name != "bleve" {
		t.Fatalf("expected bleve indexer, got %+v", app.Indexers)
	}

	docs := []domain.EvidenceDocument{
		{ID: "d1", CorpusID: "kb", Title: "Q3 report", Content: "Quarterly revenue grew twelve percent."},
		{ID: "d2", CorpusID: "kb", Title: "Q3 costs", Content: "Operating revenue costs fell sharply."},
		{ID: "d3", CorpusID: "other", Title: "Elsewhere", Content: "Revenue in another corpus."},
	}
	if err := app.Index(ctx, docs); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	outcome, err := app.Pipeline.Retrieve(ctx, domain.RetrievalRequest{
		SearchRequest: domain.SearchRequest{CorpusID: "kb", Query: "revenue"},
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(outcome.Artifacts) != 2 {
		t.Fatalf("expected the two kb documents, got %d artifacts", len(outcome.Artifacts))
	}
	if outcome.CleanedText == "" || outcome.RunID == "" {
		t.Fatalf("expected cleaned text and run id, got %+v", outcome)
	}
}

func TestNewRejectsUnknownProviders(t *testing.T) {
	cfg := embeddedConfig()
	cfg.OracleProvider = "mystery"
	if _, err := New(context.Background(), cfg, Options{}); err == nil {
		t.Fatalf("expected error for unknown oracle provider")
	}

	cfg = embeddedConfig()
	cfg.EmbedProvider = "mystery"
	if _, err := New(context.Background(), cfg, Options{}); err == nil {
		t.Fatalf("expected error for unknown embed provider")
	}
}

func TestIndexWithoutStoresFails(t *testing.T) {
	app := &App{}
	if err := app.Index(context.Background(), nil); err == nil {
		t.Fatalf("expected error without indexers")
	}
}
