// Package bleveindex is the embedded full-text backend built on bleve. It
// pairs with the chromem vector store for single-node deployments.
package bleveindex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

const (
	fieldContent = "content"
	fieldTitle   = "title"
)

// Analyzer names accepted by Open.
const (
	AnalyzerCJK      = cjk.AnalyzerName
	AnalyzerStandard = standard.Name
)

type Index struct {
	index bleve.Index
}

// Open opens the index at path, creating it when missing. An empty path
// keeps the index in memory.
func Open(path, analyzer string) (*Index, error) {
	if analyzer == "" {
		analyzer = AnalyzerCJK
	}
	if strings.TrimSpace(path) == "" {
		idx, err := bleve.NewMemOnly(newMapping(analyzer))
		if err != nil {
			return nil, fmt.Errorf("create in-memory bleve index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, newMapping(analyzer))
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index %s: %w", path, err)
	}
	return &Index{index: idx}, nil
}

func newMapping(analyzer string) mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = analyzer

	keyword := bleve.NewKeywordFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(fieldContent, text)
	doc.AddFieldMappingsAt(fieldTitle, text)
	doc.AddFieldMappingsAt(domain.MetaCorpusID, keyword)
	doc.AddFieldMappingsAt(domain.MetaPermissionLevel, keyword)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = analyzer
	return im
}

func (i *Index) Name() string                { return "bleve" }
func (i *Index) Engine() domain.SourceEngine { return domain.SourceLexical }

func (i *Index) Close() error {
	return i.index.Close()
}

func (i *Index) Add(ctx context.Context, docs []domain.EvidenceDocument) error {
	batch := i.index.NewBatch()
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.Validate(); err != nil {
			return err
		}
		fields := make(map[string]any, len(d.Metadata)+8)
		for k, v := range d.Fields() {
			fields[k] = v
		}
		fields[fieldContent] = d.Content
		if err := batch.Index(d.ID, fields); err != nil {
			return fmt.Errorf("index %s: %w", d.ID, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("apply bleve batch: %w", err)
	}
	return nil
}

func (i *Index) Search(ctx context.Context, q domain.BackendQuery) ([]domain.SearchResult, error) {
	if q.TopK <= 0 {
		return []domain.SearchResult{}, nil
	}

	content := bleve.NewMatchQuery(q.Query)
	content.SetField(fieldContent)
	title := bleve.NewMatchQuery(q.Query)
	title.SetField(fieldTitle)

	corpus := bleve.NewTermQuery(q.CorpusID)
	corpus.SetField(domain.MetaCorpusID)

	conjuncts := []query.Query{bleve.NewDisjunctionQuery(content, title), corpus}
	if q.PublicOnly {
		public := bleve.NewTermQuery(domain.PermissionPublic)
		public.SetField(domain.MetaPermissionLevel)
		conjuncts = append(conjuncts, public)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(conjuncts...), q.TopK, 0, false)
	req.Fields = []string{"*"}
	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	out := make([]domain.SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r := domain.SearchResult{
			ID:       hit.ID,
			Score:    hit.Score,
			Metadata: make(map[string]any, len(hit.Fields)),
		}
		for k, v := range hit.Fields {
			switch k {
			case fieldContent:
				r.Content = domain.StringValue(hit.Fields, k)
			case fieldTitle:
				r.Title = domain.StringValue(hit.Fields, k)
			default:
				r.Metadata[k] = v
			}
		}
		out = append(out, r)
	}
	return out, nil
}
