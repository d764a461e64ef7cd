// Package neo4j is the graph backend: it matches entities by full-text index
// and returns the relations around them as evidence.
package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/resilience"
)

const EntityIndexName = "evidence_entity_names"

const relationQuery = `
CALL db.index.fulltext.queryNodes($index, $query) YIELD node, score
MATCH (node)-[r:RELATES]-(:Entity)
WHERE r.corpus_id = $corpus_id AND ($public_only = false OR r.permission_level = 'public')
WITH r, max(score) AS score
RETURN elementId(r) AS id,
	startNode(r).entity_id AS start_entity,
	endNode(r).entity_id AS end_entity,
	coalesce(r.description, '') AS description,
	coalesce(startNode(r).chunks, []) AS start_chunks,
	coalesce(endNode(r).chunks, []) AS end_chunks,
	coalesce(r.file_id, '') AS file_id,
	coalesce(r.file_name, '') AS file_name,
	score
ORDER BY score DESC, id ASC
LIMIT $top_k
`

type queryRunner func(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)

type Backend struct {
	run      queryRunner
	executor *resilience.Executor
}

type Option func(*Backend)

func WithExecutor(executor *resilience.Executor) Option {
	return func(b *Backend) { b.executor = executor }
}

// Connect opens a driver and checks connectivity.
func Connect(ctx context.Context, uri, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return driver, nil
}

func New(driver neo4j.DriverWithContext, database string, opts ...Option) *Backend {
	run := func(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
		settings := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithReadersRouting()}
		if database != "" {
			settings = append(settings, neo4j.ExecuteQueryWithDatabase(database))
		}
		res, err := neo4j.ExecuteQuery(ctx, driver, cypher, params, neo4j.EagerResultTransformer, settings...)
		if err != nil {
			return nil, err
		}
		return res.Records, nil
	}
	return newWithRunner(run, opts...)
}

func newWithRunner(run queryRunner, opts ...Option) *Backend {
	b := &Backend{run: run}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Name() string                { return "neo4j" }
func (b *Backend) Engine() domain.SourceEngine { return domain.SourceGraph }

// EnsureIndex creates the entity full-text index used by Search.
func (b *Backend) EnsureIndex(ctx context.Context) error {
	cypher := fmt.Sprintf("CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR (n:Entity) ON EACH [n.entity_id, n.description]", EntityIndexName)
	if _, err := b.run(ctx, cypher, nil); err != nil {
		return fmt.Errorf("ensure neo4j entity index: %w", err)
	}
	return nil
}

func (b *Backend) Search(ctx context.Context, q domain.BackendQuery) ([]domain.SearchResult, error) {
	terms := escapeLucene(q.Query)
	if q.TopK <= 0 || terms == "" {
		return []domain.SearchResult{}, nil
	}
	params := map[string]any{
		"index":       EntityIndexName,
		"query":       terms,
		"corpus_id":   q.CorpusID,
		"public_only": q.PublicOnly,
		"top_k":       q.TopK,
	}

	records, err := resilience.Call(ctx, b.executor, "neo4j.search", func(ctx context.Context) ([]*neo4j.Record, error) {
		return b.run(ctx, relationQuery, params)
	}, resilience.ClassifyRemoteError)
	if err != nil {
		return nil, resilience.WrapTemporaryIfNeeded("neo4j.search", err, resilience.ClassifyRemoteError)
	}

	out := make([]domain.SearchResult, 0, len(records))
	for _, rec := range records {
		out = append(out, toSearchResult(rec))
	}
	return out, nil
}

func toSearchResult(rec *neo4j.Record) domain.SearchResult {
	start := recordString(rec, "start_entity")
	end := recordString(rec, "end_entity")
	description := recordString(rec, "description")

	content := fmt.Sprintf("%s -> %s", start, end)
	if description != "" {
		content = fmt.Sprintf("%s -> %s: %s", start, end, description)
	}

	metadata := map[string]any{
		domain.MetaGraphRelation: map[string]any{
			"start_entity":         start,
			"end_entity":           end,
			"relation_description": description,
			"start_node_chunks":    recordStrings(rec, "start_chunks"),
			"end_node_chunks":      recordStrings(rec, "end_chunks"),
		},
	}
	if fileID := recordString(rec, "file_id"); fileID != "" {
		metadata[domain.MetaFileID] = fileID
	}
	if fileName := recordString(rec, "file_name"); fileName != "" {
		metadata[domain.MetaFileName] = fileName
	}

	return domain.SearchResult{
		ID:           recordString(rec, "id"),
		Title:        fmt.Sprintf("%s / %s", start, end),
		Content:      content,
		Score:        recordFloat(rec, "score"),
		SourceEngine: domain.SourceGraph,
		Metadata:     metadata,
	}
}

func recordString(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func recordStrings(rec *neo4j.Record, key string) []string {
	v, ok := rec.Get(key)
	if !ok {
		return []string{}
	}
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func recordFloat(rec *neo4j.Record, key string) float64 {
	v, _ := rec.Get(key)
	switch typed := v.(type) {
	case float64:
		return typed
	case int64:
		return float64(typed)
	default:
		return 0
	}
}

var luceneReplacer = strings.NewReplacer(
	`\`, `\\`, `+`, `\+`, `-`, `\-`, `!`, `\!`, `(`, `\(`, `)`, `\)`,
	`{`, `\{`, `}`, `\}`, `[`, `\[`, `]`, `\]`, `^`, `\^`, `"`, `\"`,
	`~`, `\~`, `*`, `\*`, `?`, `\?`, `:`, `\:`, `/`, `\/`, `&`, `\&`, `|`, `\|`,
)

// escapeLucene turns free text into a full-text query that matches any of its
// words literally.
func escapeLucene(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		words[i] = luceneReplacer.Replace(w)
	}
	return strings.Join(words, " ")
}
