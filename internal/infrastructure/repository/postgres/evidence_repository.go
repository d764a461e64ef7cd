package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

// EvidenceRepository stores evidence chunks and serves Postgres full-text
// search over them as a lexical backend.
type EvidenceRepository struct {
	db *sql.DB
}

func NewEvidenceRepository(db *sql.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

func (r *EvidenceRepository) Name() string                { return "postgres" }
func (r *EvidenceRepository) Engine() domain.SourceEngine { return domain.SourceLexical }

func (r *EvidenceRepository) Search(ctx context.Context, q domain.BackendQuery) ([]domain.SearchResult, error) {
	if q.TopK <= 0 {
		return []domain.SearchResult{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT e.id, e.title, e.content, ts_rank_cd(e.search_vector, q.query) AS rank,
	COALESCE(e.file_id, ''), COALESCE(e.file_name, ''), COALESCE(e.partition, ''),
	e.corpus_id, e.permission_level, e.metadata
FROM evidence_chunks e, websearch_to_tsquery('simple', $2) AS q(query)
WHERE e.corpus_id = $1
	AND e.search_vector @@ q.query
	AND ($3 = false OR e.permission_level = 'public')
ORDER BY rank DESC, e.id ASC
LIMIT $4
`, q.CorpusID, q.Query, q.PublicOnly, q.TopK)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SearchResult, 0, q.TopK)
	for rows.Next() {
		var (
			r                           domain.SearchResult
			fileID, fileName, partition string
			corpusID, permission        string
			metadataRaw                 []byte
		)
		if err := rows.Scan(
			&r.ID, &r.Title, &r.Content, &r.Score,
			&fileID, &fileName, &partition,
			&corpusID, &permission, &metadataRaw,
		); err != nil {
			return nil, fmt.Errorf("scan lexical hit: %w", err)
		}

		r.Metadata = map[string]any{}
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &r.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata of %s: %w", r.ID, err)
			}
		}
		r.Metadata[domain.MetaCorpusID] = corpusID
		r.Metadata[domain.MetaPermissionLevel] = permission
		if fileID != "" {
			r.Metadata[domain.MetaFileID] = fileID
		}
		if fileName != "" {
			r.Metadata[domain.MetaFileName] = fileName
		}
		if partition != "" {
			r.Metadata[domain.MetaPartition] = partition
		}
		r.SourceEngine = domain.SourceLexical
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lexical hits: %w", err)
	}
	return out, nil
}

// Upsert writes documents in one transaction, creating missing corpora.
func (r *EvidenceRepository) Upsert(ctx context.Context, docs []domain.EvidenceDocument) error {
	if len(docs) == 0 {
		return nil
	}
	for _, d := range docs {
		if err := d.Validate(); err != nil {
			return err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	seen := make(map[string]struct{}, 1)
	for _, d := range docs {
		if _, ok := seen[d.CorpusID]; !ok {
			seen[d.CorpusID] = struct{}{}
			if _, err := tx.ExecContext(ctx, `INSERT INTO corpora (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, d.CorpusID); err != nil {
				return fmt.Errorf("ensure corpus %s: %w", d.CorpusID, err)
			}
		}

		metadata := d.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		metadataJSON, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata of %s: %w", d.ID, err)
		}
		permission := d.Fields()[domain.MetaPermissionLevel]

		if _, err := tx.ExecContext(ctx, `
INSERT INTO evidence_chunks (id, corpus_id, title, content, file_id, file_name, partition, permission_level, metadata, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, now())
ON CONFLICT (id) DO UPDATE SET
	corpus_id = EXCLUDED.corpus_id,
	title = EXCLUDED.title,
	content = EXCLUDED.content,
	file_id = EXCLUDED.file_id,
	file_name = EXCLUDED.file_name,
	partition = EXCLUDED.partition,
	permission_level = EXCLUDED.permission_level,
	metadata = EXCLUDED.metadata,
	updated_at = now()
`,
			d.ID, d.CorpusID, d.Title, d.Content, nullableString(d.FileID), nullableString(d.FileName),
			nullableString(d.Partition), permission, metadataJSON,
		); err != nil {
			return fmt.Errorf("upsert evidence %s: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	return nil
}
