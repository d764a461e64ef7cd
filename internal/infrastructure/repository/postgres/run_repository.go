package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) RecordRun(ctx context.Context, run domain.RetrievalRun) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO retrieval_runs (
	id, corpus_id, actor_id, query, result_count, expansions, score, satisfied, termination, started_at, duration_ms
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO NOTHING
`,
		run.ID, run.CorpusID, nullableString(run.ActorID), run.Query, run.ResultCount, run.Expansions,
		run.Score, run.Satisfied, run.Termination, run.StartedAt.UTC(), float64(run.Duration.Microseconds())/1000.0,
	)
	if err != nil {
		return fmt.Errorf("record retrieval run: %w", err)
	}
	return nil
}
