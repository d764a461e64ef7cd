package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

type CorpusRepository struct {
	db *sql.DB
}

func NewCorpusRepository(db *sql.DB) *CorpusRepository {
	return &CorpusRepository{db: db}
}

// ResolveAccess confirms the corpus exists and reports whether actorID is an
// elevated member. An unknown actor resolves to non-elevated access.
func (r *CorpusRepository) ResolveAccess(ctx context.Context, corpusID, actorID string) (domain.CorpusAccess, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT c.id, COALESCE(m.elevated, false)
FROM corpora c
LEFT JOIN corpus_members m ON m.corpus_id = c.id AND m.actor_id = $2
WHERE c.id = $1
`, corpusID, actorID)

	var access domain.CorpusAccess
	if err := row.Scan(&access.CorpusID, &access.Elevated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CorpusAccess{}, domain.WrapError(domain.ErrCorpusNotFound, "resolve access", fmt.Errorf("corpus %s", corpusID))
		}
		return domain.CorpusAccess{}, fmt.Errorf("resolve access: %w", err)
	}
	if strings.TrimSpace(actorID) == "" {
		access.Elevated = false
	}
	return access, nil
}

func (r *CorpusRepository) EnsureCorpus(ctx context.Context, corpusID, name string) error {
	if strings.TrimSpace(corpusID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "ensure corpus", fmt.Errorf("corpus id is required"))
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO corpora (id, name)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET name = COALESCE(NULLIF(EXCLUDED.name, ''), corpora.name)
`, corpusID, name)
	if err != nil {
		return fmt.Errorf("ensure corpus: %w", err)
	}
	return nil
}

// GrantMember adds or updates the membership of actorID in corpusID.
func (r *CorpusRepository) GrantMember(ctx context.Context, corpusID, actorID string, elevated bool) error {
	if strings.TrimSpace(actorID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "grant member", fmt.Errorf("actor id is required"))
	}
	res, err := r.db.ExecContext(ctx, `
INSERT INTO corpus_members (corpus_id, actor_id, elevated)
SELECT id, $2, $3 FROM corpora WHERE id = $1
ON CONFLICT (corpus_id, actor_id) DO UPDATE SET elevated = EXCLUDED.elevated
`, corpusID, actorID, elevated)
	if err != nil {
		return fmt.Errorf("grant member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("grant member rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrCorpusNotFound, "grant member", fmt.Errorf("corpus %s", corpusID))
	}
	return nil
}
