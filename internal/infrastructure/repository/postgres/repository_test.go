package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertExpectations(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(schemaLockID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS corpora").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	assertExpectations(t, mock)
}

func TestResolveAccessReturnsCorpusNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCorpusRepository(db)

	mock.ExpectQuery("FROM corpora c").
		WithArgs("missing", "u-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ResolveAccess(context.Background(), "missing", "u-1")
	if !domain.IsKind(err, domain.ErrCorpusNotFound) {
		t.Fatalf("expected ErrCorpusNotFound, got %v", err)
	}
	assertExpectations(t, mock)
}

func TestResolveAccessElevatedMember(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCorpusRepository(db)

	mock.ExpectQuery("FROM corpora c").
		WithArgs("kb", "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "elevated"}).AddRow("kb", true))

	access, err := repo.ResolveAccess(context.Background(), "kb", "u-1")
	if err != nil {
		t.Fatalf("ResolveAccess() error = %v", err)
	}
	if access.CorpusID != "kb" || !access.Elevated {
		t.Fatalf("unexpected access %+v", access)
	}
	assertExpectations(t, mock)
}

func TestResolveAccessPropagatesDriverError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCorpusRepository(db)

	driverErr := errors.New("connection reset")
	mock.ExpectQuery("FROM corpora c").WillReturnError(driverErr)

	_, err := repo.ResolveAccess(context.Background(), "kb", "")
	if !errors.Is(err, driverErr) || domain.IsKind(err, domain.ErrCorpusNotFound) {
		t.Fatalf("expected raw driver error, got %v", err)
	}
}

func TestGrantMemberUnknownCorpus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCorpusRepository(db)

	mock.ExpectExec("INSERT INTO corpus_members").
		WithArgs("missing", "u-1", true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.GrantMember(context.Background(), "missing", "u-1", true)
	if !domain.IsKind(err, domain.ErrCorpusNotFound) {
		t.Fatalf("expected ErrCorpusNotFound, got %v", err)
	}
	assertExpectations(t, mock)
}

func TestLexicalSearchMapsRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEvidenceRepository(db)

	rows := sqlmock.NewRows([]string{"id", "title", "content", "rank", "file_id", "file_name", "partition", "corpus_id", "permission_level", "metadata"}).
		AddRow("ev-1", "Q3", "Revenue grew.", 0.42, "f-1", "q3.pdf", "", "kb", "public", []byte(`{"author":"finance"}`)).
		AddRow("ev-2", "Q4", "Revenue fell.", 0.1, "", "", "p-9", "kb", "public", []byte(`{}`))

	mock.ExpectQuery("websearch_to_tsquery").
		WithArgs("kb", "revenue", true, 5).
		WillReturnRows(rows)

	got, err := repo.Search(context.Background(), domain.BackendQuery{CorpusID: "kb", Query: "revenue", TopK: 5, PublicOnly: true})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(got))
	}
	first := got[0]
	if first.ID != "ev-1" || first.Score != 0.42 || first.SourceEngine != domain.SourceLexical {
		t.Fatalf("unexpected first hit %+v", first)
	}
	for key, want := range map[string]string{
		domain.MetaFileID:          "f-1",
		domain.MetaFileName:        "q3.pdf",
		domain.MetaCorpusID:        "kb",
		domain.MetaPermissionLevel: "public",
		"author":                   "finance",
	} {
		if got := first.MetadataString(key); got != want {
			t.Fatalf("metadata[%s] = %q, want %q", key, got, want)
		}
	}
	if _, ok := first.Metadata[domain.MetaPartition]; ok {
		t.Fatalf("empty partition must be omitted")
	}
	if got[1].MetadataString(domain.MetaPartition) != "p-9" {
		t.Fatalf("expected partition on second hit, got %+v", got[1].Metadata)
	}
	assertExpectations(t, mock)
}

func TestLexicalSearchZeroTopKSkipsQuery(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEvidenceRepository(db)

	got, err := repo.Search(context.Background(), domain.BackendQuery{CorpusID: "kb", Query: "revenue"})
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v %v", got, err)
	}
	assertExpectations(t, mock)
}

func TestUpsertCreatesCorpusOncePerBatch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEvidenceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO corpora").WithArgs("kb").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO evidence_chunks").
		WithArgs("a", "kb", "A", "alpha", nil, nil, nil, "public", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO evidence_chunks").
		WithArgs("b", "kb", "", "beta", "f-2", "b.md", "p-1", "internal", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Upsert(context.Background(), []domain.EvidenceDocument{
		{ID: "a", CorpusID: "kb", Title: "A", Content: "alpha"},
		{ID: "b", CorpusID: "kb", Content: "beta", FileID: "f-2", FileName: "b.md", Partition: "p-1", PermissionLevel: "internal"},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	assertExpectations(t, mock)
}

func TestUpsertValidatesBeforeWriting(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEvidenceRepository(db)

	err := repo.Upsert(context.Background(), []domain.EvidenceDocument{{ID: "a", CorpusID: "kb"}})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	assertExpectations(t, mock)
}

func TestRecordRun(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunRepository(db)

	started := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO retrieval_runs").
		WithArgs("run-1", "kb", nil, "revenue", 4, 1, 0.7, true, "satisfied", started, 1500.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordRun(context.Background(), domain.RetrievalRun{
		ID:          "run-1",
		CorpusID:    "kb",
		Query:       "revenue",
		ResultCount: 4,
		Expansions:  1,
		Score:       0.7,
		Satisfied:   true,
		Termination: "satisfied",
		StartedAt:   started,
		Duration:    1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	assertExpectations(t, mock)
}
