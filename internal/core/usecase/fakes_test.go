package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

type fakeBackend struct {
	name   string
	engine domain.SourceEngine
	delay  time.Duration
	err    error
	panics bool

	// byQuery overrides results for specific query strings.
	results []domain.SearchResult
	byQuery map[string][]domain.SearchResult

	mu      sync.Mutex
	queries []domain.BackendQuery
}

func (f *fakeBackend) Name() string                { return f.name }
func (f *fakeBackend) Engine() domain.SourceEngine { return f.engine }

func (f *fakeBackend) Search(ctx context.Context, q domain.BackendQuery) ([]domain.SearchResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if f.panics {
		panic("backend exploded")
	}
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if found, ok := f.byQuery[q.Query]; ok {
		return append([]domain.SearchResult(nil), found...), nil
	}
	return append([]domain.SearchResult(nil), f.results...), nil
}

func (f *fakeBackend) calls() []domain.BackendQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.BackendQuery(nil), f.queries...)
}

type fakeAccess struct {
	access domain.CorpusAccess
	err    error
}

func (f fakeAccess) ResolveAccess(_ context.Context, corpusID, _ string) (domain.CorpusAccess, error) {
	if f.err != nil {
		return domain.CorpusAccess{}, f.err
	}
	out := f.access
	out.CorpusID = corpusID
	return out, nil
}

type fakeOracle struct {
	advice domain.AdvisorAssessment
	err    error
	panics bool
	calls  int
}

func (f *fakeOracle) Assess(context.Context, string, domain.CandidateSet, domain.Requirements) (domain.AdvisorAssessment, error) {
	f.calls++
	if f.panics {
		panic("oracle exploded")
	}
	return f.advice, f.err
}

type fakeRecorder struct {
	runs []domain.RetrievalRun
	err  error
}

func (f *fakeRecorder) RecordRun(_ context.Context, run domain.RetrievalRun) error {
	f.runs = append(f.runs, run)
	return f.err
}

type fakePublisher struct {
	events []domain.RetrievalCompleted
	err    error
}

func (f *fakePublisher) PublishRetrievalCompleted(_ context.Context, event domain.RetrievalCompleted) error {
	f.events = append(f.events, event)
	return f.err
}

type observedSearch struct {
	backend string
	status  string
	results int
}

type fakeObserver struct {
	mu        sync.Mutex
	searches  []observedSearch
	decisions []string
	runs      []string
}

func (f *fakeObserver) ObserveBackendSearch(backend, status string, results int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, observedSearch{backend: backend, status: status, results: results})
}

func (f *fakeObserver) ObserveExpansionDecision(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, reason)
}

func (f *fakeObserver) ObserveRun(termination string, _, _ int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, termination)
}

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
func intPtr(v int) *int           { return &v }
