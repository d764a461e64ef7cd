package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

type memoryStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[key] = value
	m.ttls[key] = ttl
	return nil
}

type countingBackend struct {
	calls   int
	err     error
	results []domain.SearchResult
}

func (b *countingBackend) Name() string                { return "qdrant" }
func (b *countingBackend) Engine() domain.SourceEngine { return domain.SourceVector }

func (b *countingBackend) Search(context.Context, domain.BackendQuery) ([]domain.SearchResult, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	return b.results, nil
}

type hitRecorder struct {
	hits, misses int
}

func (h *hitRecorder) ObserveCacheLookup(_ string, hit bool) {
	if hit {
		h.hits++
		return
	}
	h.misses++
}

var sampleQuery = domain.BackendQuery{CorpusID: "kb", Query: "revenue", TopK: 5}

func TestCachedBackendServesRepeatedQueryFromStore(t *testing.T) {
	inner := &countingBackend{results: []domain.SearchResult{{ID: "a", Content: "alpha", Score: 0.5, Metadata: map[string]any{"partition": "p-1"}}}}
	store := newMemoryStore()
	hits := &hitRecorder{}
	cached := NewCachedBackend(inner, store, WithTTL(time.Minute), WithHitObserver(hits))

	for range 2 {
		got, err := cached.Search(context.Background(), sampleQuery)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(got) != 1 || got[0].ID != "a" || got[0].MetadataString(domain.MetaPartition) != "p-1" {
			t.Fatalf("unexpected results %+v", got)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected one backend call, got %d", inner.calls)
	}
	if hits.hits != 1 || hits.misses != 1 {
		t.Fatalf("expected 1 hit and 1 miss, got %+v", hits)
	}
	for _, ttl := range store.ttls {
		if ttl != time.Minute {
			t.Fatalf("expected configured ttl, got %v", ttl)
		}
	}
	if cached.Name() != "qdrant" || cached.Engine() != domain.SourceVector {
		t.Fatalf("decorator must keep backend identity")
	}
}

func TestCachedBackendKeysDifferByQueryShape(t *testing.T) {
	inner := &countingBackend{results: []domain.SearchResult{}}
	cached := NewCachedBackend(inner, newMemoryStore())

	queries := []domain.BackendQuery{
		sampleQuery,
		{CorpusID: "kb", Query: "revenue", TopK: 5, PublicOnly: true},
		{CorpusID: "kb", Query: "revenue", TopK: 6},
		{CorpusID: "other", Query: "revenue", TopK: 5},
	}
	for _, q := range queries {
		if _, err := cached.Search(context.Background(), q); err != nil {
			t.Fatalf("Search() error = %v", err)
		}
	}
	if inner.calls != len(queries) {
		t.Fatalf("expected a miss per distinct query, got %d calls", inner.calls)
	}
}

func TestCachedBackendDoesNotCacheErrors(t *testing.T) {
	boom := errors.New("boom")
	inner := &countingBackend{err: boom}
	store := newMemoryStore()
	cached := NewCachedBackend(inner, store)

	if _, err := cached.Search(context.Background(), sampleQuery); !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if len(store.entries) != 0 {
		t.Fatalf("errors must not be cached")
	}
}

func TestCachedBackendFallsThroughOnStoreFailure(t *testing.T) {
	inner := &countingBackend{results: []domain.SearchResult{{ID: "a"}}}
	store := newMemoryStore()
	store.getErr = errors.New("redis down")
	store.setErr = errors.New("redis down")
	cached := NewCachedBackend(inner, store)

	got, err := cached.Search(context.Background(), sampleQuery)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected backend results despite cache failure, got %v %v", got, err)
	}
}

func TestCachedBackendIgnoresCorruptEntry(t *testing.T) {
	inner := &countingBackend{results: []domain.SearchResult{{ID: "fresh"}}}
	store := newMemoryStore()
	store.entries[cacheKey("qdrant", sampleQuery)] = []byte("not json")
	cached := NewCachedBackend(inner, store)

	got, err := cached.Search(context.Background(), sampleQuery)
	if err != nil || len(got) != 1 || got[0].ID != "fresh" {
		t.Fatalf("expected fresh results, got %v %v", got, err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected backend call after corrupt entry")
	}
}
