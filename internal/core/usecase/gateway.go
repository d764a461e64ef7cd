package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
)

const (
	defaultTopK           = 5
	defaultBackendTimeout = 10 * time.Second
	tracerName            = "github.com/kirillkom/evidence-retrieval/internal/core/usecase"
)

// GatewayBackend registers one backend with its administrative switch.
// Backends are queried and merged in slice order.
type GatewayBackend struct {
	Backend ports.SearchBackend
	Enabled bool
}

type GatewayConfig struct {
	Backends       []GatewayBackend
	DefaultTopK    int
	BackendTimeout time.Duration
}

// GatewayObserver receives per-backend outcomes. Implementations must be safe
// for concurrent use.
type GatewayObserver interface {
	ObserveBackendSearch(backend, status string, results int, duration time.Duration)
}

type SearchGateway struct {
	backends       []GatewayBackend
	defaultTopK    int
	backendTimeout time.Duration
	access         ports.AccessResolver
	observer       GatewayObserver
	logger         *slog.Logger
	tracer         trace.Tracer
}

type GatewayOption func(*SearchGateway)

func WithAccessResolver(access ports.AccessResolver) GatewayOption {
	return func(g *SearchGateway) { g.access = access }
}

func WithGatewayObserver(observer GatewayObserver) GatewayOption {
	return func(g *SearchGateway) { g.observer = observer }
}

func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(g *SearchGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewSearchGateway(cfg GatewayConfig, opts ...GatewayOption) *SearchGateway {
	g := &SearchGateway{
		backends:       append([]GatewayBackend(nil), cfg.Backends...),
		defaultTopK:    cfg.DefaultTopK,
		backendTimeout: cfg.BackendTimeout,
		logger:         slog.Default(),
		tracer:         otel.Tracer(tracerName),
	}
	if g.defaultTopK <= 0 {
		g.defaultTopK = defaultTopK
	}
	if g.backendTimeout <= 0 {
		g.backendTimeout = defaultBackendTimeout
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Search fans the query out to every enabled backend, absorbs per-backend
// failures and merges the lists in registration order. Only invalid input and
// access resolution failures are returned as errors.
func (g *SearchGateway) Search(ctx context.Context, req domain.SearchRequest) (domain.CandidateSet, error) {
	corpusID := strings.TrimSpace(req.CorpusID)
	query := strings.TrimSpace(req.Query)
	if corpusID == "" {
		return domain.CandidateSet{}, domain.WrapError(domain.ErrInvalidInput, "gateway search", fmt.Errorf("corpus id is required"))
	}
	if query == "" {
		return domain.CandidateSet{}, domain.WrapError(domain.ErrInvalidInput, "gateway search", fmt.Errorf("query is required"))
	}
	topK := req.TopK
	if topK <= 0 {
		topK = g.defaultTopK
	}

	ctx, span := g.tracer.Start(ctx, "gateway.search", trace.WithAttributes(
		attribute.String("corpus_id", corpusID),
		attribute.Int("top_k", topK),
	))
	defer span.End()

	publicOnly, err := g.publicOnly(ctx, corpusID, req.ActorID, req.PermissionFlag)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.CandidateSet{}, err
	}
	span.SetAttributes(attribute.Bool("public_only", publicOnly))

	bq := domain.BackendQuery{
		CorpusID:   corpusID,
		Query:      query,
		TopK:       topK,
		PublicOnly: publicOnly,
	}

	lists := make([][]domain.SearchResult, len(g.backends))
	var wg sync.WaitGroup
	for i, entry := range g.backends {
		if !entry.Enabled || entry.Backend == nil {
			continue
		}
		wg.Add(1)
		go func(i int, backend ports.SearchBackend) {
			defer wg.Done()
			lists[i] = g.searchBackend(ctx, backend, bq)
		}(i, entry.Backend)
	}
	wg.Wait()

	set := domain.MergeCandidates(lists...)
	span.SetAttributes(attribute.Int("results", set.Len()))
	return set, nil
}

func (g *SearchGateway) publicOnly(ctx context.Context, corpusID, actorID string, permissionFlag bool) (bool, error) {
	if g.access == nil {
		return !permissionFlag, nil
	}
	access, err := g.access.ResolveAccess(ctx, corpusID, strings.TrimSpace(actorID))
	if err != nil {
		return true, err
	}
	return !permissionFlag || !access.Elevated, nil
}

// searchBackend never fails: errors, panics and timeouts become an empty list.
func (g *SearchGateway) searchBackend(ctx context.Context, backend ports.SearchBackend, q domain.BackendQuery) (results []domain.SearchResult) {
	name := backend.Name()
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, g.backendTimeout)
	defer cancel()

	callCtx, span := g.tracer.Start(callCtx, "backend.search", trace.WithAttributes(
		attribute.String("backend", name),
		attribute.String("engine", string(backend.Engine())),
	))
	defer span.End()

	status := "ok"
	defer func() {
		if recovered := recover(); recovered != nil {
			status = "error"
			results = nil
			err := fmt.Errorf("backend panic: %v", recovered)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			g.logger.Error("backend_search_panic", "backend", name, "panic", fmt.Sprint(recovered))
		}
		g.observe(name, status, len(results), time.Since(start))
	}()

	raw, err := backend.Search(callCtx, q)
	if err != nil {
		status = "error"
		if callCtx.Err() != nil {
			status = "timeout"
		}
		err = domain.WrapError(domain.ErrBackendUnavailable, "backend "+name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn("backend_search_failed",
			"backend", name,
			"status", status,
			"corpus_id", q.CorpusID,
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
			"error", err,
		)
		return nil
	}

	engine := backend.Engine()
	results = make([]domain.SearchResult, 0, len(raw))
	for _, r := range raw {
		if r.SourceEngine == "" {
			r.SourceEngine = engine
		}
		results = append(results, r.Normalized())
	}
	span.SetAttributes(attribute.Int("results", len(results)))
	return results
}

func (g *SearchGateway) observe(backend, status string, results int, duration time.Duration) {
	if g.observer == nil {
		return
	}
	g.observer.ObserveBackendSearch(backend, status, results, duration)
}
