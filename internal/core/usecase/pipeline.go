package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/fusion"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
)

var _ ports.RetrievalService = (*RetrievalPipeline)(nil)

// PipelineObserver receives run-level outcomes for metrics.
type PipelineObserver interface {
	ObserveExpansionDecision(reason string)
	ObserveRun(termination string, results, expansions int, duration time.Duration)
}

type PipelineConfig struct {
	ExpansionTopK int
	MaxExpansions int
}

// RetrievalPipeline drives one request through search, evaluation, bounded
// expansion, fusion and artifact separation.
type RetrievalPipeline struct {
	gateway       *SearchGateway
	evaluator     *QualityEvaluator
	policy        ExpansionPolicy
	fusion        *fusion.Engine
	separator     ArtifactSeparator
	expansionTopK int

	recorder  ports.RunRecorder
	publisher ports.EventPublisher
	observer  PipelineObserver
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	newRunID  func() string
}

type PipelineOption func(*RetrievalPipeline)

func WithRunRecorder(recorder ports.RunRecorder) PipelineOption {
	return func(p *RetrievalPipeline) { p.recorder = recorder }
}

func WithEventPublisher(publisher ports.EventPublisher) PipelineOption {
	return func(p *RetrievalPipeline) { p.publisher = publisher }
}

func WithPipelineObserver(observer PipelineObserver) PipelineOption {
	return func(p *RetrievalPipeline) { p.observer = observer }
}

func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *RetrievalPipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func withClock(now func() time.Time) PipelineOption {
	return func(p *RetrievalPipeline) { p.now = now }
}

func withRunIDs(next func() string) PipelineOption {
	return func(p *RetrievalPipeline) { p.newRunID = next }
}

func NewRetrievalPipeline(
	gateway *SearchGateway,
	evaluator *QualityEvaluator,
	engine *fusion.Engine,
	cfg PipelineConfig,
	opts ...PipelineOption,
) *RetrievalPipeline {
	if evaluator == nil {
		evaluator = NewQualityEvaluator()
	}
	if engine == nil {
		engine = fusion.NewEngine()
	}
	expansionTopK := cfg.ExpansionTopK
	if expansionTopK <= 0 {
		expansionTopK = defaultTopK
	}
	p := &RetrievalPipeline{
		gateway:       gateway,
		evaluator:     evaluator,
		policy:        NewExpansionPolicy(cfg.MaxExpansions),
		fusion:        engine,
		separator:     NewArtifactSeparator(),
		expansionTopK: expansionTopK,
		logger:        slog.Default(),
		tracer:        otel.Tracer(tracerName),
		now:           time.Now,
		newRunID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *RetrievalPipeline) Search(ctx context.Context, req domain.SearchRequest) (domain.CandidateSet, error) {
	return p.gateway.Search(ctx, req)
}

func (p *RetrievalPipeline) Fuse(texts []string) domain.FusionResult {
	return p.fusion.FuseTexts(texts)
}

// Retrieve returns an error only when the request cannot be honored at all:
// invalid input or a failed corpus access lookup. Cancellation during
// expansion yields the candidates accumulated so far.
func (p *RetrievalPipeline) Retrieve(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalOutcome, error) {
	started := p.now()
	req.Query = strings.TrimSpace(req.Query)
	req.CorpusID = strings.TrimSpace(req.CorpusID)

	ctx, span := p.tracer.Start(ctx, "pipeline.retrieve", trace.WithAttributes(
		attribute.String("corpus_id", req.CorpusID),
	))
	defer span.End()

	set, err := p.gateway.Search(ctx, req.SearchRequest)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("initial search: %w", err)
	}

	policy := p.policy
	if req.MaxExpansions != nil && *req.MaxExpansions >= 0 {
		policy = NewExpansionPolicy(*req.MaxExpansions)
	}

	var (
		rounds      = make([]domain.ExpansionRound, 0, policy.MaxExpansions+1)
		assessment  domain.QualityAssessment
		expansions  int
		termination string
	)
	for {
		assessment = p.evaluator.Evaluate(ctx, req.Query, set, req.Requirements)
		round := domain.ExpansionRound{Round: len(rounds) + 1, Assessment: assessment}

		if ctx.Err() != nil {
			round.Decision = cancelledDecision()
			rounds = append(rounds, round)
			p.observeDecision(domain.ReasonCancelled)
			termination = domain.ReasonCancelled
			break
		}

		decision := policy.Decide(assessment, expansions)
		round.Decision = decision
		p.observeDecision(decision.Reason)
		if decision.State == domain.StateTerminated {
			rounds = append(rounds, round)
			termination = decision.Reason
			break
		}

		queries := make([]string, 0, len(decision.SuggestedQueries))
		for _, suggestion := range decision.SuggestedQueries {
			queries = append(queries, composeExpansionQuery(req.Query, suggestion))
		}
		before := set.Len()
		set = set.Merge(p.expand(ctx, req.SearchRequest, queries))
		expansions++

		round.Queries = queries
		round.Added = set.Len() - before
		rounds = append(rounds, round)
		p.logger.Info("expansion_round",
			"corpus_id", req.CorpusID,
			"round", round.Round,
			"queries", queries,
			"added", round.Added,
			"total", set.Len(),
			"score", assessment.Score,
		)

		if ctx.Err() != nil {
			termination = domain.ReasonCancelled
			break
		}
	}
	graph := p.fusion.Fuse(set)
	cleaned, artifacts := p.separator.Separate(set)

	outcome := &domain.RetrievalOutcome{
		RunID:       p.newRunID(),
		Query:       req.Query,
		CorpusID:    req.CorpusID,
		CleanedText: cleaned,
		Artifacts:   artifacts,
		Graph:       graph.Graph,
		FusedText:   graph.Text,
		Assessment:  assessment,
		Rounds:      rounds,
		Expansions:  expansions,
		Termination: termination,
		Candidates:  set,
	}
	duration := p.now().Sub(started)

	span.SetAttributes(
		attribute.String("run_id", outcome.RunID),
		attribute.Int("results", set.Len()),
		attribute.Int("expansions", expansions),
		attribute.String("termination", termination),
	)
	p.finish(ctx, req, outcome, started, duration)
	return outcome, nil
}

func (p *RetrievalPipeline) expand(ctx context.Context, base domain.SearchRequest, queries []string) domain.CandidateSet {
	lists := make([][]domain.SearchResult, len(queries))
	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			req := base
			req.Query = query
			req.TopK = p.expansionTopK
			found, err := p.gateway.Search(ctx, req)
			if err != nil {
				p.logger.Warn("expansion_search_failed", "query", query, "error", err)
				return
			}
			lists[i] = found.Results()
		}(i, query)
	}
	wg.Wait()
	return domain.MergeCandidates(lists...)
}

// finish records and publishes the run. Both are best effort and run
// detached from request cancellation.
func (p *RetrievalPipeline) finish(
	ctx context.Context,
	req domain.RetrievalRequest,
	outcome *domain.RetrievalOutcome,
	started time.Time,
	duration time.Duration,
) {
	detached := context.WithoutCancel(ctx)

	if p.recorder != nil {
		run := domain.RetrievalRun{
			ID:          outcome.RunID,
			CorpusID:    outcome.CorpusID,
			ActorID:     strings.TrimSpace(req.ActorID),
			Query:       outcome.Query,
			ResultCount: outcome.Candidates.Len(),
			Expansions:  outcome.Expansions,
			Score:       outcome.Assessment.Score,
			Satisfied:   outcome.Assessment.IsSatisfied,
			Termination: outcome.Termination,
			StartedAt:   started,
			Duration:    duration,
		}
		if err := p.recorder.RecordRun(detached, run); err != nil {
			p.logger.Warn("run_record_failed", "run_id", outcome.RunID, "error", err)
		}
	}

	if p.publisher != nil {
		event := domain.RetrievalCompleted{
			RunID:       outcome.RunID,
			CorpusID:    outcome.CorpusID,
			Query:       outcome.Query,
			ResultCount: outcome.Candidates.Len(),
			Expansions:  outcome.Expansions,
			Score:       outcome.Assessment.Score,
			Satisfied:   outcome.Assessment.IsSatisfied,
			Termination: outcome.Termination,
			CompletedAt: started.Add(duration).UTC(),
		}
		if err := p.publisher.PublishRetrievalCompleted(detached, event); err != nil {
			p.logger.Warn("event_publish_failed", "run_id", outcome.RunID, "error", err)
		}
	}

	if p.observer != nil {
		p.observer.ObserveRun(outcome.Termination, outcome.Candidates.Len(), outcome.Expansions, duration)
	}
	p.logger.Info("retrieval_completed",
		"run_id", outcome.RunID,
		"corpus_id", outcome.CorpusID,
		"results", outcome.Candidates.Len(),
		"expansions", outcome.Expansions,
		"score", outcome.Assessment.Score,
		"satisfied", outcome.Assessment.IsSatisfied,
		"termination", outcome.Termination,
		"duration_ms", float64(duration.Microseconds())/1000.0,
	)
}

func (p *RetrievalPipeline) observeDecision(reason string) {
	if p.observer != nil {
		p.observer.ObserveExpansionDecision(reason)
	}
}

func cancelledDecision() domain.ExpansionDecision {
	return domain.ExpansionDecision{
		State:  domain.StateTerminated,
		Reason: domain.ReasonCancelled,
	}
}

// composeExpansionQuery anchors a suggestion to the original query unless the
// suggestion already carries it.
func composeExpansionQuery(query, suggestion string) string {
	suggestion = strings.TrimSpace(suggestion)
	if query == "" || strings.Contains(suggestion, query) {
		return suggestion
	}
	return query + " " + suggestion
}
