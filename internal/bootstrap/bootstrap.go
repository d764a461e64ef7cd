package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/evidence-retrieval/internal/config"
	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/fusion"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
	"github.com/kirillkom/evidence-retrieval/internal/core/usecase"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/cache"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/chunking"
	graphneo4j "github.com/kirillkom/evidence-retrieval/internal/infrastructure/graph/neo4j"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/lexical/bleveindex"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/llm/openai"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/queue/nats"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/resilience"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/segmenter"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/vector/chromemstore"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/evidence-retrieval/internal/observability/logging"
	"github.com/kirillkom/evidence-retrieval/internal/observability/metrics"
)

// Indexer writes evidence into one embedded or relational store.
type Indexer struct {
	Name  string
	Index func(ctx context.Context, docs []domain.EvidenceDocument) error
}

type App struct {
	Config   config.Config
	Pipeline *usecase.RetrievalPipeline

	// Queue is nil unless Options.ConnectQueue or NATS events are enabled.
	Queue *nats.Queue
	// Corpora is nil without POSTGRES_DSN.
	Corpora  *postgres.CorpusRepository
	Indexers []Indexer

	splitter *chunking.Splitter
	closers  []func()
}

type Options struct {
	Service string
	Logger  *slog.Logger
	// Registerer receives retrieval metrics; nil disables them.
	Registerer   prometheus.Registerer
	ConnectQueue bool
}

func New(ctx context.Context, cfg config.Config, opts Options) (_ *App, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, splitter: chunking.NewSplitter(cfg.IndexChunkSize, cfg.IndexChunkOverlap)}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	var observer *metrics.RetrievalMetrics
	if opts.Registerer != nil {
		observer = metrics.NewRetrievalMetrics(opts.Service, opts.Registerer)
	}

	executorOpts := []resilience.Option{resilience.WithLogger(logging.WithComponent(logger, "resilience"))}
	if observer != nil {
		executorOpts = append(executorOpts, resilience.WithStateObserver(observer.ObserveBreakerState))
	}
	policy := cfg.Resilience.WithinDeadline(cfg.BackendTimeout)
	if requested := cfg.Resilience.RetryMaxAttempts; requested > policy.RetryMaxAttempts {
		logger.Warn("retry_attempts_trimmed",
			"requested", requested,
			"effective", policy.RetryMaxAttempts,
			"backend_timeout", cfg.BackendTimeout.String(),
		)
	}
	executor := resilience.NewExecutor(policy, executorOpts...)

	tokenizer := newTokenizer(cfg, logger)
	embedder, err := newEmbedder(cfg, executor)
	if err != nil {
		return nil, err
	}
	oracle, err := newOracle(cfg, executor)
	if err != nil {
		return nil, err
	}

	var (
		backends []usecase.GatewayBackend
		access   ports.AccessResolver
		recorder ports.RunRecorder
	)
	remote := func(b ports.SearchBackend) ports.SearchBackend { return b }

	if cfg.CacheEnabled {
		store := cache.NewRedisStore(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		app.closers = append(app.closers, func() { _ = store.Close() })
		if err := store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("init result cache: %w", err)
		}
		cacheOpts := []cache.Option{
			cache.WithTTL(cfg.RedisCacheTTL),
			cache.WithLogger(logging.WithComponent(logger, "cache")),
		}
		if observer != nil {
			cacheOpts = append(cacheOpts, cache.WithHitObserver(observer))
		}
		remote = func(b ports.SearchBackend) ports.SearchBackend {
			return cache.NewCachedBackend(b, store, cacheOpts...)
		}
	}

	if cfg.QdrantEnabled || cfg.QdrantSparseEnabled {
		client := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.WithExecutor(executor))
		denseName, sparseName := cfg.QdrantDenseVector, ""
		if cfg.QdrantSparseEnabled {
			sparseName = cfg.QdrantSparseVector
			if denseName == "" {
				denseName = qdrant.DefaultDenseVectorName
			}
		}
		indexer := qdrant.NewIndexer(client, embedder, tokenizer, denseName, sparseName)
		app.Indexers = append(app.Indexers, Indexer{Name: indexer.Name(), Index: indexer.Index})
		backends = append(backends,
			usecase.GatewayBackend{
				Backend: remote(qdrant.NewDenseBackend(client, embedder, denseName)),
				Enabled: cfg.QdrantEnabled,
			},
			usecase.GatewayBackend{
				Backend: remote(qdrant.NewSparseBackend(client, tokenizer, cfg.QdrantSparseVector)),
				Enabled: cfg.QdrantSparseEnabled,
			},
		)
	}

	if cfg.ChromemEnabled {
		store, err := chromemstore.Open(cfg.ChromemPath, cfg.ChromemCollection, embedder)
		if err != nil {
			return nil, fmt.Errorf("init chromem store: %w", err)
		}
		backends = append(backends, usecase.GatewayBackend{Backend: store, Enabled: true})
		app.Indexers = append(app.Indexers, Indexer{Name: store.Name(), Index: store.Add})
	}

	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.closers = append(app.closers, func() { _ = db.Close() })
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}

		app.Corpora = postgres.NewCorpusRepository(db)
		access = app.Corpora
		recorder = postgres.NewRunRepository(db)

		evidence := postgres.NewEvidenceRepository(db)
		backends = append(backends, usecase.GatewayBackend{Backend: remote(evidence), Enabled: cfg.LexicalEnabled})
		app.Indexers = append(app.Indexers, Indexer{Name: evidence.Name(), Index: evidence.Upsert})
	}

	if cfg.BleveEnabled {
		index, err := bleveindex.Open(cfg.BlevePath, cfg.BleveAnalyzer)
		if err != nil {
			return nil, fmt.Errorf("init bleve index: %w", err)
		}
		app.closers = append(app.closers, func() { _ = index.Close() })
		backends = append(backends, usecase.GatewayBackend{Backend: index, Enabled: true})
		app.Indexers = append(app.Indexers, Indexer{Name: index.Name(), Index: index.Add})
	}

	if cfg.GraphEnabled {
		driver, err := graphneo4j.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			return nil, fmt.Errorf("init neo4j: %w", err)
		}
		app.closers = append(app.closers, func() { _ = driver.Close(context.Background()) })
		graph := graphneo4j.New(driver, cfg.Neo4jDatabase, graphneo4j.WithExecutor(executor))
		if err := graph.EnsureIndex(ctx); err != nil {
			return nil, fmt.Errorf("ensure neo4j index: %w", err)
		}
		backends = append(backends, usecase.GatewayBackend{Backend: remote(graph), Enabled: true})
	}

	if len(backends) == 0 {
		logger.Warn("no_search_backends_configured")
	}

	var publisher ports.EventPublisher
	if opts.ConnectQueue || cfg.NATSEventsEnabled {
		eventsSubject := ""
		if cfg.NATSEventsEnabled {
			eventsSubject = cfg.NATSEventsSubject
		}
		queue, err := nats.New(cfg.NATSURL, nats.Options{
			EventsSubject:      eventsSubject,
			JobsSubject:        cfg.NATSJobsSubject,
			ResilienceExecutor: executor,
			Logger:             logging.WithComponent(logger, "nats"),
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		app.closers = append(app.closers, queue.Close)
		if cfg.NATSEventsEnabled {
			publisher = queue
		}
	}

	engine, err := newFusionEngine(cfg, tokenizer)
	if err != nil {
		return nil, err
	}

	gatewayOpts := []usecase.GatewayOption{usecase.WithGatewayLogger(logging.WithComponent(logger, "gateway"))}
	evaluatorOpts := []usecase.EvaluatorOption{
		usecase.WithAdvisorTimeout(cfg.AdvisorTimeout),
		usecase.WithEvaluatorLogger(logging.WithComponent(logger, "evaluator")),
	}
	pipelineOpts := []usecase.PipelineOption{usecase.WithPipelineLogger(logging.WithComponent(logger, "pipeline"))}
	if access != nil {
		gatewayOpts = append(gatewayOpts, usecase.WithAccessResolver(access))
	}
	if oracle != nil {
		evaluatorOpts = append(evaluatorOpts, usecase.WithSemanticOracle(oracle))
	}
	if recorder != nil {
		pipelineOpts = append(pipelineOpts, usecase.WithRunRecorder(recorder))
	}
	if publisher != nil {
		pipelineOpts = append(pipelineOpts, usecase.WithEventPublisher(publisher))
	}
	if observer != nil {
		gatewayOpts = append(gatewayOpts, usecase.WithGatewayObserver(observer))
		evaluatorOpts = append(evaluatorOpts, usecase.WithEvaluationObserver(observer))
		pipelineOpts = append(pipelineOpts, usecase.WithPipelineObserver(observer))
	}

	gateway := usecase.NewSearchGateway(usecase.GatewayConfig{
		Backends:       backends,
		DefaultTopK:    cfg.RetrievalTopK,
		BackendTimeout: cfg.BackendTimeout,
	}, gatewayOpts...)

	app.Pipeline = usecase.NewRetrievalPipeline(
		gateway,
		usecase.NewQualityEvaluator(evaluatorOpts...),
		engine,
		usecase.PipelineConfig{
			ExpansionTopK: cfg.RetrievalExpansionTopK,
			MaxExpansions: cfg.RetrievalMaxExpansions,
		},
		pipelineOpts...,
	)

	logger.Info("bootstrap_completed",
		"backends", backendNames(backends),
		"oracle", cfg.OracleProvider,
		"access_checks", access != nil,
		"events", publisher != nil,
	)
	return app, nil
}

// Index chunks docs and writes them to every configured indexer, joining
// their errors.
func (a *App) Index(ctx context.Context, docs []domain.EvidenceDocument) error {
	if len(a.Indexers) == 0 {
		return fmt.Errorf("no indexable store configured: enable qdrant, chromem, bleve or postgres")
	}
	docs = a.splitter.SplitDocuments(docs)
	var errs []error
	for _, ix := range a.Indexers {
		if err := ix.Index(ctx, docs); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ix.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newTokenizer(cfg config.Config, logger *slog.Logger) ports.Tokenizer {
	if cfg.FusionTokenizer != "gse" {
		return fusion.SimpleTokenizer{}
	}
	seg, err := segmenter.NewGSE()
	if err != nil {
		logger.Warn("gse_tokenizer_unavailable", "error", err)
		return fusion.SimpleTokenizer{}
	}
	return seg
}

func newEmbedder(cfg config.Config, executor *resilience.Executor) (ports.Embedder, error) {
	switch cfg.EmbedProvider {
	case "", "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.WithExecutor(executor))
		return ollama.NewEmbedder(client), nil
	case "openai":
		client := openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIChatModel, cfg.OpenAIEmbedModel, openai.WithExecutor(executor))
		return openai.NewEmbedder(client), nil
	default:
		return nil, fmt.Errorf("unknown EMBED_PROVIDER %q", cfg.EmbedProvider)
	}
}

func newOracle(cfg config.Config, executor *resilience.Executor) (ports.SemanticOracle, error) {
	switch cfg.OracleProvider {
	case "", "none":
		return nil, nil
	case "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.WithExecutor(executor))
		return ollama.NewOracle(client), nil
	case "openai":
		client := openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIChatModel, cfg.OpenAIEmbedModel, openai.WithExecutor(executor))
		return openai.NewOracle(client), nil
	default:
		return nil, fmt.Errorf("unknown ORACLE_PROVIDER %q", cfg.OracleProvider)
	}
}

// NewFusionEngine builds the fusion engine alone, for callers that fuse text
// without any search backend.
func NewFusionEngine(cfg config.Config, logger *slog.Logger) (*fusion.Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return newFusionEngine(cfg, newTokenizer(cfg, logger))
}

func newFusionEngine(cfg config.Config, tokenizer ports.Tokenizer) (*fusion.Engine, error) {
	opts := []fusion.Option{
		fusion.WithTokenizer(tokenizer),
		fusion.WithMaxCoreSentences(cfg.FusionMaxCoreSentences),
	}
	if cfg.FusionLexiconPath != "" {
		lex, err := fusion.LoadLexiconFile(cfg.FusionLexiconPath)
		if err != nil {
			return nil, fmt.Errorf("load fusion lexicon: %w", err)
		}
		opts = append(opts, fusion.WithLexicon(lex))
	}
	return fusion.NewEngine(opts...), nil
}

func backendNames(backends []usecase.GatewayBackend) []string {
	names := make([]string, 0, len(backends))
	for _, b := range backends {
		if b.Enabled {
			names = append(names, b.Backend.Name())
		}
	}
	return names
}
