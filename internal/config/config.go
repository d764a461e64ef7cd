package config

import (
	"os"
	"strconv"
	"time"

	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/resilience"
)

type Config struct {
	APIPort  string
	LogLevel string

	// PostgresDSN empty disables corpus access checks, run audit and the
	// Postgres lexical backend.
	PostgresDSN    string
	LexicalEnabled bool

	NATSURL           string
	NATSJobsSubject   string
	NATSEventsSubject string
	NATSEventsEnabled bool

	CacheEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisCacheTTL time.Duration

	QdrantEnabled       bool
	QdrantURL           string
	QdrantCollection    string
	QdrantDenseVector   string
	QdrantSparseEnabled bool
	QdrantSparseVector  string

	ChromemEnabled    bool
	ChromemPath       string
	ChromemCollection string

	BleveEnabled  bool
	BlevePath     string
	BleveAnalyzer string

	GraphEnabled  bool
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	OracleProvider string
	EmbedProvider  string

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string

	OpenAIBaseURL    string
	OpenAIAPIKey     string
	OpenAIChatModel  string
	OpenAIEmbedModel string

	RetrievalTopK          int
	RetrievalExpansionTopK int
	RetrievalMaxExpansions int
	BackendTimeout         time.Duration
	AdvisorTimeout         time.Duration

	FusionLexiconPath      string
	FusionTokenizer        string
	FusionMaxCoreSentences int

	IndexChunkSize    int
	IndexChunkOverlap int

	APIRateLimitRPS     float64
	APIRateLimitBurst   int
	APIMaxInFlight      int
	APIBackpressureWait time.Duration

	OTelExporter     string
	OTelOTLPEndpoint string
	Environment      string

	WorkerMetricsPort string

	Resilience resilience.Config
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
		LexicalEnabled: mustEnvBool("LEXICAL_ENABLED", true),

		NATSURL:           mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSJobsSubject:   mustEnv("NATS_JOBS_SUBJECT", "retrieval.jobs"),
		NATSEventsSubject: mustEnv("NATS_EVENTS_SUBJECT", "retrieval.completed"),
		NATSEventsEnabled: mustEnvBool("NATS_EVENTS_ENABLED", false),

		CacheEnabled:  mustEnvBool("CACHE_ENABLED", false),
		RedisAddr:     mustEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       mustEnvInt("REDIS_DB", 0),
		RedisCacheTTL: mustEnvDuration("REDIS_CACHE_TTL", 5*time.Minute),

		QdrantEnabled:       mustEnvBool("QDRANT_ENABLED", true),
		QdrantURL:           mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:    mustEnv("QDRANT_COLLECTION", "evidence"),
		QdrantDenseVector:   os.Getenv("QDRANT_DENSE_VECTOR"),
		QdrantSparseEnabled: mustEnvBool("QDRANT_SPARSE_ENABLED", false),
		QdrantSparseVector:  mustEnv("QDRANT_SPARSE_VECTOR", "text-sparse"),

		ChromemEnabled:    mustEnvBool("CHROMEM_ENABLED", false),
		ChromemPath:       os.Getenv("CHROMEM_PATH"),
		ChromemCollection: mustEnv("CHROMEM_COLLECTION", "evidence"),

		BleveEnabled:  mustEnvBool("BLEVE_ENABLED", false),
		BlevePath:     os.Getenv("BLEVE_PATH"),
		BleveAnalyzer: mustEnv("BLEVE_ANALYZER", "cjk"),

		GraphEnabled:  mustEnvBool("GRAPH_ENABLED", false),
		Neo4jURI:      mustEnv("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:     mustEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: os.Getenv("NEO4J_PASSWORD"),
		Neo4jDatabase: os.Getenv("NEO4J_DATABASE"),

		OracleProvider: mustEnv("ORACLE_PROVIDER", "none"),
		EmbedProvider:  mustEnv("EMBED_PROVIDER", "ollama"),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		OpenAIBaseURL:    mustEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIChatModel:  mustEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		OpenAIEmbedModel: mustEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small"),

		RetrievalTopK:          mustEnvInt("RETRIEVAL_TOP_K", 5),
		RetrievalExpansionTopK: mustEnvInt("RETRIEVAL_EXPANSION_TOP_K", 5),
		RetrievalMaxExpansions: mustEnvInt("RETRIEVAL_MAX_EXPANSIONS", 2),
		BackendTimeout:         mustEnvDuration("BACKEND_TIMEOUT", 10*time.Second),
		AdvisorTimeout:         mustEnvDuration("ADVISOR_TIMEOUT", 20*time.Second),

		FusionLexiconPath:      os.Getenv("FUSION_LEXICON_PATH"),
		FusionTokenizer:        mustEnv("FUSION_TOKENIZER", "gse"),
		FusionMaxCoreSentences: mustEnvInt("FUSION_MAX_CORE_SENTENCES", 200),

		IndexChunkSize:    mustEnvInt("INDEX_CHUNK_SIZE", 900),
		IndexChunkOverlap: mustEnvInt("INDEX_CHUNK_OVERLAP", 120),

		APIRateLimitRPS:     mustEnvFloat("API_RATE_LIMIT_RPS", 0),
		APIRateLimitBurst:   mustEnvInt("API_RATE_LIMIT_BURST", 0),
		APIMaxInFlight:      mustEnvInt("API_MAX_IN_FLIGHT", 64),
		APIBackpressureWait: mustEnvDuration("API_BACKPRESSURE_WAIT", 250*time.Millisecond),

		OTelExporter:     mustEnv("OTEL_EXPORTER", "none"),
		OTelOTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Environment:      os.Getenv("DEPLOY_ENV"),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),

		Resilience: loadResilience(),
	}
}

func loadResilience() resilience.Config {
	def := resilience.DefaultConfig()
	return resilience.Config{
		RetryMaxAttempts:    mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", def.RetryMaxAttempts),
		RetryInitialBackoff: mustEnvDuration("RESILIENCE_RETRY_INITIAL_BACKOFF", def.RetryInitialBackoff),
		RetryMaxBackoff:     mustEnvDuration("RESILIENCE_RETRY_MAX_BACKOFF", def.RetryMaxBackoff),
		RetryMultiplier:     mustEnvFloat("RESILIENCE_RETRY_MULTIPLIER", def.RetryMultiplier),

		BreakerEnabled:          mustEnvBool("RESILIENCE_BREAKER_ENABLED", def.BreakerEnabled),
		BreakerMinRequests:      uint32(mustEnvInt("RESILIENCE_BREAKER_MIN_REQUESTS", int(def.BreakerMinRequests))),
		BreakerFailureRatio:     mustEnvFloat("RESILIENCE_BREAKER_FAILURE_RATIO", def.BreakerFailureRatio),
		BreakerOpenTimeout:      mustEnvDuration("RESILIENCE_BREAKER_OPEN_TIMEOUT", def.BreakerOpenTimeout),
		BreakerHalfOpenMaxCalls: uint32(mustEnvInt("RESILIENCE_BREAKER_HALF_OPEN_MAX_CALLS", int(def.BreakerHalfOpenMaxCalls))),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
