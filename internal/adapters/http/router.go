package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/evidence-retrieval/internal/adapters/contract"
	"github.com/kirillkom/evidence-retrieval/internal/config"
	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
	"github.com/kirillkom/evidence-retrieval/internal/observability/metrics"
)

const (
	serviceName  = "api"
	maxBodyBytes = 1 << 20
)

type Router struct {
	svc       ports.RetrievalService
	cfg       config.Config
	validator *requestValidator
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger
}

type RouterOption func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) { rt.metrics = m }
}

func WithLogger(logger *slog.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func NewRouter(cfg config.Config, svc ports.RetrievalService, opts ...RouterOption) (*Router, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	rt := &Router{
		svc:       svc,
		cfg:       cfg,
		validator: validator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPI)
	mux.HandleFunc("POST /v1/retrieve", rt.retrieve)
	mux.HandleFunc("GET /v1/search", rt.search)
	mux.HandleFunc("POST /v1/fuse", rt.fuse)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = bodyLimitMiddleware(rt.validator.middleware(mux), maxBodyBytes)
	handler = v1Only(handler, func(next http.Handler) http.Handler {
		next = backpressureMiddleware(next, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait, rt.onReject)
		return rateLimitMiddleware(next, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.onReject)
	})
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) onReject(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(serviceName, reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(OpenAPIDocument())
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "invalid_input")
		return
	}
	body, err := contract.DecodeRetrieveBody(payload)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}

	outcome, err := rt.svc.Retrieve(r.Context(), body.ToDomain())
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type searchParams struct {
	CorpusID       string
	Query          string
	TopK           *int
	ActorID        *string
	PermissionFlag *bool
}

type searchResponse struct {
	CorpusID string              `json:"corpus_id"`
	Query    string              `json:"query"`
	Results  domain.CandidateSet `json:"results"`
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	var params searchParams
	query := r.URL.Query()
	bindings := []struct {
		name     string
		required bool
		dest     any
	}{
		{"corpus_id", true, &params.CorpusID},
		{"query", true, &params.Query},
		{"top_k", false, &params.TopK},
		{"actor_id", false, &params.ActorID},
		{"permission_flag", false, &params.PermissionFlag},
	}
	for _, b := range bindings {
		if err := runtime.BindQueryParameter("form", true, b.required, b.name, query, b.dest); err != nil {
			writeError(w, http.StatusBadRequest, "invalid parameter "+b.name+": "+err.Error(), "invalid_input")
			return
		}
	}

	req := domain.SearchRequest{
		CorpusID: strings.TrimSpace(params.CorpusID),
		Query:    strings.TrimSpace(params.Query),
	}
	if params.TopK != nil {
		req.TopK = *params.TopK
	}
	if params.ActorID != nil {
		req.ActorID = strings.TrimSpace(*params.ActorID)
	}
	if params.PermissionFlag != nil {
		req.PermissionFlag = *params.PermissionFlag
	}

	set, err := rt.svc.Search(r.Context(), req)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{CorpusID: req.CorpusID, Query: req.Query, Results: set})
}

func (rt *Router) fuse(w http.ResponseWriter, r *http.Request) {
	var body contract.FuseBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "invalid_input")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json", "invalid_input")
		return
	}
	writeJSON(w, http.StatusOK, rt.svc.Fuse(body.Texts))
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, contract.NewErrorBody(err))
}

func writeError(w http.ResponseWriter, status int, message, kind string) {
	writeJSON(w, status, contract.ErrorBody{Error: message, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
