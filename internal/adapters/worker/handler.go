// Package worker turns queued retrieval jobs into pipeline runs.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/kirillkom/evidence-retrieval/internal/adapters/contract"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
)

const serviceName = "worker"

// JobObserver is satisfied by metrics.WorkerMetrics.
type JobObserver interface {
	StartJob()
	FinishJob(service string, duration time.Duration, err error)
}

type Handler struct {
	svc      ports.RetrievalService
	timeout  time.Duration
	observer JobObserver
	logger   *slog.Logger
}

type Option func(*Handler)

func WithJobObserver(observer JobObserver) Option {
	return func(h *Handler) { h.observer = observer }
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler bounds each job by timeout; zero means the caller's deadline only.
func NewHandler(svc ports.RetrievalService, timeout time.Duration, opts ...Option) *Handler {
	h := &Handler{svc: svc, timeout: timeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle decodes a retrieve body, runs the pipeline and returns the reply
// payload: the outcome JSON on success, an error body otherwise.
func (h *Handler) Handle(ctx context.Context, payload []byte) []byte {
	started := time.Now()
	if h.observer != nil {
		h.observer.StartJob()
	}

	reply, err := h.run(ctx, payload)
	if h.observer != nil {
		h.observer.FinishJob(serviceName, time.Since(started), err)
	}
	if err != nil {
		h.logger.Warn("retrieval_job_failed",
			"kind", contract.ErrorKind(err),
			"error", err,
			"duration_ms", time.Since(started).Milliseconds(),
		)
		return encode(contract.NewErrorBody(err))
	}
	return reply
}

func (h *Handler) run(ctx context.Context, payload []byte) ([]byte, error) {
	body, err := contract.DecodeRetrieveBody(payload)
	if err != nil {
		return nil, err
	}
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	outcome, err := h.svc.Retrieve(ctx, body.ToDomain())
	if err != nil {
		return nil, err
	}
	h.logger.Info("retrieval_job_completed",
		"run_id", outcome.RunID,
		"corpus_id", outcome.CorpusID,
		"termination", outcome.Termination,
		"expansions", outcome.Expansions,
	)
	return json.Marshal(outcome)
}

func encode(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"error":"encode reply","kind":"internal"}`)
	}
	return raw
}
