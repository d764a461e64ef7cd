package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/resilience"
)

// Payload keys written by the indexer and read back on search.
const (
	payloadEvidenceID = "evidence_id"
	payloadTitle      = "title"
	payloadText       = "text"
)

var reservedPayloadKeys = map[string]struct{}{
	payloadEvidenceID: {},
	payloadTitle:      {},
	payloadText:       {},
}

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) { c.executor = executor }
}

func New(baseURL, collection string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type scoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// search runs one points/search call. vector is either a plain dense vector
// or a named vector object accepted by Qdrant.
func (c *Client) search(ctx context.Context, operation string, vector any, q domain.BackendQuery) ([]domain.SearchResult, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        q.TopK,
		"with_payload": true,
		"filter":       buildFilter(q),
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	points, err := resilience.Call(ctx, c.executor, "qdrant."+operation, func(callCtx context.Context) ([]scoredPoint, error) {
		return c.doSearch(callCtx, operation, body)
	}, resilience.ClassifyRemoteError)
	if err != nil {
		return nil, resilience.WrapTemporaryIfNeeded("qdrant "+operation, err, resilience.ClassifyRemoteError)
	}

	out := make([]domain.SearchResult, 0, len(points))
	for _, p := range points {
		out = append(out, toSearchResult(p))
	}
	return out, nil
}

func (c *Client) doSearch(ctx context.Context, operation string, body []byte) ([]scoredPoint, error) {
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &resilience.HTTPStatusError{
			Service:    "qdrant",
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(msg),
		}
	}

	var searchResp struct {
		Result []scoredPoint `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return searchResp.Result, nil
}

func buildFilter(q domain.BackendQuery) map[string]any {
	must := []map[string]any{
		{"key": domain.MetaCorpusID, "match": map[string]any{"value": q.CorpusID}},
	}
	if q.PublicOnly {
		must = append(must, map[string]any{
			"key":   domain.MetaPermissionLevel,
			"match": map[string]any{"value": domain.PermissionPublic},
		})
	}
	return map[string]any{"must": must}
}

// toSearchResult keeps every non-reserved payload key as metadata so the
// partition and file fields survive for dedup and provenance.
func toSearchResult(p scoredPoint) domain.SearchResult {
	id := getStringPayload(p.Payload, payloadEvidenceID)
	if id == "" && p.ID != nil {
		id = fmt.Sprintf("%v", p.ID)
	}
	metadata := make(map[string]any, len(p.Payload))
	for k, v := range p.Payload {
		if _, reserved := reservedPayloadKeys[k]; reserved {
			continue
		}
		metadata[k] = v
	}
	return domain.SearchResult{
		ID:       id,
		Title:    getStringPayload(p.Payload, payloadTitle),
		Content:  getStringPayload(p.Payload, payloadText),
		Score:    p.Score,
		Metadata: metadata,
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
