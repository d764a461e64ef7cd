package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/resilience"
)

const docBM25K = 1.2

// pointNamespace derives stable point ids from evidence ids, so re-indexing a
// document overwrites its point.
var pointNamespace = uuid.MustParse("5b7e3c1a-2f0d-4b8e-9a61-0c4f7d2e9b13")

// Indexer writes evidence points with the payload layout the backends read.
// With a sparse vector name it also stores the hashed-term vector used by
// SparseBackend.
type Indexer struct {
	client     *Client
	embedder   ports.Embedder
	tokenizer  ports.Tokenizer
	denseName  string
	sparseName string

	ensureMu   sync.Mutex
	ensuredDim int
}

// NewIndexer names the dense vector DefaultDenseVectorName when a sparse
// vector is stored and denseName is empty.
func NewIndexer(client *Client, embedder ports.Embedder, tokenizer ports.Tokenizer, denseName, sparseName string) *Indexer {
	if sparseName != "" && denseName == "" {
		denseName = DefaultDenseVectorName
	}
	return &Indexer{
		client:     client,
		embedder:   embedder,
		tokenizer:  tokenizer,
		denseName:  denseName,
		sparseName: sparseName,
	}
}

func (ix *Indexer) Name() string { return "qdrant" }

type point struct {
	ID      string         `json:"id"`
	Vector  any            `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Index embeds every document and upserts the batch in one request.
func (ix *Indexer) Index(ctx context.Context, docs []domain.EvidenceDocument) error {
	if len(docs) == 0 {
		return nil
	}
	points := make([]point, 0, len(docs))
	dim := 0
	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			return err
		}
		vector, err := ix.embedder.EmbedQuery(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("embed %s: %w", doc.ID, err)
		}
		if dim == 0 {
			dim = len(vector)
		} else if len(vector) != dim {
			return fmt.Errorf("embed %s: dimension %d, expected %d", doc.ID, len(vector), dim)
		}
		points = append(points, point{
			ID:      uuid.NewSHA1(pointNamespace, []byte(doc.ID)).String(),
			Vector:  ix.vectorFor(vector, doc.Content),
			Payload: payloadFor(doc),
		})
	}
	if dim == 0 {
		return fmt.Errorf("embedder returned empty vectors")
	}

	if err := ix.ensureCollection(ctx, dim); err != nil {
		return err
	}
	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", ix.client.baseURL, ix.client.collection)
	return ix.send(ctx, "upsert", http.MethodPut, url, body, false)
}

func (ix *Indexer) vectorFor(dense []float32, text string) any {
	if ix.sparseName == "" {
		if ix.denseName == "" {
			return dense
		}
		return map[string]any{ix.denseName: dense}
	}
	return map[string]any{
		ix.denseName:  dense,
		ix.sparseName: encodeSparseDocument(text, ix.tokenizer),
	}
}

func payloadFor(doc domain.EvidenceDocument) map[string]any {
	fields := doc.Fields()
	payload := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		if _, reserved := reservedPayloadKeys[k]; reserved {
			continue
		}
		payload[k] = v
	}
	payload[payloadEvidenceID] = doc.ID
	payload[payloadTitle] = doc.Title
	payload[payloadText] = doc.Content
	return payload
}

func encodeSparseDocument(text string, tokenizer ports.Tokenizer) sparseVector {
	termFreq := make(map[uint32]float64, 64)
	appendTermFreq(termFreq, tokenize(text, tokenizer), 1.0)
	return termFreqToSparse(termFreq, docBM25K)
}

// ensureCollection creates the collection once per dimension. A 409 means it
// already exists.
func (ix *Indexer) ensureCollection(ctx context.Context, dim int) error {
	ix.ensureMu.Lock()
	defer ix.ensureMu.Unlock()
	if ix.ensuredDim == dim {
		return nil
	}

	dense := map[string]any{"size": dim, "distance": "Cosine"}
	spec := map[string]any{"vectors": dense}
	if ix.denseName != "" {
		spec["vectors"] = map[string]any{ix.denseName: dense}
	}
	if ix.sparseName != "" {
		spec["sparse_vectors"] = map[string]any{ix.sparseName: map[string]any{}}
	}
	body, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("marshal ensure collection body: %w", err)
	}
	url := fmt.Sprintf("%s/collections/%s", ix.client.baseURL, ix.client.collection)
	if err := ix.send(ctx, "ensure_collection", http.MethodPut, url, body, true); err != nil {
		return err
	}
	ix.ensuredDim = dim
	return nil
}

func (ix *Indexer) send(ctx context.Context, operation, method, url string, body []byte, allowConflict bool) error {
	_, err := resilience.Call(ctx, ix.client.executor, "qdrant."+operation, func(callCtx context.Context) (struct{}, error) {
		req, err := http.NewRequestWithContext(callCtx, method, url, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := ix.client.httpClient.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 && !(allowConflict && resp.StatusCode == http.StatusConflict) {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return struct{}{}, &resilience.HTTPStatusError{
				Service:    "qdrant",
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       string(msg),
			}
		}
		return struct{}{}, nil
	}, resilience.ClassifyRemoteError)
	if err != nil {
		return resilience.WrapTemporaryIfNeeded("qdrant "+operation, err, resilience.ClassifyRemoteError)
	}
	return nil
}
