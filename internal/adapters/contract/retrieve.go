// Package contract holds the wire shapes shared by every inbound surface
// (HTTP, NATS jobs, MCP, CLI).
package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

// RetrieveBody is the JSON body of POST /v1/retrieve and of a retrieval job.
type RetrieveBody struct {
	CorpusID           string   `json:"corpus_id"`
	Query              string   `json:"query"`
	ActorID            string   `json:"actor_id,omitempty"`
	TopK               int      `json:"top_k,omitempty"`
	PermissionFlag     bool     `json:"permission_flag,omitempty"`
	RequiredEntities   []string `json:"required_entities,omitempty"`
	RequiredMetrics    []string `json:"required_metrics,omitempty"`
	RequiredAttributes []string `json:"required_attributes,omitempty"`
	MaxExpansions      *int     `json:"max_expansions,omitempty"`
}

func (b RetrieveBody) ToDomain() domain.RetrievalRequest {
	return domain.RetrievalRequest{
		SearchRequest: domain.SearchRequest{
			CorpusID:       strings.TrimSpace(b.CorpusID),
			Query:          strings.TrimSpace(b.Query),
			ActorID:        strings.TrimSpace(b.ActorID),
			TopK:           b.TopK,
			PermissionFlag: b.PermissionFlag,
		},
		Requirements: domain.Requirements{
			Entities:   compact(b.RequiredEntities),
			Metrics:    compact(b.RequiredMetrics),
			Attributes: compact(b.RequiredAttributes),
		},
		MaxExpansions: b.MaxExpansions,
	}
}

// DecodeRetrieveBody parses a job payload. Unknown fields are rejected so a
// misspelled requirement key does not silently drop a constraint.
func DecodeRetrieveBody(payload []byte) (RetrieveBody, error) {
	var body RetrieveBody
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return RetrieveBody{}, domain.WrapError(domain.ErrInvalidInput, "decode retrieve body", err)
	}
	if body.MaxExpansions != nil && *body.MaxExpansions < 0 {
		return RetrieveBody{}, domain.WrapError(domain.ErrInvalidInput, "decode retrieve body", fmt.Errorf("max_expansions must be >= 0"))
	}
	return body, nil
}

// FuseBody is the JSON body of POST /v1/fuse.
type FuseBody struct {
	Texts []string `json:"texts"`
}

// ErrorBody is returned by every surface on failure.
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func NewErrorBody(err error) ErrorBody {
	return ErrorBody{Error: err.Error(), Kind: ErrorKind(err)}
}

var errorKinds = []struct {
	kind error
	name string
}{
	{domain.ErrInvalidInput, "invalid_input"},
	{domain.ErrCorpusNotFound, "corpus_not_found"},
	{domain.ErrForbidden, "forbidden"},
	{domain.ErrTemporary, "temporary"},
	{domain.ErrBackendUnavailable, "backend_unavailable"},
	{domain.ErrAdvisorParse, "advisor_parse"},
}

// ErrorKind names the domain kind of err, or "internal".
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "internal"
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SplitPassages splits free text into fusion passages on blank lines.
func SplitPassages(text string) []string {
	var passages []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			passages = append(passages, p)
		}
	}
	return passages
}
