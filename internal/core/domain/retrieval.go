package domain

import (
	"fmt"
	"math"
	"strings"
)

type SourceEngine string

const (
	SourceVector  SourceEngine = "vector"
	SourceLexical SourceEngine = "lexical"
	SourceGraph   SourceEngine = "graph"
)

// Well-known metadata keys shared by backend adapters and the artifact separator.
const (
	MetaFileID          = "file_id"
	MetaFileName        = "file_name"
	MetaCorpusID        = "corpus_id"
	MetaPartition       = "partition"
	MetaPermissionLevel = "permission_level"
	MetaFileDetail      = "file_detail"
	MetaGraphRelation   = "graph_relation"
	MetaMediaContent    = "media_content"

	PermissionPublic = "public"
)

// SearchResult is one normalized backend hit. Score is backend-native and not
// comparable across engines.
type SearchResult struct {
	ID           string         `json:"id,omitempty"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	Score        float64        `json:"score"`
	SourceEngine SourceEngine   `json:"source_engine"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Clone returns a copy that shares no top-level map with r.
func (r SearchResult) Clone() SearchResult {
	out := r
	if r.Metadata != nil {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Normalized replaces values that would make ranking undefined.
func (r SearchResult) Normalized() SearchResult {
	out := r.Clone()
	if math.IsNaN(out.Score) || math.IsInf(out.Score, 0) {
		out.Score = 0
	}
	out.ID = strings.TrimSpace(out.ID)
	return out
}

// MetadataString returns metadata[key] rendered as a string, or "" when absent.
func (r SearchResult) MetadataString(key string) string {
	return StringValue(r.Metadata, key)
}

// StringValue reads a loosely typed map entry as a string.
func StringValue(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// SearchRequest is the gateway contract input.
type SearchRequest struct {
	CorpusID       string `json:"corpus_id"`
	Query          string `json:"query"`
	ActorID        string `json:"actor_id,omitempty"`
	TopK           int    `json:"top_k,omitempty"`
	PermissionFlag bool   `json:"permission_flag,omitempty"`
}

// BackendQuery is what a single backend adapter receives.
type BackendQuery struct {
	CorpusID   string
	Query      string
	TopK       int
	PublicOnly bool
}
