package domain

import (
	"fmt"
	"strings"
)

// EvidenceDocument is one indexable evidence chunk for the embedded stores.
type EvidenceDocument struct {
	ID              string            `json:"id"`
	CorpusID        string            `json:"corpus_id"`
	Title           string            `json:"title"`
	Content         string            `json:"content"`
	PermissionLevel string            `json:"permission_level,omitempty"`
	FileID          string            `json:"file_id,omitempty"`
	FileName        string            `json:"file_name,omitempty"`
	Partition       string            `json:"partition,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

func (d EvidenceDocument) Validate() error {
	switch {
	case strings.TrimSpace(d.ID) == "":
		return WrapError(ErrInvalidInput, "validate evidence", fmt.Errorf("id is required"))
	case strings.TrimSpace(d.CorpusID) == "":
		return WrapError(ErrInvalidInput, "validate evidence", fmt.Errorf("corpus_id is required for %s", d.ID))
	case strings.TrimSpace(d.Content) == "":
		return WrapError(ErrInvalidInput, "validate evidence", fmt.Errorf("content is required for %s", d.ID))
	}
	return nil
}

// Fields flattens the document into string metadata. Explicit fields win
// over entries of Metadata with the same key.
func (d EvidenceDocument) Fields() map[string]string {
	out := make(map[string]string, len(d.Metadata)+6)
	for k, v := range d.Metadata {
		out[k] = v
	}
	out[MetaCorpusID] = d.CorpusID
	out["title"] = d.Title
	level := strings.TrimSpace(d.PermissionLevel)
	if level == "" {
		level = PermissionPublic
	}
	out[MetaPermissionLevel] = level
	if d.FileID != "" {
		out[MetaFileID] = d.FileID
	}
	if d.FileName != "" {
		out[MetaFileName] = d.FileName
	}
	if d.Partition != "" {
		out[MetaPartition] = d.Partition
	}
	return out
}
