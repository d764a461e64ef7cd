// Package chunking cuts long evidence documents into overlapping windows
// before they are indexed.
package chunking

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

// MetaChunkIndex records the window position of a chunk within its source
// document.
const MetaChunkIndex = "chunk_index"

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// Split returns rune windows of at most ChunkSize. A window that would cut a
// word is shortened to the last whitespace in its second half, and the
// overlap is pushed forward to the next word start.
func (s *Splitter) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.ChunkSize {
		return []string{string(runes)}
	}

	out := make([]string, 0, len(runes)/(s.ChunkSize-s.Overlap)+1)
	for start := 0; start < len(runes); {
		end := min(start+s.ChunkSize, len(runes))
		if end < len(runes) {
			end = breakAt(runes, start, end)
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
		next := end - s.Overlap
		if next <= start {
			next = end
		}
		for next < end && !unicode.IsSpace(runes[next-1]) {
			next++
		}
		start = next
	}
	return out
}

func breakAt(runes []rune, start, end int) int {
	floor := start + (end-start)/2
	for i := end; i > floor; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

// SplitDocuments replaces every document longer than one window by its
// chunks. Chunk ids are "<id>#<n>"; documents that fit keep their id.
func (s *Splitter) SplitDocuments(docs []domain.EvidenceDocument) []domain.EvidenceDocument {
	out := make([]domain.EvidenceDocument, 0, len(docs))
	for _, doc := range docs {
		chunks := s.Split(doc.Content)
		if len(chunks) <= 1 {
			out = append(out, doc)
			continue
		}
		for i, chunk := range chunks {
			part := doc
			part.ID = fmt.Sprintf("%s#%d", doc.ID, i)
			part.Content = chunk
			part.Metadata = make(map[string]string, len(doc.Metadata)+1)
			for k, v := range doc.Metadata {
				part.Metadata[k] = v
			}
			part.Metadata[MetaChunkIndex] = strconv.Itoa(i)
			out = append(out, part)
		}
	}
	return out
}
