// Package segmenter provides dictionary-based word segmentation for the
// fusion engine and the sparse query encoder.
package segmenter

import (
	"fmt"
	"strings"

	"github.com/go-ego/gse"
)

// GSE segments mixed CJK and Latin text with the embedded gse dictionary.
// The dictionary is read-only after NewGSE, so Tokenize may run concurrently.
type GSE struct {
	seg gse.Segmenter
}

func NewGSE() (*GSE, error) {
	g := &GSE{}
	g.seg.SkipLog = true
	if err := g.seg.LoadDictEmbed(); err != nil {
		return nil, fmt.Errorf("load gse dictionary: %w", err)
	}
	return g, nil
}

// Tokenize returns the search-mode cut of text: dictionary compounds such as
// 市场需求 are preceded by their dictionary sub-words (市场, 需求), so shared
// terms still match across sentences. Whitespace tokens are removed.
func (g *GSE) Tokenize(text string) []string {
	raw := g.seg.CutSearch(text, true)

	out := make([]string, 0, len(raw))
	for _, token := range raw {
		if token = strings.TrimSpace(token); token != "" {
			out = append(out, token)
		}
	}
	return out
}
