package fusion

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

// Lexicon holds the relation keyword sets and the keyword stop-word list.
type Lexicon struct {
	Relations map[domain.RelationType][]string
	StopWords map[string]struct{}
}

var defaultRelationKeywords = map[domain.RelationType][]string{
	domain.RelationCausal:       {"因为", "由于", "所以", "因此", "导致", "造成", "引起"},
	domain.RelationConditional:  {"如果", "假如", "倘若", "只要", "除非", "当"},
	domain.RelationContrastive:  {"但是", "然而", "不过", "可是", "却", "尽管"},
	domain.RelationCoordinating: {"并且", "同时", "另外", "此外", "而且", "以及"},
	domain.RelationProgressive:  {"不仅", "而且", "甚至", "更", "还", "进一步"},
	domain.RelationExemplifying: {"例如", "比如", "譬如", "如", "像"},
	domain.RelationComparative:  {"相比", "相对于", "与...相比", "而", "相反"},
	domain.RelationSummarizing:  {"总之", "综上所述", "总的来说", "概括"},
	domain.RelationExplanatory:  {"即", "也就是说", "换句话说", "换言之"},
	domain.RelationTemporal:     {"首先", "然后", "接着", "最后", "之后", "之前"},
	domain.RelationPurposive:    {"为了", "以便", "旨在", "目的是"},
	domain.RelationConcessive:   {"虽然", "尽管", "即使", "纵然"},
}

var defaultStopWords = []string{"的", "了", "在", "是", "和", "与", "或", "但", "而", "等", "、", "，", "。"}

func DefaultLexicon() Lexicon {
	relations := make(map[domain.RelationType][]string, len(defaultRelationKeywords))
	for rel, keywords := range defaultRelationKeywords {
		relations[rel] = append([]string(nil), keywords...)
	}
	return Lexicon{
		Relations: relations,
		StopWords: toSet(defaultStopWords),
	}
}

type lexiconFile struct {
	Relations map[string][]string `yaml:"relations"`
	StopWords []string            `yaml:"stop_words"`
}

// LoadLexiconFile overlays a YAML lexicon on the defaults. Relations named in
// the file replace the default keyword list for that relation; a non-empty
// stop_words list replaces the default stop words.
func LoadLexiconFile(path string) (Lexicon, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("read lexicon file: %w", err)
	}
	return ParseLexicon(raw)
}

func ParseLexicon(raw []byte) (Lexicon, error) {
	var file lexiconFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Lexicon{}, fmt.Errorf("parse lexicon yaml: %w", err)
	}

	lex := DefaultLexicon()
	known := make(map[string]domain.RelationType, len(domain.RelationOrder))
	for _, rel := range domain.RelationOrder {
		known[string(rel)] = rel
	}
	for name, keywords := range file.Relations {
		rel, ok := known[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return Lexicon{}, fmt.Errorf("unknown relation %q in lexicon", name)
		}
		lex.Relations[rel] = compactStrings(keywords)
	}
	if stop := compactStrings(file.StopWords); len(stop) > 0 {
		lex.StopWords = toSet(stop)
	}
	return lex, nil
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

func compactStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
