// Package fusion reduces redundancy in retrieved evidence by building a
// three-layer discourse graph: subordinate sentences, core-fact sentences and
// topic bridges linking sentences through shared keywords.
package fusion

import (
	"strings"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
)

const (
	maxBridgeExamples     = 3
	maxExtraSubSentences  = 5
	defaultMaxCoreForPair = 200
)

type Engine struct {
	tokenizer ports.Tokenizer
	lexicon   Lexicon
	maxCore   int
}

type Option func(*Engine)

func WithTokenizer(tokenizer ports.Tokenizer) Option {
	return func(e *Engine) {
		if tokenizer != nil {
			e.tokenizer = tokenizer
		}
	}
}

func WithLexicon(lex Lexicon) Option {
	return func(e *Engine) {
		if lex.Relations != nil {
			e.lexicon = lex
		}
	}
}

// WithMaxCoreSentences bounds how many core sentences enter the pairwise
// triple search.
func WithMaxCoreSentences(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxCore = n
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		tokenizer: SimpleTokenizer{},
		lexicon:   DefaultLexicon(),
		maxCore:   defaultMaxCoreForPair,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fuse builds the discourse graph for the contents of a candidate set.
func (e *Engine) Fuse(candidates domain.CandidateSet) domain.FusionResult {
	results := candidates.Results()
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Content
	}
	return e.FuseTexts(texts)
}

// FuseTexts builds the discourse graph for raw texts; SourceIndex refers to
// the position in texts.
func (e *Engine) FuseTexts(texts []string) domain.FusionResult {
	graph := domain.DiscourseGraph{
		SubSentences:  []domain.DiscourseSentence{},
		CoreSentences: []domain.DiscourseSentence{},
		TopicBridges:  []domain.TopicBridge{},
		EntityTriples: []domain.EntityTriple{},
	}

	for idx, text := range texts {
		for _, sentence := range splitSentences(text) {
			rel, confidence := classifyRelation(sentence, e.lexicon)
			item := domain.DiscourseSentence{
				Text:        sentence,
				SourceIndex: idx,
				Relation:    rel,
				Confidence:  confidence,
				Entities:    extractKeywords(sentence, e.tokenizer, e.lexicon.StopWords),
			}
			if isCoreSentence(rel, confidence) {
				graph.CoreSentences = append(graph.CoreSentences, item)
			} else {
				graph.SubSentences = append(graph.SubSentences, item)
			}
		}
	}

	// Core sentences are indexed ahead of subordinate ones.
	layered := make([]domain.DiscourseSentence, 0, len(graph.CoreSentences)+len(graph.SubSentences))
	layered = append(layered, graph.CoreSentences...)
	layered = append(layered, graph.SubSentences...)
	graph.TopicBridges = buildTopicBridges(layered)
	graph.EntityTriples = e.buildEntityTriples(graph.CoreSentences)

	return domain.FusionResult{
		Graph: graph,
		Text:  synthesize(graph),
	}
}

func buildTopicBridges(sentences []domain.DiscourseSentence) []domain.TopicBridge {
	order := make([]string, 0, len(sentences))
	index := make(map[string][]string, len(sentences))
	for _, s := range sentences {
		for _, keyword := range s.Entities {
			if _, ok := index[keyword]; !ok {
				order = append(order, keyword)
			}
			index[keyword] = append(index[keyword], s.Text)
		}
	}

	bridges := make([]domain.TopicBridge, 0)
	for _, keyword := range order {
		linked := index[keyword]
		if len(linked) < 2 {
			continue
		}
		examples := linked
		if len(examples) > maxBridgeExamples {
			examples = examples[:maxBridgeExamples]
		}
		bridges = append(bridges, domain.TopicBridge{
			Entity:          keyword,
			Sentences:       append([]string(nil), examples...),
			LinkedSentences: len(linked),
		})
	}
	return bridges
}

// buildEntityTriples walks core sentence pairs (i<j) in natural order and
// stops at domain.MaxEntityTriples.
func (e *Engine) buildEntityTriples(core []domain.DiscourseSentence) []domain.EntityTriple {
	if len(core) > e.maxCore {
		core = core[:e.maxCore]
	}

	triples := make([]domain.EntityTriple, 0, domain.MaxEntityTriples)
	for i := 0; i < len(core); i++ {
		left := core[i]
		if len(left.Entities) == 0 {
			continue
		}
		for j := i + 1; j < len(core); j++ {
			right := core[j]
			if len(right.Entities) == 0 {
				continue
			}
			rightSet := make(map[string]struct{}, len(right.Entities))
			for _, kw := range right.Entities {
				rightSet[kw] = struct{}{}
			}
			for _, shared := range left.Entities {
				if _, ok := rightSet[shared]; !ok {
					continue
				}
				triples = append(triples, domain.EntityTriple{
					Entity1:      left.Entities[0],
					Relation:     tripleRelation(left.Relation, right.Relation),
					Entity2:      right.Entities[0],
					BridgeEntity: shared,
					Sentence1:    left.Text,
					Sentence2:    right.Text,
				})
				if len(triples) == domain.MaxEntityTriples {
					return triples
				}
			}
		}
	}
	return triples
}

func tripleRelation(a, b domain.RelationType) string {
	if a == b {
		return string(a)
	}
	return string(a) + "-" + string(b)
}

func synthesize(graph domain.DiscourseGraph) string {
	included := make(map[string]struct{}, len(graph.CoreSentences))
	lines := make([]string, 0, len(graph.CoreSentences)+maxExtraSubSentences)
	for _, s := range graph.CoreSentences {
		if _, ok := included[s.Text]; ok {
			continue
		}
		included[s.Text] = struct{}{}
		lines = append(lines, s.Text)
	}

	extra := 0
	for _, s := range graph.SubSentences {
		if extra == maxExtraSubSentences {
			break
		}
		if _, ok := included[s.Text]; ok {
			continue
		}
		included[s.Text] = struct{}{}
		lines = append(lines, s.Text)
		extra++
	}
	return strings.Join(lines, "\n")
}
