package fusion

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
)

const maxSentenceKeywords = 5

// extractKeywords keeps tokens in first-seen order, dropping stop words,
// punctuation-only tokens and single characters.
func extractKeywords(sentence string, tokenizer ports.Tokenizer, stopWords map[string]struct{}) []string {
	tokens := tokenizer.Tokenize(sentence)
	out := make([]string, 0, maxSentenceKeywords)
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if utf8.RuneCountInString(token) <= 1 {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		if isPunctuationOnly(token) {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
		if len(out) == maxSentenceKeywords {
			break
		}
	}
	return out
}

func isPunctuationOnly(token string) bool {
	for _, r := range token {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// SimpleTokenizer splits on whitespace and punctuation. It suits
// space-delimited text and pre-segmented input; CJK prose needs a dictionary
// segmenter.
type SimpleTokenizer struct{}

func (SimpleTokenizer) Tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}
