package fusion

import (
	"strings"
	"unicode/utf8"
)

const minSentenceRunes = 6

func isSentenceDelimiter(r rune) bool {
	switch r {
	case '。', '！', '？', '；', '\n':
		return true
	default:
		return false
	}
}

// splitSentences cuts content at every run of delimiters. Delimiters are
// not part of the returned sentences; fragments shorter than
// minSentenceRunes after trimming are dropped.
func splitSentences(content string) []string {
	fragments := strings.FieldsFunc(content, isSentenceDelimiter)

	var out []string
	for _, fragment := range fragments {
		sentence := strings.TrimSpace(fragment)
		if utf8.RuneCountInString(sentence) >= minSentenceRunes {
			out = append(out, sentence)
		}
	}
	return out
}
