package segmenter

import (
	"slices"
	"testing"
)

func TestGSETokenizeSplitsChineseAndLatin(t *testing.T) {
	seg, err := NewGSE()
	if err != nil {
		t.Fatalf("NewGSE() error = %v", err)
	}

	got := seg.Tokenize("市场需求下降 revenue grew")
	for _, word := range []string{"市场", "需求", "市场需求"} {
		if !slices.Contains(got, word) {
			t.Fatalf("expected dictionary word %s in %v", word, got)
		}
	}
	if slices.Index(got, "市场") > slices.Index(got, "市场需求") {
		t.Fatalf("expected sub-word before its compound in %v", got)
	}
	if !slices.Contains(got, "revenue") || !slices.Contains(got, "grew") {
		t.Fatalf("expected latin words to survive in %v", got)
	}
	for _, token := range got {
		if token == "" || token == " " {
			t.Fatalf("whitespace token leaked: %q", got)
		}
	}
}

func TestGSETokenizeEmpty(t *testing.T) {
	seg, err := NewGSE()
	if err != nil {
		t.Fatalf("NewGSE() error = %v", err)
	}
	if got := seg.Tokenize("   "); len(got) != 0 {
		t.Fatalf("expected no tokens, got %q", got)
	}
}
