package qdrant

import (
	"strings"
	"testing"
)

type splitTokenizer struct{}

func (splitTokenizer) Tokenize(text string) []string { return strings.Split(text, "|") }

func TestEncodeSparseQueryDeterministic(t *testing.T) {
	v1 := encodeSparseQuery("Risk level for DOC_0001", nil)
	v2 := encodeSparseQuery("Risk level for DOC_0001", nil)
	if len(v1.Indices) != len(v2.Indices) || len(v1.Values) != len(v2.Values) {
		t.Fatalf("vector sizes mismatch: v1=%d/%d v2=%d/%d", len(v1.Indices), len(v1.Values), len(v2.Indices), len(v2.Values))
	}
	for i := range v1.Indices {
		if v1.Indices[i] != v2.Indices[i] {
			t.Fatalf("indices mismatch at %d: %d vs %d", i, v1.Indices[i], v2.Indices[i])
		}
		if v1.Values[i] != v2.Values[i] {
			t.Fatalf("values mismatch at %d: %f vs %f", i, v1.Values[i], v2.Values[i])
		}
	}
}

func TestEncodeSparseQuerySortsIndices(t *testing.T) {
	v := encodeSparseQuery("zulu alpha beta gamma", nil)
	if len(v.Indices) != 4 {
		t.Fatalf("expected 4 terms, got %d", len(v.Indices))
	}
	for i := 1; i < len(v.Indices); i++ {
		if v.Indices[i-1] > v.Indices[i] {
			t.Fatalf("indices not sorted at %d: %d > %d", i, v.Indices[i-1], v.Indices[i])
		}
	}
}

func TestEncodeSparseQueryEmptyNoiseInput(t *testing.T) {
	v := encodeSparseQuery("___---!!!", nil)
	if len(v.Indices) != 0 || len(v.Values) != 0 {
		t.Fatalf("expected empty sparse vector, got %+v", v)
	}
}

func TestEncodeSparseQueryRepeatedTermsSaturate(t *testing.T) {
	once := encodeSparseQuery("revenue", nil)
	thrice := encodeSparseQuery("revenue revenue revenue", nil)
	if len(once.Values) != 1 || len(thrice.Values) != 1 {
		t.Fatalf("expected a single dimension, got %d and %d", len(once.Values), len(thrice.Values))
	}
	if thrice.Values[0] <= once.Values[0] || thrice.Values[0] >= float32(queryBM25K+1) {
		t.Fatalf("expected saturating weight, got once=%f thrice=%f", once.Values[0], thrice.Values[0])
	}
}

func TestTokenizeWordsUnicodeAndDigits(t *testing.T) {
	tokens := tokenizeWords("Привет DOC_0001 версия-2")
	want := []string{"привет", "doc", "0001", "версия", "2"}
	if strings.Join(tokens, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, tokens)
	}
}

func TestTokenizeWithSegmenterDropsPunctuation(t *testing.T) {
	tokens := tokenize("市场|，|需求|DOC", splitTokenizer{})
	want := []string{"市场", "需求", "doc"}
	if strings.Join(tokens, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, tokens)
	}
}
