package contract

import (
	"errors"
	"testing"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

func TestDecodeRetrieveBodyMapsRequirements(t *testing.T) {
	body, err := DecodeRetrieveBody([]byte(`{
		"corpus_id": " kb ",
		"query": "Q3 revenue",
		"top_k": 7,
		"permission_flag": true,
		"required_entities": ["ACME", " "],
		"required_metrics": ["revenue"],
		"max_expansions": 0
	}`))
	if err != nil {
		t.Fatalf("DecodeRetrieveBody() error = %v", err)
	}

	req := body.ToDomain()
	if req.CorpusID != "kb" || req.Query != "Q3 revenue" || req.TopK != 7 || !req.PermissionFlag {
		t.Fatalf("unexpected search request %+v", req.SearchRequest)
	}
	if len(req.Requirements.Entities) != 1 || req.Requirements.Entities[0] != "ACME" {
		t.Fatalf("expected blank entity dropped, got %v", req.Requirements.Entities)
	}
	if req.Requirements.Attributes != nil {
		t.Fatalf("expected nil attributes, got %v", req.Requirements.Attributes)
	}
	if req.MaxExpansions == nil || *req.MaxExpansions != 0 {
		t.Fatalf("expected explicit zero budget to survive")
	}
}

func TestDecodeRetrieveBodyRejectsBadPayloads(t *testing.T) {
	cases := map[string]string{
		"not json":         `{`,
		"unknown field":    `{"corpus_id":"kb","query":"q","required_entity":["x"]}`,
		"negative budget":  `{"corpus_id":"kb","query":"q","max_expansions":-1}`,
		"wrong field type": `{"corpus_id":"kb","query":"q","top_k":"five"}`,
	}
	for name, payload := range cases {
		if _, err := DecodeRetrieveBody([]byte(payload)); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", name, err)
		}
	}
}

func TestErrorKind(t *testing.T) {
	if got := ErrorKind(domain.WrapError(domain.ErrCorpusNotFound, "resolve", errors.New("kb"))); got != "corpus_not_found" {
		t.Fatalf("unexpected kind %q", got)
	}
	if got := NewErrorBody(errors.New("boom")); got.Kind != "internal" || got.Error != "boom" {
		t.Fatalf("unexpected body %+v", got)
	}
}
