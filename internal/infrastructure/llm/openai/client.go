// Package openai adapts any OpenAI-compatible endpoint (OpenAI, LocalAI,
// vLLM) as embedder and quality advisor.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/llm/advisor"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/resilience"
)

type Client struct {
	api        *goopenai.Client
	chatModel  string
	embedModel string
	executor   *resilience.Executor
}

type Option func(*Client)

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) { c.executor = executor }
}

// New builds a client. An empty baseURL keeps the library default.
func New(baseURL, apiKey, chatModel, embedModel string, opts ...Option) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	c := &Client{
		api:        goopenai.NewClientWithConfig(cfg),
		chatModel:  chatModel,
		embedModel: embedModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	const op = "openai.embed"
	resp, err := resilience.Call(ctx, e.client.executor, op, func(ctx context.Context) (goopenai.EmbeddingResponse, error) {
		resp, err := e.client.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequestStrings{
			Input: []string{text},
			Model: goopenai.EmbeddingModel(e.client.embedModel),
		})
		return resp, statusError("embed", err)
	}, resilience.ClassifyRemoteError)
	if err != nil {
		return nil, resilience.WrapTemporaryIfNeeded(op, err, resilience.ClassifyRemoteError)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return resp.Data[0].Embedding, nil
}

// Oracle requests a JSON-object chat completion reviewing a candidate set.
type Oracle struct {
	client *Client
}

func NewOracle(client *Client) *Oracle {
	return &Oracle{client: client}
}

func (o *Oracle) Assess(ctx context.Context, query string, set domain.CandidateSet, req domain.Requirements) (domain.AdvisorAssessment, error) {
	const op = "openai.assess"
	prompt := advisor.BuildAssessmentPrompt(query, set, req)
	resp, err := resilience.Call(ctx, o.client.executor, op, func(ctx context.Context) (goopenai.ChatCompletionResponse, error) {
		resp, err := o.client.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
			Model: o.client.chatModel,
			Messages: []goopenai.ChatCompletionMessage{
				{Role: goopenai.ChatMessageRoleUser, Content: prompt},
			},
			ResponseFormat: &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject},
			Temperature:    0,
		})
		return resp, statusError("chat", err)
	}, resilience.ClassifyRemoteError)
	if err != nil {
		return domain.AdvisorAssessment{}, resilience.WrapTemporaryIfNeeded(op, err, resilience.ClassifyRemoteError)
	}
	if len(resp.Choices) == 0 {
		return domain.AdvisorAssessment{}, domain.WrapError(domain.ErrAdvisorParse, op, fmt.Errorf("no choices in response"))
	}
	return advisor.ParseAssessment(resp.Choices[0].Message.Content)
}

// statusError lifts library HTTP errors into resilience.HTTPStatusError so the
// shared classifier sees the status code.
func statusError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &resilience.HTTPStatusError{
			Service:    "openai",
			Operation:  operation,
			StatusCode: apiErr.HTTPStatusCode,
			Status:     http.StatusText(apiErr.HTTPStatusCode),
			Body:       apiErr.Message,
		}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		body := ""
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &resilience.HTTPStatusError{
			Service:    "openai",
			Operation:  operation,
			StatusCode: reqErr.HTTPStatusCode,
			Status:     http.StatusText(reqErr.HTTPStatusCode),
			Body:       body,
		}
	}
	return err
}
