// Package mcpadapter exposes the retrieval pipeline as MCP tools.
package mcpadapter

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/evidence-retrieval/internal/adapters/contract"
	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
)

const (
	ToolRetrieveEvidence = "retrieve_evidence"
	ToolFuseText         = "fuse_text"
)

type Tools struct {
	svc    ports.RetrievalService
	logger *slog.Logger
}

func NewTools(svc ports.RetrievalService, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{svc: svc, logger: logger}
}

// NewServer builds a stdio-ready MCP server with both tools registered.
func NewServer(svc ports.RetrievalService, version string, logger *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("evidence-retrieval", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Use retrieve_evidence to gather cited evidence from a corpus before answering; use fuse_text to condense overlapping passages."),
	)
	NewTools(svc, logger).Register(s)
	return s
}

func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(retrieveEvidenceTool(), t.RetrieveEvidence)
	s.AddTool(fuseTextTool(), t.FuseText)
}

func retrieveEvidenceTool() mcp.Tool {
	return mcp.NewTool(ToolRetrieveEvidence,
		mcp.WithDescription("Search a corpus across vector, lexical and graph backends, expand the query when evidence is thin, and return cleaned text plus presentation artifacts."),
		mcp.WithString("corpus_id", mcp.Required(), mcp.Description("Corpus to search.")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language question.")),
		mcp.WithNumber("top_k", mcp.Min(1), mcp.Description("Results per backend.")),
		mcp.WithString("actor_id", mcp.Description("Caller identity used for access checks.")),
		mcp.WithBoolean("permission_flag", mcp.Description("Request non-public evidence when the actor is allowed.")),
		mcp.WithArray("required_entities", mcp.WithStringItems(), mcp.Description("Entities the evidence must cover.")),
		mcp.WithArray("required_metrics", mcp.WithStringItems(), mcp.Description("Metrics the evidence must cover.")),
		mcp.WithArray("required_attributes", mcp.WithStringItems(), mcp.Description("Attributes the evidence must cover.")),
	)
}

func fuseTextTool() mcp.Tool {
	return mcp.NewTool(ToolFuseText,
		mcp.WithDescription("Collapse redundant sentences into a discourse graph and return the fused text."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to fuse. Blank lines separate passages.")),
	)
}

type retrieveResult struct {
	RunID       string                   `json:"run_id"`
	CleanedText string                   `json:"cleaned_text"`
	Artifacts   []domain.Artifact        `json:"artifacts"`
	Assessment  domain.QualityAssessment `json:"assessment"`
	Expansions  int                      `json:"expansions"`
	Termination string                   `json:"termination"`
}

func (t *Tools) RetrieveEvidence(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	corpusID, err := request.RequireString("corpus_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := contract.RetrieveBody{
		CorpusID:           corpusID,
		Query:              query,
		ActorID:            request.GetString("actor_id", ""),
		TopK:               request.GetInt("top_k", 0),
		PermissionFlag:     request.GetBool("permission_flag", false),
		RequiredEntities:   request.GetStringSlice("required_entities", nil),
		RequiredMetrics:    request.GetStringSlice("required_metrics", nil),
		RequiredAttributes: request.GetStringSlice("required_attributes", nil),
	}

	outcome, err := t.svc.Retrieve(ctx, body.ToDomain())
	if err != nil {
		t.logger.Warn("mcp_tool_failed", "tool", ToolRetrieveEvidence, "kind", contract.ErrorKind(err), "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := retrieveResult{
		RunID:       outcome.RunID,
		CleanedText: outcome.CleanedText,
		Artifacts:   outcome.Artifacts,
		Assessment:  outcome.Assessment,
		Expansions:  outcome.Expansions,
		Termination: outcome.Termination,
	}
	text := outcome.CleanedText
	if strings.TrimSpace(text) == "" {
		text = "No evidence found."
	}
	return mcp.NewToolResultStructured(result, text), nil
}

func (t *Tools) FuseText(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fused := t.svc.Fuse(contract.SplitPassages(text))
	return mcp.NewToolResultStructured(fused, fused.Text), nil
}
