// Package mcp exposes question retrieval as a Model Context Protocol tool.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pastq/internal/domain"
	"github.com/kailas-cloud/pastq/internal/domain/search/result"
	"github.com/kailas-cloud/pastq/internal/logger"
)

// DefaultToolName is the tool name agents call.
const DefaultToolName = "get_past_questions"

const toolDescription = "Get past exam questions matching the user's request. " +
	"Pass the user's question as written, including subject, years (BS or AD), " +
	"marks, unit, topic, semester or exam type when mentioned. " +
	"Returns up to k questions with their metadata."

// Tool argument names.
const (
	argQuestion = "question"
	argK        = "k"
)

// Corrective messages returned to the calling agent.
const (
	msgMissingQuestion = "question is required: pass the user's question text"
	msgRephrase        = "could not understand the question, rephrase it naming the subject and what to look for"
	msgTimeout         = "retrieval timed out, try again"
	msgRateLimited     = "too many requests, try again shortly"
	msgUnavailable     = "question bank unavailable, try again later"
	msgFailed          = "retrieval failed"
)

// Retriever answers a question with past exam questions.
type Retriever interface {
	Retrieve(ctx context.Context, text string, k int) (*result.Envelope, error)
	NormalizeK(raw any) int
}

// Tool is the question retrieval tool.
type Tool struct {
	retriever Retriever
	name      string
	logger    *zap.Logger
}

// NewTool creates the tool. An empty name selects DefaultToolName.
func NewTool(retriever Retriever, name string, logger *zap.Logger) *Tool {
	if name == "" {
		name = DefaultToolName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tool{retriever: retriever, name: name, logger: logger}
}

// Name returns the registered tool name.
func (t *Tool) Name() string { return t.name }

// Definition returns the tool with its input schema. k accepts a number
// or a numeric string because agents send both.
func (t *Tool) Definition() mcp.Tool {
	return mcp.NewToolWithRawSchema(t.name, toolDescription, inputSchema)
}

var inputSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "question": {
      "type": "string",
      "description": "Natural language question from the user"
    },
    "k": {
      "type": ["integer", "string"],
      "description": "Maximum number of questions to return (default 3)"
    }
  },
  "required": ["question"]
}`)

// Handle runs one tool call. Retrieval failures become tool error results,
// never protocol errors, so the agent can react to them.
func (t *Tool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	text, _ := args[argQuestion].(string)
	if text == "" {
		return mcp.NewToolResultError(msgMissingQuestion), nil
	}
	k := t.retriever.NormalizeK(args[argK])

	log := t.logger.With(zap.String("tool", t.name))
	ctx = logger.ContextWithLogger(ctx, log)

	env, err := t.retriever.Retrieve(ctx, text, k)
	if err != nil {
		log.Warn("Tool call failed", zap.Error(err))
		return mcp.NewToolResultError(correctiveMessage(err)), nil
	}

	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode results: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

func correctiveMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return msgMissingQuestion
	case domain.IsTimeout(err):
		return msgTimeout
	case errors.Is(err, domain.ErrRateLimited):
		return msgRateLimited
	case errors.Is(err, domain.ErrExtraction):
		return msgRephrase
	case errors.Is(err, domain.ErrStoreConnection),
		errors.Is(err, domain.ErrCollectionNotFound),
		errors.Is(err, domain.ErrEmbeddingProviderError):
		return msgUnavailable
	default:
		return msgFailed
	}
}
