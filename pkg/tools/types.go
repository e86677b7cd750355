package tools

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/invopop/jsonschema"
	"github.com/jmuk/blogsearch/pkg/session"
)

// MaxResultLength bounds the text re-injected into the conversation.
const MaxResultLength = 4000

type ToolDefinition interface {
	Name() string
	Description() string
	RequestSchema() *jsonschema.Schema
	process(ctx context.Context, in map[string]any) (string, error)
}

type toolDefinition[Req any, Resp any] struct {
	name        string
	description string
	proc        func(ctx context.Context, req Req) (Resp, error)
}

// NewToolDefinition declares a tool whose parameters are the JSON fields of
// Req. A string Resp is passed to the model as is; anything else is encoded
// as JSON.
func NewToolDefinition[Req any, Resp any](
	name, description string,
	proc func(ctx context.Context, req Req) (Resp, error),
) ToolDefinition {
	return &toolDefinition[Req, Resp]{
		name:        name,
		description: description,
		proc:        proc,
	}
}

func (d *toolDefinition[Req, Resp]) Name() string {
	return d.name
}

func (d *toolDefinition[Req, Resp]) Description() string {
	return d.description
}

func (d *toolDefinition[Req, Resp]) RequestSchema() *jsonschema.Schema {
	var t Req
	return (&jsonschema.Reflector{
		DoNotReference: true,
	}).Reflect(&t)
}

func (d *toolDefinition[Req, Resp]) process(ctx context.Context, in map[string]any) (string, error) {
	// Might not be ideal as it copies the data.
	logger := getLogger(ctx)
	jsonIn, err := json.Marshal(in)
	if err != nil {
		logger.Error("Failed to marshal input", "error", err)
		return "", err
	}
	var req Req
	if err := json.Unmarshal(jsonIn, &req); err != nil {
		logger.Error("Failed to unmarshal input", "error", err)
		return "", toolErrorf(ErrInvalidArguments, "%v", err)
	}
	resp, err := d.proc(ctx, req)
	if err != nil {
		return "", err
	}
	if s, ok := any(resp).(string); ok {
		return s, nil
	}
	jsonResp, err := json.Marshal(resp)
	if err != nil {
		logger.Error("Failed to marshal output", "error", err)
		return "", err
	}
	return string(jsonResp), nil
}

func getLogger(ctx context.Context) *slog.Logger {
	return session.Logger(ctx, "tools")
}
