// Package agent defines the boundary to the hosted completion services.
package agent

import (
	"context"

	"github.com/jmuk/blogsearch/pkg/chat/history"
	"github.com/jmuk/blogsearch/pkg/tools"
)

// Mode tells the service whether it may request a function call.
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeNone Mode = "none"
)

type Request struct {
	Messages []history.Message
	Tools    []tools.ToolDefinition
	Mode     Mode
}

// Response carries either a function call or the answer content.
type Response struct {
	Content      string
	FunctionCall *history.FunctionCall
}

// Client sends the whole history on each call and keeps no state between
// calls, so one client can serve concurrent queries.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

type ModelLister interface {
	Models(ctx context.Context) ([]string, error)
}

// Factory builds a client from one model config entry.
type Factory interface {
	Name() string
	NewClient(ctx context.Context) (Client, error)
	ModelLister
}
