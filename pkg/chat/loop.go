package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmuk/blogsearch/pkg/chat/agent"
	"github.com/jmuk/blogsearch/pkg/chat/history"
	"github.com/jmuk/blogsearch/pkg/config"
	"github.com/jmuk/blogsearch/pkg/retry"
	"github.com/jmuk/blogsearch/pkg/session"
	"github.com/jmuk/blogsearch/pkg/tools"
)

// DefaultMaxTurns bounds the completion calls of one query.
const DefaultMaxTurns = 10

// ErrTurnLimitExceeded is returned when the turns run out without an answer.
// The last turn forbids function calls, so only a misbehaving service gets
// here.
var ErrTurnLimitExceeded = errors.New("turn limit exceeded without an answer")

// Result describes how a query ended.
type Result struct {
	Answer string
	// Turns counts the completion calls made.
	Turns     int
	ToolCalls int
	History   []history.Message
}

type loopOptions struct {
	maxTurns          int
	completionTimeout time.Duration
	toolTimeout       time.Duration
	retry             retry.Config

	onToolCall   func(call history.FunctionCall)
	onToolResult func(call history.FunctionCall, result tools.Result)
}

type Option func(*loopOptions)

func WithMaxTurns(n int) Option {
	return func(o *loopOptions) { o.maxTurns = n }
}

// WithTimeouts bounds each completion call and each tool call. Zero keeps
// the default.
func WithTimeouts(completion, tool time.Duration) Option {
	return func(o *loopOptions) {
		if completion > 0 {
			o.completionTimeout = completion
		}
		if tool > 0 {
			o.toolTimeout = tool
		}
	}
}

// WithRetry sets the policy for failed completion calls.
func WithRetry(cfg retry.Config) Option {
	return func(o *loopOptions) { o.retry = cfg }
}

func WithOnToolCall(f func(call history.FunctionCall)) Option {
	return func(o *loopOptions) { o.onToolCall = f }
}

func WithOnToolResult(f func(call history.FunctionCall, result tools.Result)) Option {
	return func(o *loopOptions) { o.onToolResult = f }
}

// OptionsFromConfig maps the loop settings of the config file to options.
func OptionsFromConfig(c *config.Config) []Option {
	return []Option{
		WithMaxTurns(c.MaxTurns),
		WithTimeouts(c.CompletionTimeout.Duration, c.ToolTimeout.Duration),
	}
}

// ModeForTurn allows function calls on every turn but the last one.
func ModeForTurn(turn, maxTurns int) agent.Mode {
	if turn >= maxTurns-1 {
		return agent.ModeNone
	}
	return agent.ModeAuto
}

// Run answers one prompt. Every turn sends the whole history to the client;
// a requested function call is executed and its result appended before the
// next turn. Tool failures the model can react to are fed back as text, an
// unregistered function or a failed completion ends the query.
func Run(ctx context.Context, prompt string, runner *tools.ToolRunner, client agent.Client, opts ...Option) (*Result, error) {
	o := &loopOptions{
		maxTurns:          DefaultMaxTurns,
		completionTimeout: 2 * time.Minute,
		toolTimeout:       time.Minute,
		retry:             retry.Once,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.maxTurns < 1 {
		return nil, fmt.Errorf("max turns must be positive, got %d", o.maxTurns)
	}
	if session.QueryIDFromContext(ctx) == "" {
		ctx = session.WithQueryID(ctx, uuid.NewString())
	}
	logger := session.Logger(ctx, "chat")

	conv := history.New(prompt)
	toolDefs := runner.ToolDefs()
	result := &Result{}
	defer func() {
		result.History = conv.Messages()
	}()

	logger.Info("Starting query", "prompt", prompt, "max_turns", o.maxTurns)
	for turn := 0; turn < o.maxTurns; turn++ {
		mode := ModeForTurn(turn, o.maxTurns)
		logger.Debug("Turn", "turn", turn, "mode", mode, "messages", conv.Len())
		resp, err := o.complete(ctx, client, agent.Request{
			Messages: conv.Messages(),
			Tools:    toolDefs,
			Mode:     mode,
		})
		result.Turns = turn + 1
		if err != nil {
			logger.Error("Completion failed", "turn", turn, "error", err)
			return result, fmt.Errorf("turn %d: completion failed: %w", turn, err)
		}

		call := resp.FunctionCall
		if call == nil {
			conv.AppendAnswer(resp.Content)
			result.Answer = resp.Content
			logger.Info("Answered", "turns", result.Turns, "tool_calls", result.ToolCalls)
			return result, nil
		}
		if mode == agent.ModeNone {
			logger.Warn("Function call on the final turn", "name", call.Name)
			break
		}
		if _, err := runner.Resolve(call.Name); err != nil {
			logger.Error("Unknown function", "name", call.Name)
			return result, fmt.Errorf("turn %d: %w", turn, err)
		}

		conv.AppendCall(*call)
		if o.onToolCall != nil {
			o.onToolCall(*call)
		}
		res, err := o.runTool(ctx, runner, *call)
		if err != nil {
			return result, fmt.Errorf("turn %d: %s: %w", turn, call.Name, err)
		}
		result.ToolCalls++
		if err := conv.AppendResult(call.Name, res.Text); err != nil {
			return result, err
		}
		if o.onToolResult != nil {
			o.onToolResult(*call, res)
		}
	}
	logger.Error("Turn limit exceeded", "turns", result.Turns)
	return result, ErrTurnLimitExceeded
}

func (o *loopOptions) complete(ctx context.Context, client agent.Client, req agent.Request) (*agent.Response, error) {
	var resp *agent.Response
	err := retry.Do(ctx, o.retry, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, o.completionTimeout)
		defer cancel()
		var err error
		resp, err = client.Complete(callCtx, req)
		if err != nil {
			session.Logger(ctx, "chat").Warn("Completion attempt failed", "error", err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("empty completion response")
	}
	return resp, nil
}

// runTool returns an error only when the query has to stop; recoverable
// failures come back as a result describing the error.
func (o *loopOptions) runTool(ctx context.Context, runner *tools.ToolRunner, call history.FunctionCall) (tools.Result, error) {
	toolCtx, cancel := context.WithTimeout(ctx, o.toolTimeout)
	defer cancel()
	res, err := runner.Run(toolCtx, call.Name, call.Arguments)
	if err == nil {
		return res, nil
	}
	var toolErr *tools.ToolError
	if errors.As(err, &toolErr) {
		return tools.ErrorResult(err), nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return tools.ErrorResult(tools.NewToolError(fmt.Errorf("%w: timed out after %v", tools.ErrFetch, o.toolTimeout))), nil
	}
	return tools.Result{}, err
}
