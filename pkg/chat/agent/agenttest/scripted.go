// Package agenttest provides a deterministic completion client for tests.
package agenttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmuk/blogsearch/pkg/chat/agent"
	"github.com/jmuk/blogsearch/pkg/chat/history"
)

// Step configures one completion call. Func, when set, decides the response
// from the request.
type Step struct {
	Response agent.Response
	Err      error
	Func     func(req agent.Request) (*agent.Response, error)
}

func Answer(content string) Step {
	return Step{Response: agent.Response{Content: content}}
}

func Call(name, arguments string) Step {
	return Step{Response: agent.Response{FunctionCall: &history.FunctionCall{
		Name:      name,
		Arguments: arguments,
	}}}
}

// ScriptedClient replays its steps in order and records every request.
type ScriptedClient struct {
	mu       sync.Mutex
	index    int
	steps    []Step
	requests []agent.Request
}

func NewScriptedClient(steps ...Step) *ScriptedClient {
	cloned := make([]Step, len(steps))
	copy(cloned, steps)
	return &ScriptedClient{steps: cloned}
}

var _ agent.Client = (*ScriptedClient)(nil)

func (c *ScriptedClient) Complete(_ context.Context, req agent.Request) (*agent.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	if c.index >= len(c.steps) {
		return nil, fmt.Errorf("script exhausted at step %d", c.index+1)
	}
	current := c.steps[c.index]
	c.index++
	if current.Func != nil {
		return current.Func(req)
	}
	if current.Err != nil {
		return nil, current.Err
	}
	resp := current.Response
	if resp.FunctionCall != nil {
		call := *resp.FunctionCall
		if call.ID == "" {
			call.ID = fmt.Sprintf("call_%d", c.index)
		}
		resp.FunctionCall = &call
	}
	return &resp, nil
}

// Requests returns the requests received so far.
func (c *ScriptedClient) Requests() []agent.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]agent.Request(nil), c.requests...)
}

// Repeat builds n copies of step.
func Repeat(n int, step Step) []Step {
	steps := make([]Step, n)
	for i := range steps {
		steps[i] = step
	}
	return steps
}
