package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmuk/blogsearch/pkg/chat/agent"
	"github.com/jmuk/blogsearch/pkg/chat/history"
	"github.com/jmuk/blogsearch/pkg/retry"
	"github.com/jmuk/blogsearch/pkg/session"
	"github.com/jmuk/blogsearch/pkg/tools"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"
)

// Client is an implementation of agent.Client using the chat completions API.
type Client struct {
	client openai.ChatCompletionService
	model  string
}

func convertToolDef(d tools.ToolDefinition) (openai.ChatCompletionToolUnionParam, error) {
	encoded, err := json.Marshal(d.RequestSchema())
	if err != nil {
		return openai.ChatCompletionToolUnionParam{}, err
	}
	parameters := map[string]any{}
	if err := json.Unmarshal(encoded, &parameters); err != nil {
		return openai.ChatCompletionToolUnionParam{}, err
	}
	// The dialect marker is noise to the API.
	delete(parameters, "$schema")
	delete(parameters, "$id")
	return openai.ChatCompletionToolUnionParam{
		OfFunction: &openai.ChatCompletionFunctionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        d.Name(),
				Description: param.NewOpt(d.Description()),
				Parameters:  parameters,
			},
			Type: "function",
		},
	}, nil
}

func toMessages(msgs []history.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for i, m := range msgs {
		switch m.Role {
		case history.RoleUser:
			result = append(result, openai.UserMessage(m.Content))
		case history.RoleAssistant:
			if m.Call == nil {
				result = append(result, openai.AssistantMessage(m.Content))
				continue
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					ToolCalls: []openai.ChatCompletionMessageToolCallUnionParam{{
						OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
							ID: m.Call.ID,
							Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
								Arguments: m.Call.Arguments,
								Name:      m.Call.Name,
							},
							Type: "function",
						},
					}},
				},
			})
		case history.RoleFunction:
			result = append(result, openai.ToolMessage(m.Content, history.CallIDFor(msgs, i)))
		default:
			return nil, fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
	}
	return result, nil
}

// Complete implements agent.Client interface.
func (c *Client) Complete(ctx context.Context, req agent.Request) (*agent.Response, error) {
	logger := session.Logger(ctx, "openai")
	messages, err := toMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    c.model,
	}
	if len(req.Tools) > 0 {
		for _, tdef := range req.Tools {
			toolParam, err := convertToolDef(tdef)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", tdef.Name(), err)
			}
			params.Tools = append(params.Tools, toolParam)
		}
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: param.NewOpt(string(req.Mode)),
		}
		if req.Mode == agent.ModeAuto {
			params.ParallelToolCalls = param.NewOpt(false)
		}
	}
	logger.Debug("sending", "messages", len(messages), "mode", req.Mode)
	resp, err := c.client.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("completion returned no choices")
	}
	msg := resp.Choices[0].Message
	logger.Debug("received", "finish_reason", resp.Choices[0].FinishReason, "tool_calls", len(msg.ToolCalls))
	if len(msg.ToolCalls) > 1 {
		logger.Warn("Only the first tool call is executed", "count", len(msg.ToolCalls))
	}
	for _, tc := range msg.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		return &agent.Response{
			FunctionCall: &history.FunctionCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}, nil
	}
	return &agent.Response{Content: msg.Content}, nil
}

// classify marks rate limits and server failures as worth a retry.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return &retry.TransientError{Err: err}
		}
	}
	return err
}
