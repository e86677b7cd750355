// Package gemini implements the completion client on the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/jmuk/blogsearch/pkg/chat/agent"
	"github.com/jmuk/blogsearch/pkg/chat/history"
	"github.com/jmuk/blogsearch/pkg/retry"
	"github.com/jmuk/blogsearch/pkg/session"
	"github.com/jmuk/blogsearch/pkg/tools"
	"google.golang.org/genai"
)

func toSchema(s *jsonschema.Schema) (*genai.Schema, error) {
	encoded, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	decoded := &genai.Schema{}
	if err := json.Unmarshal(encoded, decoded); err != nil {
		return nil, err
	}
	normalizeTypes(decoded)
	return decoded, nil
}

// normalizeTypes maps JSON schema type names ("object") to the API's enum
// ("OBJECT").
func normalizeTypes(s *genai.Schema) {
	if s == nil {
		return
	}
	s.Type = genai.Type(strings.ToUpper(string(s.Type)))
	for _, p := range s.Properties {
		normalizeTypes(p)
	}
	normalizeTypes(s.Items)
	for _, a := range s.AnyOf {
		normalizeTypes(a)
	}
}

// Client is an implementation of agent.Client using GenerateContent.
type Client struct {
	client *genai.Client
	model  string
}

func toContents(msgs []history.Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(msgs))
	for i, m := range msgs {
		switch m.Role {
		case history.RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case history.RoleAssistant:
			if m.Call == nil {
				contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
				continue
			}
			args := map[string]any{}
			if strings.TrimSpace(m.Call.Arguments) != "" {
				if err := json.Unmarshal([]byte(m.Call.Arguments), &args); err != nil {
					// Keep the history valid even if the model produced garbage.
					args = map[string]any{"raw": m.Call.Arguments}
				}
			}
			contents = append(contents, &genai.Content{
				Role: genai.RoleModel,
				Parts: []*genai.Part{{
					FunctionCall: &genai.FunctionCall{
						ID:   m.Call.ID,
						Name: m.Call.Name,
						Args: args,
					},
				}},
			})
		case history.RoleFunction:
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       history.CallIDFor(msgs, i),
						Name:     m.Name,
						Response: map[string]any{"output": m.Content},
					},
				}},
			})
		default:
			return nil, fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
	}
	return contents, nil
}

func functionDeclarations(toolDefs []tools.ToolDefinition) ([]*genai.FunctionDeclaration, error) {
	var funcs []*genai.FunctionDeclaration
	for _, d := range toolDefs {
		params, err := toSchema(d.RequestSchema())
		if err != nil {
			return nil, fmt.Errorf("failed to encode request schema for %s: %w", d.Name(), err)
		}
		funcs = append(funcs, &genai.FunctionDeclaration{
			Name:        d.Name(),
			Description: d.Description(),
			Parameters:  params,
		})
	}
	return funcs, nil
}

// Complete implements agent.Client interface.
func (c *Client) Complete(ctx context.Context, req agent.Request) (*agent.Response, error) {
	logger := session.Logger(ctx, "gemini")
	contents, err := toContents(req.Messages)
	if err != nil {
		return nil, err
	}
	config := &genai.GenerateContentConfig{}
	if len(req.Tools) > 0 {
		funcs, err := functionDeclarations(req.Tools)
		if err != nil {
			return nil, err
		}
		mode := genai.FunctionCallingConfigModeAuto
		if req.Mode == agent.ModeNone {
			mode = genai.FunctionCallingConfigModeNone
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: funcs}}
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: mode},
		}
	}
	logger.Debug("sending", "contents", len(contents), "mode", req.Mode)
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, classify(err)
	}
	calls := resp.FunctionCalls()
	if len(calls) > 1 {
		logger.Warn("Only the first function call is executed", "count", len(calls))
	}
	if len(calls) > 0 {
		args := []byte("{}")
		if calls[0].Args != nil {
			if args, err = json.Marshal(calls[0].Args); err != nil {
				return nil, err
			}
		}
		return &agent.Response{
			FunctionCall: &history.FunctionCall{
				ID:        calls[0].ID,
				Name:      calls[0].Name,
				Arguments: string(args),
			},
		}, nil
	}
	if len(resp.Candidates) == 0 {
		return nil, errors.New("completion returned no candidates")
	}
	return &agent.Response{Content: resp.Text()}, nil
}

func classify(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.Code
	} else if errors.As(err, &apiErrPtr) {
		code = apiErrPtr.Code
	}
	if code == http.StatusTooManyRequests || code >= 500 {
		return &retry.TransientError{Err: err}
	}
	return err
}
