package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jmuk/blogsearch/pkg/chat/agent"
	"github.com/jmuk/blogsearch/pkg/chat/history"
	"github.com/jmuk/blogsearch/pkg/retry"
	"github.com/jmuk/blogsearch/pkg/tools"
)

type searchRequest struct {
	Query string `json:"query"`
}

func searchTool() tools.ToolDefinition {
	return tools.NewToolDefinition("searchBlog", "search", func(ctx context.Context, req searchRequest) (string, error) {
		return "", nil
	})
}

type wireMessage struct {
	Role       string `json:"role"`
	Content    any    `json:"content"`
	ToolCallID string `json:"tool_call_id"`
	ToolCalls  []struct {
		ID       string `json:"id"`
		Function struct {
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		} `json:"function"`
	} `json:"tool_calls"`
}

type wireRequest struct {
	Model      string        `json:"model"`
	Messages   []wireMessage `json:"messages"`
	ToolChoice any           `json:"tool_choice"`
	Tools      []struct {
		Function struct {
			Name       string         `json:"name"`
			Parameters map[string]any `json:"parameters"`
		} `json:"function"`
	} `json:"tools"`
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, req wireRequest)) agent.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Error(err)
		}
		var req wireRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("malformed request %s: %v", body, err)
		}
		w.Header().Set("Content-Type", "application/json")
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("BLOGSEARCH_TEST_OPENAI_KEY", "sk-test")
	c := &Config{
		ConfigName:    "test",
		BaseURL:       srv.URL,
		APIKeyFromEnv: "BLOGSEARCH_TEST_OPENAI_KEY",
		ModelName:     "test-model",
	}
	client, err := c.NewClient(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return client
}

const toolCallResponse = `{
  "id": "chatcmpl-1", "object": "chat.completion", "created": 0, "model": "test-model",
  "choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
    "role": "assistant", "content": null,
    "tool_calls": [{"id": "call_2", "type": "function",
      "function": {"name": "getBlogContents", "arguments": "{\"targetUrl\":\"https://a\"}"}}]}}]
}`

func TestCompleteSendsHistoryAndParsesCall(t *testing.T) {
	var got wireRequest
	client := newTestClient(t, func(w http.ResponseWriter, req wireRequest) {
		got = req
		fmt.Fprint(w, toolCallResponse)
	})
	conv := history.New("find AI posts")
	conv.AppendCall(history.FunctionCall{ID: "call_1", Name: "searchBlog", Arguments: `{"query":"AI"}`})
	if err := conv.AppendResult("searchBlog", "https://a"); err != nil {
		t.Fatal(err)
	}
	resp, err := client.Complete(context.Background(), agent.Request{
		Messages: conv.Messages(),
		Tools:    []tools.ToolDefinition{searchTool()},
		Mode:     agent.ModeAuto,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := &agent.Response{FunctionCall: &history.FunctionCall{
		ID: "call_2", Name: "getBlogContents", Arguments: `{"targetUrl":"https://a"}`,
	}}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}

	if got.Model != "test-model" || got.ToolChoice != "auto" {
		t.Errorf("model %q, tool_choice %v", got.Model, got.ToolChoice)
	}
	var roles []string
	for _, m := range got.Messages {
		roles = append(roles, m.Role)
	}
	if diff := cmp.Diff([]string{"user", "assistant", "tool"}, roles); diff != "" {
		t.Errorf("roles mismatch (-want +got):\n%s", diff)
	}
	if len(got.Messages) == 3 {
		if tc := got.Messages[1].ToolCalls; len(tc) != 1 || tc[0].ID != "call_1" || tc[0].Function.Name != "searchBlog" {
			t.Errorf("assistant call not sent back: %+v", tc)
		}
		if got.Messages[2].ToolCallID != "call_1" {
			t.Errorf("tool_call_id = %q", got.Messages[2].ToolCallID)
		}
	}
	if len(got.Tools) != 1 || got.Tools[0].Function.Name != "searchBlog" {
		t.Fatalf("tools = %+v", got.Tools)
	}
	if _, ok := got.Tools[0].Function.Parameters["$schema"]; ok {
		t.Error("parameters should not carry $schema")
	}
}

func TestCompleteForcedAnswer(t *testing.T) {
	var got wireRequest
	client := newTestClient(t, func(w http.ResponseWriter, req wireRequest) {
		got = req
		fmt.Fprint(w, `{"id": "chatcmpl-2", "object": "chat.completion", "created": 0, "model": "test-model",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "summary"}}]}`)
	})
	resp, err := client.Complete(context.Background(), agent.Request{
		Messages: history.New("q").Messages(),
		Tools:    []tools.ToolDefinition{searchTool()},
		Mode:     agent.ModeNone,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.FunctionCall != nil || resp.Content != "summary" {
		t.Errorf("got %+v", resp)
	}
	if got.ToolChoice != "none" {
		t.Errorf("tool_choice = %v", got.ToolChoice)
	}
}

func TestCompleteServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, req wireRequest) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error": {"message": "overloaded", "type": "server_error"}}`)
	})
	_, err := client.Complete(context.Background(), agent.Request{Messages: history.New("q").Messages()})
	var transient *retry.TransientError
	if !errors.As(err, &transient) {
		t.Errorf("got %v, want a transient error", err)
	}
}

func TestGetOptsRequiresKey(t *testing.T) {
	c := &Config{ConfigName: "x", ModelName: "m", APIKeyFromEnv: "BLOGSEARCH_TEST_UNSET_OPENAI_KEY"}
	if _, err := c.NewClient(context.Background()); err == nil {
		t.Error("expected an error without the api key")
	}
}
