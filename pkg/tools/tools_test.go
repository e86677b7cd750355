package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

type echoRequest struct {
	Text string `json:"text"`
}

type echoResponse struct {
	Echo string `json:"echo"`
}

func echoTool(name string) ToolDefinition {
	return NewToolDefinition(name, "echoes the text", func(ctx context.Context, req echoRequest) (string, error) {
		return req.Text, nil
	})
}

func TestRegistryOrderAndDuplicates(t *testing.T) {
	r, err := NewToolRunner([]ToolDefinition{echoTool("b"), echoTool("a"), echoTool("c")})
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, d := range r.ToolDefs() {
		names = append(names, d.Name())
	}
	if diff := cmp.Diff([]string{"b", "a", "c"}, names); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if err := r.Register(echoTool("a")); err == nil {
		t.Error("expected an error for a duplicated name")
	}
}

func TestRunUnknownFunctionIsFatal(t *testing.T) {
	r, err := NewToolRunner([]ToolDefinition{echoTool("echo")})
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.Run(context.Background(), "nope", `{}`)
	if !errors.Is(err, ErrUnknownFunction) {
		t.Fatalf("got %v, want ErrUnknownFunction", err)
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		t.Error("unknown function must not be recoverable")
	}
	if _, err := r.Resolve("nope"); !errors.Is(err, ErrUnknownFunction) {
		t.Errorf("Resolve: got %v", err)
	}
}

func TestRunValidatesArguments(t *testing.T) {
	r, err := NewToolRunner([]ToolDefinition{echoTool("echo")})
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		name string
		args string
	}{
		{"missing field", `{}`},
		{"empty arguments", ``},
		{"extra field", `{"text": "x", "other": 1}`},
		{"wrong type", `{"text": 3}`},
		{"malformed json", `{"text": `},
		{"not an object", `["x"]`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Run(context.Background(), "echo", tc.args)
			if !errors.Is(err, ErrInvalidArguments) {
				t.Fatalf("got %v, want ErrInvalidArguments", err)
			}
			var toolErr *ToolError
			if !errors.As(err, &toolErr) {
				t.Errorf("%v should be a ToolError", err)
			}
		})
	}
}

func TestRunEncodesResponses(t *testing.T) {
	structured := NewToolDefinition("structured", "returns a struct", func(ctx context.Context, req echoRequest) (echoResponse, error) {
		return echoResponse{Echo: req.Text}, nil
	})
	r, err := NewToolRunner([]ToolDefinition{echoTool("echo"), structured})
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.Run(context.Background(), "echo", `{"text": "hello"}`)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Result{Text: "hello"}, got); diff != "" {
		t.Errorf("echo mismatch (-want +got):\n%s", diff)
	}
	got, err = r.Run(context.Background(), "structured", `{"text": "hello"}`)
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != `{"echo":"hello"}` {
		t.Errorf("structured result = %q", got.Text)
	}
}

func TestRunTruncates(t *testing.T) {
	r, err := NewToolRunner([]ToolDefinition{echoTool("echo")})
	if err != nil {
		t.Fatal(err)
	}
	long := strings.Repeat("ブログ", 2000)
	got, err := r.Run(context.Background(), "echo", `{"text": "`+long+`"}`)
	if err != nil {
		t.Fatal(err)
	}
	if n := utf8.RuneCountInString(got.Text); n != MaxResultLength {
		t.Errorf("result has %d characters, want %d", n, MaxResultLength)
	}
	if got.TruncatedLength != 6000-MaxResultLength {
		t.Errorf("TruncatedLength = %d", got.TruncatedLength)
	}
	if !utf8.ValidString(got.Text) {
		t.Error("truncation split a character")
	}
}

func TestToolErrorsPassThrough(t *testing.T) {
	failing := NewToolDefinition("failing", "always fails", func(ctx context.Context, req echoRequest) (string, error) {
		if req.Text == "soft" {
			return "", toolErrorf(ErrNoResults, "nothing")
		}
		return "", errors.New("boom")
	})
	r, err := NewToolRunner([]ToolDefinition{failing})
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.Run(context.Background(), "failing", `{"text": "soft"}`)
	var toolErr *ToolError
	if !errors.As(err, &toolErr) || !errors.Is(err, ErrNoResults) {
		t.Errorf("got %v, want a ToolError wrapping ErrNoResults", err)
	}
	_, err = r.Run(context.Background(), "failing", `{"text": "hard"}`)
	if err == nil || errors.As(err, &toolErr) {
		t.Errorf("got %v, want a plain error", err)
	}
}

func TestTruncate(t *testing.T) {
	for _, tc := range []struct {
		in      string
		limit   int
		want    string
		wantCut int
	}{
		{"", 3, "", 0},
		{"abc", 3, "abc", 0},
		{"abcdef", 3, "abc", 3},
		{"日本語です", 2, "日本", 3},
	} {
		got, cut := Truncate(tc.in, tc.limit)
		if got != tc.want || cut != tc.wantCut {
			t.Errorf("Truncate(%q, %d) = %q, %d; want %q, %d", tc.in, tc.limit, got, cut, tc.want, tc.wantCut)
		}
	}
}

func TestErrorResult(t *testing.T) {
	got := ErrorResult(toolErrorf(ErrFetch, "status 404"))
	if got.Text != "error: fetch failed: status 404" {
		t.Errorf("got %q", got.Text)
	}
}
