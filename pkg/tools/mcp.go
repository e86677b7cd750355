package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/jmuk/blogsearch/pkg/config"
	"github.com/jmuk/blogsearch/pkg/session"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type transportFactory interface {
	newTransport() mcp.Transport
}

type commandFactory struct {
	command []string
}

func (cf *commandFactory) newTransport() mcp.Transport {
	return &mcp.CommandTransport{
		Command: exec.Command(cf.command[0], cf.command[1:]...),
	}
}

type httpFactory struct {
	endpoint string
	client   *http.Client
}

type headerAddingRoundTripper struct {
	headers      http.Header
	roundTripper http.RoundTripper
}

func (rt *headerAddingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	for k, v := range rt.headers {
		if _, ok := r.Header[k]; !ok {
			r.Header[k] = v
		}
	}
	return rt.roundTripper.RoundTrip(r)
}

func (hf *httpFactory) newTransport() mcp.Transport {
	return &mcp.SSEClientTransport{
		Endpoint:   hf.endpoint,
		HTTPClient: hf.client,
	}
}

// transportFunc lets tests hand in in-memory transports.
type transportFunc func() mcp.Transport

func (f transportFunc) newTransport() mcp.Transport {
	return f()
}

// MCPTool exposes the tools of one MCP server. The client session is opened
// on first use and shared by concurrent queries.
type MCPTool struct {
	name    string
	client  *mcp.Client
	factory transportFactory

	mu            sync.Mutex
	clientSession *mcp.ClientSession
}

func newMCPTool(name string, factory transportFactory) *MCPTool {
	mt := &MCPTool{
		name:    name,
		factory: factory,
	}
	mt.client = mcp.NewClient(
		&mcp.Implementation{
			Name:    "blogsearch",
			Version: "v0.1.0",
		},
		&mcp.ClientOptions{
			LoggingMessageHandler: mt.logMessage,
		},
	)
	return mt
}

// NewMCP builds the tool source for the configured server.
func NewMCP(c config.MCPConfig) *MCPTool {
	if c.Endpoint == "" {
		return newMCPTool(c.Name, &commandFactory{command: c.Command})
	}
	client := http.DefaultClient
	if len(c.RequestHeaders) > 0 {
		h := http.Header{}
		for k, v := range c.RequestHeaders {
			h.Add(k, v)
		}
		client = &http.Client{
			Transport: &headerAddingRoundTripper{
				headers:      h,
				roundTripper: http.DefaultTransport,
			},
		}
	}
	return newMCPTool(c.Name, &httpFactory{endpoint: c.Endpoint, client: client})
}

type mcpToolDefinition struct {
	name        string
	description string
	inSchema    *jsonschema.Schema

	mt *MCPTool
}

func (mtd *mcpToolDefinition) Name() string {
	return mtd.name
}

func (mtd *mcpToolDefinition) Description() string {
	return mtd.description
}

func (mtd *mcpToolDefinition) RequestSchema() *jsonschema.Schema {
	return mtd.inSchema
}

func (mtd *mcpToolDefinition) process(ctx context.Context, in map[string]any) (string, error) {
	return mtd.mt.call(ctx, mtd.name, in)
}

func (mt *MCPTool) Close() error {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	var err error
	if mt.clientSession != nil {
		err = mt.clientSession.Close()
		mt.clientSession = nil
	}
	return err
}

func (mt *MCPTool) logMessage(ctx context.Context, msg *mcp.LoggingMessageRequest) {
	loggerName := "mcp"
	p := msg.Params
	if p.Logger != "" && !strings.Contains(p.Logger, "/") {
		loggerName += "-" + p.Logger
	}
	lvl := slog.LevelInfo
	for _, l := range []slog.Level{slog.LevelDebug, slog.LevelError, slog.LevelWarn, slog.LevelInfo} {
		if strings.EqualFold(l.String(), string(p.Level)) {
			lvl = l
			break
		}
	}
	session.Logger(ctx, loggerName).Log(ctx, lvl, "log request", "server", mt.name, "data", p.Data)
}

func (mt *MCPTool) newSession(ctx context.Context) (*mcp.ClientSession, error) {
	transport := mt.factory.newTransport()
	if s, ok := session.FromContext(ctx); ok {
		logname := strings.ReplaceAll(mt.name, "/", "_")
		if len(logname) > 64 {
			logname = logname[:64]
		}
		logFile, err := s.GetLogFile(fmt.Sprintf("mcp-%s-log.txt", logname))
		if err != nil {
			return nil, err
		}
		transport = &mcp.LoggingTransport{
			Transport: transport,
			Writer:    logFile,
		}
	}
	return mt.client.Connect(ctx, transport, nil)
}

func (mt *MCPTool) getSession(ctx context.Context) (*mcp.ClientSession, error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.clientSession != nil {
		return mt.clientSession, nil
	}
	cs, err := mt.newSession(ctx)
	if err != nil {
		return nil, err
	}
	mt.clientSession = cs
	return cs, nil
}

func (mt *MCPTool) call(ctx context.Context, name string, in map[string]any) (string, error) {
	sess, err := mt.getSession(ctx)
	if err != nil {
		return "", toolErrorf(ErrFetch, "mcp server %s: %v", mt.name, err)
	}
	result, err := sess.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: in,
	})
	if err != nil {
		return "", toolErrorf(ErrFetch, "mcp server %s: %v", mt.name, err)
	}
	texts := make([]string, 0, len(result.Content))
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		} else {
			getLogger(ctx).Warn("Dropping non-text content", "server", mt.name, "tool", name)
		}
	}
	text := strings.Join(texts, "\n")
	if result.IsError {
		return "", &ToolError{errors.New(text)}
	}
	if text == "" && result.StructuredContent != nil {
		encoded, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return "", err
		}
		text = string(encoded)
	}
	return text, nil
}

func (mt *MCPTool) ToolDefs(ctx context.Context) ([]ToolDefinition, error) {
	sess, err := mt.getSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcp server %s: %w", mt.name, err)
	}
	var cursor string
	var results []ToolDefinition
	for {
		tools, err := sess.ListTools(ctx, &mcp.ListToolsParams{
			Cursor: cursor,
		})
		if err != nil {
			return nil, err
		}
		for _, t := range tools.Tools {
			inSchemaEnc, err := json.Marshal(t.InputSchema)
			if err != nil {
				return nil, err
			}
			inSchema := &jsonschema.Schema{}
			if err := json.Unmarshal(inSchemaEnc, inSchema); err != nil {
				return nil, err
			}
			results = append(results, &mcpToolDefinition{
				name:        t.Name,
				description: t.Description,
				inSchema:    inSchema,
				mt:          mt,
			})
		}
		if tools.NextCursor == "" {
			break
		}
		cursor = tools.NextCursor
	}
	return results, nil
}
