package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	gjsonschema "github.com/google/jsonschema-go/jsonschema"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Result is the text handed back to the model for one tool call.
type Result struct {
	Text string
	// TruncatedLength is the number of characters cut off to respect
	// MaxResultLength.
	TruncatedLength int
	// Err is the recoverable failure the text describes, if any.
	Err error
}

type registeredTool struct {
	def    ToolDefinition
	schema *gjsonschema.Resolved
}

// ToolRunner maps tool names to definitions and runs them. Tools are
// registered at startup; after that the runner is read-only and can be shared
// between queries.
type ToolRunner struct {
	defs *orderedmap.OrderedMap[string, *registeredTool]
}

func NewToolRunner(defs []ToolDefinition) (*ToolRunner, error) {
	r := &ToolRunner{defs: orderedmap.New[string, *registeredTool]()}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *ToolRunner) Register(d ToolDefinition) error {
	if _, ok := r.defs.Get(d.Name()); ok {
		return fmt.Errorf("duplicated tool name %s", d.Name())
	}
	resolved, err := resolveSchema(d.RequestSchema())
	if err != nil {
		return fmt.Errorf("request schema of %s: %w", d.Name(), err)
	}
	r.defs.Set(d.Name(), &registeredTool{def: d, schema: resolved})
	return nil
}

// ToolDefs lists the definitions in registration order.
func (r *ToolRunner) ToolDefs() []ToolDefinition {
	defs := make([]ToolDefinition, 0, r.defs.Len())
	for pair := r.defs.Oldest(); pair != nil; pair = pair.Next() {
		defs = append(defs, pair.Value.def)
	}
	return defs
}

func (r *ToolRunner) Resolve(name string) (ToolDefinition, error) {
	t, ok := r.defs.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownFunction, name)
	}
	return t.def, nil
}

// Run validates rawArgs against the request schema of the named tool and
// runs it. Failures the model can react to are returned as *ToolError; any
// other error means the query has to stop.
func (r *ToolRunner) Run(ctx context.Context, name string, rawArgs string) (Result, error) {
	t, ok := r.defs.Get(name)
	if !ok {
		return Result{}, fmt.Errorf("%w %s", ErrUnknownFunction, name)
	}
	logger := getLogger(ctx).With("tool", name)
	in, err := parseArguments(rawArgs)
	if err != nil {
		logger.Warn("Malformed arguments", "arguments", rawArgs, "error", err)
		return Result{}, err
	}
	if err := t.schema.Validate(in); err != nil {
		logger.Warn("Arguments do not match the schema", "arguments", rawArgs, "error", err)
		return Result{}, toolErrorf(ErrInvalidArguments, "%v", err)
	}
	logger.Debug("Running", "arguments", in)
	text, err := t.def.process(ctx, in)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			logger.Info("Tool failed", "error", err)
		} else {
			logger.Error("Tool failed", "error", err)
		}
		return Result{}, err
	}
	text, cut := Truncate(text, MaxResultLength)
	logger.Debug("Completed", "length", utf8.RuneCountInString(text), "truncated", cut)
	return Result{Text: text, TruncatedLength: cut}, nil
}

// ErrorResult renders a tool failure as the text the model sees.
func ErrorResult(err error) Result {
	text, cut := Truncate("error: "+err.Error(), MaxResultLength)
	return Result{Text: text, TruncatedLength: cut, Err: err}
}

// Truncate cuts s to at most limit characters and reports how many were
// removed.
func Truncate(s string, limit int) (string, int) {
	n := utf8.RuneCountInString(s)
	if n <= limit {
		return s, 0
	}
	i := 0
	for pos := range s {
		if i == limit {
			return s[:pos], n - limit
		}
		i++
	}
	return s, 0
}

func parseArguments(rawArgs string) (map[string]any, error) {
	if strings.TrimSpace(rawArgs) == "" {
		return map[string]any{}, nil
	}
	in := map[string]any{}
	if err := json.Unmarshal([]byte(rawArgs), &in); err != nil {
		return nil, toolErrorf(ErrInvalidArguments, "arguments must be a JSON object: %v", err)
	}
	return in, nil
}

// resolveSchema converts the reflected schema to the validator's model.
func resolveSchema(s *jsonschema.Schema) (*gjsonschema.Resolved, error) {
	encoded, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	decoded := &gjsonschema.Schema{}
	if err := json.Unmarshal(encoded, decoded); err != nil {
		return nil, err
	}
	// The dialect and id only matter for $ref resolution, which reflected
	// schemas do not use.
	decoded.Schema = ""
	decoded.ID = ""
	return decoded.Resolve(nil)
}
