package tools

import (
	"context"
	"errors"
	"sort"

	"github.com/jmuk/blogsearch/pkg/config"
)

// Manager is a source of tool definitions.
type Manager interface {
	ToolDefs(ctx context.Context) ([]ToolDefinition, error)
	Close() error
}

// NewManagers returns the blog tools followed by the configured MCP servers
// sorted by name.
func NewManagers(c *config.Config, blog *BlogTools) []Manager {
	mcpManagers := map[string]Manager{}
	for _, mcpc := range c.MCP {
		mcpManagers[mcpc.Name] = NewMCP(mcpc)
	}
	var keys []string
	for k := range mcpManagers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	mgrs := make([]Manager, 0, len(keys)+1)
	mgrs = append(mgrs, blog)
	for _, k := range keys {
		mgrs = append(mgrs, mcpManagers[k])
	}
	return mgrs
}

// NewRunnerFromManagers collects the definitions of all managers into one
// runner. When two managers offer the same name the earlier one wins, so the
// blog tools cannot be shadowed by a MCP server.
func NewRunnerFromManagers(ctx context.Context, mgrs []Manager) (*ToolRunner, error) {
	logger := getLogger(ctx)
	r, err := NewToolRunner(nil)
	if err != nil {
		return nil, err
	}
	for _, m := range mgrs {
		defs, err := m.ToolDefs(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range defs {
			if _, err := r.Resolve(d.Name()); err == nil {
				logger.Warn("Skipping a duplicated tool", "name", d.Name())
				continue
			}
			if err := r.Register(d); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func CloseManagers(mgrs []Manager) error {
	var errs []error
	for _, m := range mgrs {
		errs = append(errs, m.Close())
	}
	return errors.Join(errs...)
}
