package config

import (
	"fmt"
	"strings"
)

// MCPConfig defines a configuration to connect to a MCP server whose tools
// are offered to the model next to the built-in ones.
type MCPConfig struct {
	Name           string            `toml:"name"`
	Command        []string          `toml:"command,omitempty"`
	Endpoint       string            `toml:"endpoint,omitempty"`
	RequestHeaders map[string]string `toml:"request_headers,omitempty"`
}

func (c MCPConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("mcp server without a name")
	}
	if (len(c.Command) == 0) == (c.Endpoint == "") {
		return fmt.Errorf("mcp server %s: exactly one of command or endpoint must be set", c.Name)
	}
	return nil
}

func (c MCPConfig) String() string {
	if c.Endpoint != "" {
		return fmt.Sprintf("%s: %s", c.Name, c.Endpoint)
	}
	return fmt.Sprintf("%s: %s", c.Name, strings.Join(c.Command, " "))
}
