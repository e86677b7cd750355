package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const appName = "blogsearch"

// DefaultPromptTemplate is the task sent to the model for every keyword.
// {query} and {site} are replaced before the loop starts.
const DefaultPromptTemplate = `Search the blog at {site} for "{query}" and take the top 3 results. ` +
	`Then fetch the content of each of those URLs and read the parsed text. ` +
	`Finally, summarize the parsed texts into one final answer.`

// Duration is a time.Duration written as a string such as "90s" in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// SearchConfig describes the site-scoped web search.
type SearchConfig struct {
	Endpoint     string `toml:"endpoint"`
	APIKeyEnv    string `toml:"api_key_env"`
	Site         string `toml:"site"`
	Location     string `toml:"location"`
	Language     string `toml:"hl"`
	Country      string `toml:"gl"`
	GoogleDomain string `toml:"google_domain"`
}

// FetchConfig describes how blog pages are read.
type FetchConfig struct {
	ContentClass string   `toml:"content_class"`
	Timeout      Duration `toml:"timeout"`
	MaxBodyBytes int64    `toml:"max_body_bytes"`
	// AllowPrivate lets the fetch tool reach loopback and private networks.
	AllowPrivate bool `toml:"allow_private,omitempty"`
}

type ServerConfig struct {
	Addr           string   `toml:"addr"`
	RequestTimeout Duration `toml:"request_timeout"`
}

type Config struct {
	ModelName         string     `toml:"model_name"`
	LogLevel          slog.Level `toml:"loglevel"`
	MaxTurns          int        `toml:"max_turns"`
	CompletionTimeout Duration   `toml:"completion_timeout"`
	ToolTimeout       Duration   `toml:"tool_timeout"`
	PromptTemplate    string     `toml:"prompt_template"`
	TranslateTo       string     `toml:"translate_to"`

	Search SearchConfig `toml:"search"`
	Fetch  FetchConfig  `toml:"fetch"`
	Server ServerConfig `toml:"server"`

	// ModelConfigs are decoded by the chat package based on their "type".
	ModelConfigs []map[string]any `toml:"model_configs"`
	MCP          []MCPConfig      `toml:"mcp,omitempty"`
}

func Default() *Config {
	return &Config{
		ModelName:         "openai",
		LogLevel:          slog.LevelInfo,
		MaxTurns:          10,
		CompletionTimeout: Duration{2 * time.Minute},
		ToolTimeout:       Duration{time.Minute},
		PromptTemplate:    DefaultPromptTemplate,
		TranslateTo:       "Japanese",
		Search: SearchConfig{
			Endpoint:     "https://serpapi.com/search.json",
			APIKeyEnv:    "SERPAPI_API_KEY",
			Site:         "solxyz-blog.info",
			Location:     "Tokyo,Japan",
			Language:     "ja",
			Country:      "jp",
			GoogleDomain: "google.co.jp",
		},
		Fetch: FetchConfig{
			ContentClass: "content",
			Timeout:      Duration{30 * time.Second},
			MaxBodyBytes: 5 << 20,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			RequestTimeout: Duration{10 * time.Minute},
		},
		ModelConfigs: []map[string]any{
			{
				"type":        "openai",
				"name":        "openai",
				"model_name":  "gpt-4o-mini",
				"api_key_env": "OPENAI_API_KEY",
			},
			{
				"type":        "gemini",
				"name":        "gemini",
				"model_name":  "gemini-2.5-flash",
				"api_key_env": "GEMINI_API_KEY",
			},
		},
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.ModelName == "" {
		errs = append(errs, errors.New("model_name must not be empty"))
	}
	if c.MaxTurns < 1 {
		errs = append(errs, fmt.Errorf("max_turns must be positive, got %d", c.MaxTurns))
	}
	if c.Search.Site == "" {
		errs = append(errs, errors.New("search.site must not be empty"))
	}
	if c.Search.Endpoint == "" {
		errs = append(errs, errors.New("search.endpoint must not be empty"))
	}
	if c.Fetch.ContentClass == "" {
		errs = append(errs, errors.New("fetch.content_class must not be empty"))
	}
	for _, m := range c.MCP {
		if err := m.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RequireEnv returns the value of the named environment variable or an
// error when it is unset.
func RequireEnv(name string) (string, error) {
	if name == "" {
		return "", errors.New("no environment variable configured for the credential")
	}
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("environment variable %s not found", name)
	}
	return v, nil
}

// LoadDotEnv loads KEY=value pairs from the file into the process
// environment. Variables already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// DefaultPath returns the config file in the user config directory.
func DefaultPath() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userConfigDir, appName, "config.toml"), nil
}

// LoadConfig reads the config file at path. With an empty path the default
// location is used, and a default config is written there on first run.
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadFile(path)
	}
	configFile, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(configFile); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		config := Default()
		if err := writeFile(configFile, config); err != nil {
			return nil, err
		}
		return config, nil
	}
	return loadFile(configFile)
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config := Default()
	defaultModels := config.ModelConfigs
	// Decoding into the default maps would merge their keys into the file's.
	config.ModelConfigs = nil
	if _, err := toml.Decode(string(data), config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(config.ModelConfigs) == 0 {
		config.ModelConfigs = defaultModels
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

func writeFile(path string, config *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
