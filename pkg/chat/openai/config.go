// Package openai implements the completion client on the OpenAI chat
// completions API. Any server speaking that API works through base_url.
package openai

import (
	"context"
	"fmt"
	"os"

	"github.com/jmuk/blogsearch/pkg/chat/agent"
	"github.com/jmuk/blogsearch/pkg/session"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type Config struct {
	ConfigName    string `toml:"name"`
	BaseURL       string `toml:"base_url"`
	APIKey        string `toml:"api_key"`
	APIKeyFromEnv string `toml:"api_key_env"`
	ModelName     string `toml:"model_name"`
}

func (c *Config) Name() string {
	return c.ConfigName
}

// GetOpts fails when the configured key variable is unset.
func (c *Config) GetOpts() ([]option.RequestOption, error) {
	// Retries are decided by the loop.
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	if c.APIKeyFromEnv != "" {
		apikey := os.Getenv(c.APIKeyFromEnv)
		if apikey == "" {
			return nil, fmt.Errorf("environment variable %s not found", c.APIKeyFromEnv)
		}
		opts = append(opts, option.WithAPIKey(apikey))
	} else if c.APIKey != "" {
		opts = append(opts, option.WithAPIKey(c.APIKey))
	}
	return opts, nil
}

func (c *Config) NewClient(ctx context.Context) (agent.Client, error) {
	if c.ModelName == "" {
		return nil, fmt.Errorf("model config %s: model_name is empty", c.ConfigName)
	}
	opts, err := c.GetOpts()
	if err != nil {
		return nil, err
	}
	return &Client{
		client: openai.NewChatCompletionService(opts...),
		model:  c.ModelName,
	}, nil
}

func (c *Config) Models(ctx context.Context) ([]string, error) {
	logger, err := session.LoggerFromContext(ctx, "openai")
	if err != nil {
		return nil, err
	}
	opts, err := c.GetOpts()
	if err != nil {
		return nil, err
	}
	client := openai.NewModelService(opts...)
	models, err := client.List(ctx)
	if err != nil {
		return nil, err
	}
	var results []string
	for models != nil {
		for _, m := range models.Data {
			logger.Debug("model", "model", m.ID)
			results = append(results, m.ID)
		}
		models, err = models.GetNextPage()
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
