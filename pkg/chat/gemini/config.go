package gemini

import (
	"context"
	"fmt"
	"os"

	"github.com/jmuk/blogsearch/pkg/chat/agent"
	"github.com/jmuk/blogsearch/pkg/session"
	"google.golang.org/genai"
)

type Config struct {
	ConfigName    string `toml:"name"`
	ModelName     string `toml:"model_name"`
	APIKey        string `toml:"api_key,omitempty"`
	APIKeyFromEnv string `toml:"api_key_env,omitempty"`
	Backend       string `toml:"backend,omitempty"`
	Project       string `toml:"project,omitempty"`
	Location      string `toml:"location,omitempty"`
	BaseURL       string `toml:"base_url,omitempty"`
}

func (gc *Config) Name() string {
	return gc.ConfigName
}

func (gc *Config) clientConfig() (*genai.ClientConfig, error) {
	backend := genai.BackendUnspecified
	if gc.Backend == genai.BackendGeminiAPI.String() {
		backend = genai.BackendGeminiAPI
	} else if gc.Backend == genai.BackendVertexAI.String() {
		backend = genai.BackendVertexAI
	}
	apiKey := gc.APIKey
	if gc.APIKeyFromEnv != "" {
		apiKey = os.Getenv(gc.APIKeyFromEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("environment variable %s not found", gc.APIKeyFromEnv)
		}
	}
	return &genai.ClientConfig{
		APIKey:   apiKey,
		Backend:  backend,
		Project:  gc.Project,
		Location: gc.Location,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: gc.BaseURL,
		},
	}, nil
}

func (gc *Config) newGenaiClient(ctx context.Context) (*genai.Client, error) {
	cc, err := gc.clientConfig()
	if err != nil {
		return nil, err
	}
	return genai.NewClient(ctx, cc)
}

func (gc *Config) NewClient(ctx context.Context) (agent.Client, error) {
	if gc.ModelName == "" {
		return nil, fmt.Errorf("model config %s: model_name is empty", gc.ConfigName)
	}
	client, err := gc.newGenaiClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Client{client: client, model: gc.ModelName}, nil
}

func (gc *Config) Models(ctx context.Context) ([]string, error) {
	logger := session.Logger(ctx, "gemini")
	client, err := gc.newGenaiClient(ctx)
	if err != nil {
		return nil, err
	}
	var results []string
	for m, err := range client.Models.All(ctx) {
		if err != nil {
			return nil, err
		}
		logger.Debug("model", "model", m.Name)
		results = append(results, m.Name)
	}
	return results, nil
}
