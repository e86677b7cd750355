package chat

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/jmuk/blogsearch/pkg/chat/agent"
	"github.com/jmuk/blogsearch/pkg/chat/gemini"
	"github.com/jmuk/blogsearch/pkg/chat/openai"
	"github.com/jmuk/blogsearch/pkg/config"
)

type ModelType string

const (
	ModelTypeOpenAI ModelType = "openai"
	ModelTypeGemini ModelType = "gemini"
)

func modelConfigFrom(m map[string]any) (agent.Factory, error) {
	mtData, ok := m["type"]
	if !ok {
		return nil, fmt.Errorf("missing field type for model config")
	}
	mtStr, ok := mtData.(string)
	if !ok {
		return nil, fmt.Errorf("type mismatch for type field: want string got %T", mtData)
	}
	marshaled, err := toml.Marshal(m)
	if err != nil {
		return nil, err
	}
	var factory agent.Factory
	switch ModelType(mtStr) {
	case ModelTypeOpenAI:
		factory = &openai.Config{}
	case ModelTypeGemini:
		factory = &gemini.Config{}
	default:
		return nil, fmt.Errorf("unknown model type %s", mtStr)
	}
	if err := toml.Unmarshal(marshaled, factory); err != nil {
		return nil, err
	}
	return factory, nil
}

// FindFactory returns the model config named name, or the configured
// model_name when name is empty.
func FindFactory(c *config.Config, name string) (agent.Factory, error) {
	if name == "" {
		name = c.ModelName
	}
	var names []string
	for i, modelConfig := range c.ModelConfigs {
		factory, err := modelConfigFrom(modelConfig)
		if err != nil {
			return nil, fmt.Errorf("model_configs[%d]: %w", i, err)
		}
		if factory.Name() == name {
			return factory, nil
		}
		names = append(names, factory.Name())
	}
	return nil, fmt.Errorf("model config %q not found in %v", name, names)
}
