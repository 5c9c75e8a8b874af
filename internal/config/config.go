// Package config loads inference configuration files.
//
// A configuration is a YAML document, optionally patched with dotted overrides such as
// generation.max_new_tokens=128, decoded onto defaults and then finalized and validated.
// Fields the tool does not consume are ignored so upstream recipes load unchanged.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type EngineType string

const (
	EngineRemote    EngineType = "REMOTE"
	EngineOpenAI    EngineType = "OPENAI"
	EngineAnthropic EngineType = "ANTHROPIC"
	EngineGemini    EngineType = "GEMINI"
	EngineOllama    EngineType = "OLLAMA"
)

// Engines lists every engine type a config may name.
var Engines = []EngineType{EngineRemote, EngineOpenAI, EngineAnthropic, EngineGemini, EngineOllama}

type ModelParams struct {
	ModelName      string `yaml:"model_name"`
	TokenizerName  string `yaml:"tokenizer_name"`
	ModelMaxLength int    `yaml:"model_max_length"`
	ChatTemplate   string `yaml:"chat_template"`
}

type GenerationParams struct {
	MaxNewTokens int      `yaml:"max_new_tokens"`
	Temperature  float64  `yaml:"temperature"`
	TopP         float64  `yaml:"top_p"`
	Seed         *int64   `yaml:"seed"`
	StopStrings  []string `yaml:"stop_strings"`
}

type RemoteParams struct {
	APIURL     string `yaml:"api_url"`
	APIKey     string `yaml:"api_key"`
	APIKeyEnv  string `yaml:"api_key_env"`
	NumWorkers int    `yaml:"num_workers"`
	MaxRetries int    `yaml:"max_retries"`
	// ConnectionTimeout is in seconds.
	ConnectionTimeout float64 `yaml:"connection_timeout"`
}

// InferenceConfig is the subset of an inference recipe this tool acts on.
type InferenceConfig struct {
	Model        ModelParams      `yaml:"model"`
	Generation   GenerationParams `yaml:"generation"`
	Engine       EngineType       `yaml:"engine"`
	RemoteParams RemoteParams     `yaml:"remote_params"`
	InputPath    string           `yaml:"input_path"`
	OutputPath   string           `yaml:"output_path"`
}

// Default returns a config populated with default values.
func Default() InferenceConfig {
	return InferenceConfig{
		Generation: GenerationParams{
			MaxNewTokens: 256,
			Temperature:  0,
			TopP:         1,
		},
		Engine: EngineRemote,
		RemoteParams: RemoteParams{
			NumWorkers:        1,
			MaxRetries:        3,
			ConnectionTimeout: 300,
		},
	}
}

// Timeout converts ConnectionTimeout to a duration.
func (r RemoteParams) Timeout() time.Duration {
	return time.Duration(r.ConnectionTimeout * float64(time.Second))
}

// Load reads the YAML file at path, applies the override tokens and decodes the result onto
// Default(). The returned config is finalized but not validated.
func Load(path string, overrides []string) (*InferenceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data, overrides)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse is Load for in-memory YAML.
func Parse(data []byte, overrides []string) (*InferenceConfig, error) {
	parsed, err := ParseOverrides(overrides)
	if err != nil {
		return nil, err
	}

	tree := map[string]any{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		if tree == nil {
			tree = map[string]any{}
		}
	}
	for _, o := range parsed {
		if err := o.Apply(tree); err != nil {
			return nil, err
		}
	}

	merged, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode merged config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(merged, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Finalize()
	return &cfg, nil
}
