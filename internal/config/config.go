package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	OpenAI    OpenAIConfig
	MCP       MCPConfig
	Storage   StorageConfig
	Log       LogConfig
	Retrieval RetrievalConfig
	Pipeline  PipelineConfig
}

type ServerConfig struct {
	Port         int
	VideoBaseURL string
}

type OpenAIConfig struct {
	APIKey     string
	ChatModel  string
	EmbedModel string
}

type MCPConfig struct {
	SSEURL string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type RetrievalConfig struct {
	TopK             int
	MaxContextTokens int
}

// PipelineConfig holds per-stage timeouts as duration strings
// (e.g. "30s"). Empty values select the built-in defaults.
type PipelineConfig struct {
	RetrieveTimeout   string
	BrokerTimeout     string
	SynthesizeTimeout string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8000,
		},
		OpenAI: OpenAIConfig{
			ChatModel:  "gpt-4o-mini",
			EmbedModel: "text-embedding-3-small",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Retrieval: RetrievalConfig{
			TopK:             3,
			MaxContextTokens: 4000,
		},
	}
}

// Load reads configuration in precedence order: defaults, then the JSON
// config file at $XDG_CONFIG_HOME/clipsight/config.json, then
// CLIPSIGHT_* environment variables. A .env file in the working
// directory is loaded first for local development. Secrets (the OpenAI
// API key) come from the environment only.
func Load() (Config, error) {
	_ = godotenv.Load()
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.OpenAI.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: OpenAI API key. Set it via environment variable CLIPSIGHT_OPENAI_API_KEY")
	}

	return cfg, nil
}
