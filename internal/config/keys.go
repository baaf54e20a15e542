package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "CLIPSIGHT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.video_base_url", typ: kString, env: "CLIPSIGHT_SERVER_VIDEO_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Server.VideoBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.VideoBaseURL },
	},
	{
		key: "openai.api_key", typ: kString, env: "CLIPSIGHT_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.APIKey },
	},
	{
		key: "openai.chat_model", typ: kString, env: "CLIPSIGHT_OPENAI_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.ChatModel },
	},
	{
		key: "openai.embed_model", typ: kString, env: "CLIPSIGHT_OPENAI_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.EmbedModel },
	},
	{
		key: "mcp.sse_url", typ: kString, env: "CLIPSIGHT_MCP_SSE_URL",
		apply:   func(cfg *Config, v any) { cfg.MCP.SSEURL = v.(string) },
		extract: func(cfg Config) any { return cfg.MCP.SSEURL },
	},
	{
		key: "storage.data_dir", typ: kString, env: "CLIPSIGHT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "CLIPSIGHT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "CLIPSIGHT_RETRIEVAL_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.TopK },
	},
	{
		key: "retrieval.max_context_tokens", typ: kInt, env: "CLIPSIGHT_RETRIEVAL_MAX_CONTEXT_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.MaxContextTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.MaxContextTokens },
	},
	{
		key: "pipeline.retrieve_timeout", typ: kString, env: "CLIPSIGHT_PIPELINE_RETRIEVE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.RetrieveTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Pipeline.RetrieveTimeout },
	},
	{
		key: "pipeline.broker_timeout", typ: kString, env: "CLIPSIGHT_PIPELINE_BROKER_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.BrokerTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Pipeline.BrokerTimeout },
	},
	{
		key: "pipeline.synthesize_timeout", typ: kString, env: "CLIPSIGHT_PIPELINE_SYNTHESIZE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.SynthesizeTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Pipeline.SynthesizeTimeout },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
