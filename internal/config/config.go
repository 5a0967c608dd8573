package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CacheConfig enables the Redis embedding cache when RedisURL is set.
type CacheConfig struct {
	RedisURL string `yaml:"redis_url"`
	TTLSecs  int    `yaml:"ttl_secs"`
}

// EmbedderConfig configures the OpenAI-compatible embedding client.
type EmbedderConfig struct {
	BaseURL     string       `yaml:"base_url"`
	APIKeyEnv   string       `yaml:"api_key_env"`
	Model       string       `yaml:"model"`
	TimeoutSecs int          `yaml:"timeout_secs"`
	Cache       *CacheConfig `yaml:"cache,omitempty"`
}

// CompletionConfig configures the chat completion client. Temperature 0.7 and
// 500 max tokens are the defaults; a zero value in the file selects them.
type CompletionConfig struct {
	BaseURL      string  `yaml:"base_url"`
	APIKeyEnv    string  `yaml:"api_key_env"`
	Model        string  `yaml:"model"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int64   `yaml:"max_tokens"`
	TimeoutSecs  int     `yaml:"timeout_secs"`
	MaxRetries   int     `yaml:"max_retries"`
	SystemPrompt string  `yaml:"system_prompt"`
}

// DatastoreConfig points at the relational store. The DSN is read from the
// environment variable named by DSNEnv unless DSN is set directly.
type DatastoreConfig struct {
	Driver string `yaml:"driver"`
	DSNEnv string `yaml:"dsn_env"`
	DSN    string `yaml:"dsn,omitempty"`
}

// VectorStoreConfig selects and configures the similarity store implementation.
// Threshold is left nil when the file omits it, so an explicit 0 is kept.
type VectorStoreConfig struct {
	Type      string        `yaml:"type"`
	Threshold *float64      `yaml:"threshold"`
	Limit     int           `yaml:"limit"`
	Dimension int           `yaml:"dimension"`
	Qdrant    *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// MetricsConfig exposes Prometheus metrics on Listen when set, e.g. ":9090".
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Completion  CompletionConfig  `yaml:"completion"`
	Datastore   DatastoreConfig   `yaml:"datastore"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// DatastoreDSN resolves the datastore connection string. An empty result means no
// datastore is configured.
func (c *AppConfig) DatastoreDSN() string {
	if c.Datastore.DSN != "" {
		return c.Datastore.DSN
	}
	if c.Datastore.DSNEnv == "" {
		return ""
	}
	return os.Getenv(c.Datastore.DSNEnv)
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/echomind/config.yaml.
// If neither exists, it writes defaults to ~/.config/echomind/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "echomind", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.APIKeyEnv == "" {
		cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = "text-embedding-ada-002"
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 30
	}
	if cfg.Embedder.Cache != nil && cfg.Embedder.Cache.TTLSecs == 0 {
		cfg.Embedder.Cache.TTLSecs = 7 * 24 * 60 * 60
	}

	if cfg.Completion.APIKeyEnv == "" {
		cfg.Completion.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Completion.Model == "" {
		cfg.Completion.Model = "gpt-4-turbo-preview"
	}
	if cfg.Completion.Temperature == 0 {
		cfg.Completion.Temperature = 0.7
	}
	if cfg.Completion.MaxTokens == 0 {
		cfg.Completion.MaxTokens = 500
	}
	if cfg.Completion.TimeoutSecs == 0 {
		cfg.Completion.TimeoutSecs = 30
	}
	if cfg.Completion.MaxRetries == 0 {
		cfg.Completion.MaxRetries = 3
	}

	if cfg.Datastore.Driver == "" {
		cfg.Datastore.Driver = "postgres"
	}
	if cfg.Datastore.DSNEnv == "" {
		cfg.Datastore.DSNEnv = "ECHOMIND_DATABASE_URL"
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "pgvector"
	}
	if cfg.VectorStore.Threshold == nil {
		threshold := 0.7
		cfg.VectorStore.Threshold = &threshold
	}
	if cfg.VectorStore.Limit == 0 {
		cfg.VectorStore.Limit = 5
	}
	if cfg.VectorStore.Dimension == 0 {
		cfg.VectorStore.Dimension = 1536
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "echomind_messages"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 10
		}
	}
}
