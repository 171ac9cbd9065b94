package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration, loaded from regai.yaml with
// REGAI_* environment overrides (REGAI_LLM_API_KEY, REGAI_DATABASE_PATH, ...).
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Index     IndexConfig     `mapstructure:"index"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cycle     CycleConfig     `mapstructure:"cycle"`
	Selector  SelectorConfig  `mapstructure:"selector"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	LogLevel  string          `mapstructure:"log_level"`
}

type LLMConfig struct {
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

type EmbeddingConfig struct {
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	CacheSize int    `mapstructure:"cache_size"`
}

type IndexConfig struct {
	PersistPath string `mapstructure:"persist_path"`
	Collection  string `mapstructure:"collection"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type CycleConfig struct {
	MaxIterations   int     `mapstructure:"max_iterations"`
	TopK            int     `mapstructure:"top_k"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"`
	DefaultAnchor   float64 `mapstructure:"default_anchor"`
}

type SelectorConfig struct {
	FetchK int `mapstructure:"fetch_k"`
}

type WorkerConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("llm.max_attempts", 5)
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.cache_size", 1000)
	v.SetDefault("index.persist_path", "data/index")
	v.SetDefault("index.collection", "regai")
	v.SetDefault("database.path", "data/regai.db")
	v.SetDefault("cycle.max_iterations", 3)
	v.SetDefault("cycle.top_k", 3)
	v.SetDefault("cycle.max_output_tokens", 4096)
	v.SetDefault("cycle.default_anchor", 0.5)
	v.SetDefault("selector.fetch_k", 50)
	v.SetDefault("worker.max_concurrent", 4)
	v.SetDefault("log_level", "info")
}

// Load reads configuration from the given file (optional) plus environment.
// An empty path searches for regai.yaml in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REGAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("regai")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// Missing file is fine; defaults plus environment still apply.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields every command needs. API keys are checked at
// client construction, not here, so offline commands work without them.
func (c *Config) Validate() error {
	if c.Cycle.MaxIterations <= 0 {
		return fmt.Errorf("cycle.max_iterations must be positive, got %d", c.Cycle.MaxIterations)
	}
	if c.Cycle.TopK <= 0 {
		return fmt.Errorf("cycle.top_k must be positive, got %d", c.Cycle.TopK)
	}
	if c.Selector.FetchK < c.Cycle.TopK {
		return fmt.Errorf("selector.fetch_k (%d) must be at least cycle.top_k (%d)", c.Selector.FetchK, c.Cycle.TopK)
	}
	if c.Worker.MaxConcurrent <= 0 {
		return fmt.Errorf("worker.max_concurrent must be positive, got %d", c.Worker.MaxConcurrent)
	}
	return nil
}
