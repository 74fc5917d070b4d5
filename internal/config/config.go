package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	Env      string `mapstructure:"BRD_ENV"`
	LogLevel string `mapstructure:"BRD_LOG_LEVEL"`
	HTTPAddr string `mapstructure:"BRD_HTTP_ADDR"`

	Database DBConfig       `mapstructure:",squash"`
	Search   SearchConfig   `mapstructure:",squash"`
	Sync     SyncConfig     `mapstructure:",squash"`
	Security SecurityConfig `mapstructure:",squash"`
}

type DBConfig struct {
	Type        string `mapstructure:"BRD_DB_TYPE"` // "memory" or "postgres"
	PostgresDSN string `mapstructure:"BRD_POSTGRES_DSN"`
	MaxConns    int32  `mapstructure:"BRD_POSTGRES_MAX_CONNS"`
	AutoMigrate bool   `mapstructure:"BRD_DB_AUTO_MIGRATE"`
	Seed        bool   `mapstructure:"BRD_DB_SEED"` // insert fixtures on startup
}

type SearchConfig struct {
	Backend           string   `mapstructure:"BRD_SEARCH_BACKEND"` // memory, redis, mongo, elasticsearch
	IndexName         string   `mapstructure:"BRD_SEARCH_INDEX_NAME"`
	RedisURL          string   `mapstructure:"BRD_REDIS_URL"`
	MongoURI          string   `mapstructure:"BRD_MONGO_URI"`
	MongoDatabase     string   `mapstructure:"BRD_MONGO_DATABASE"`
	ElasticsearchURLs []string `mapstructure:"BRD_ELASTICSEARCH_URLS"`
}

type SyncConfig struct {
	Interval      time.Duration `mapstructure:"BRD_SYNC_INTERVAL"`
	OpTimeout     time.Duration `mapstructure:"BRD_SYNC_OP_TIMEOUT"`
	OnStartup     bool          `mapstructure:"BRD_SYNC_ON_STARTUP"` // rebuild the index before serving
	QueueCapacity int           `mapstructure:"BRD_SYNC_QUEUE_CAPACITY"`
}

type SecurityConfig struct {
	CORSAllowedOrigins []string      `mapstructure:"BRD_CORS_ALLOWED_ORIGINS"`
	RequestTimeout     time.Duration `mapstructure:"BRD_REQUEST_TIMEOUT"`
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if resolved, err := filepath.Abs(path); err == nil {
			abs = resolved
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // env vars already set take precedence
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("BRD_ENV", "dev")
	v.SetDefault("BRD_LOG_LEVEL", "")
	v.SetDefault("BRD_HTTP_ADDR", ":8080")
	v.SetDefault("BRD_DB_TYPE", "memory")
	v.SetDefault("BRD_POSTGRES_DSN", "")
	v.SetDefault("BRD_POSTGRES_MAX_CONNS", 10)
	v.SetDefault("BRD_DB_AUTO_MIGRATE", true)
	v.SetDefault("BRD_DB_SEED", false)
	v.SetDefault("BRD_SEARCH_BACKEND", "memory")
	v.SetDefault("BRD_SEARCH_INDEX_NAME", "boards")
	v.SetDefault("BRD_REDIS_URL", "redis://127.0.0.1:6379/0")
	v.SetDefault("BRD_MONGO_URI", "")
	v.SetDefault("BRD_MONGO_DATABASE", "board")
	v.SetDefault("BRD_ELASTICSEARCH_URLS", "http://localhost:9200")
	v.SetDefault("BRD_SYNC_INTERVAL", "30s")
	v.SetDefault("BRD_SYNC_OP_TIMEOUT", "5s")
	v.SetDefault("BRD_SYNC_ON_STARTUP", false)
	v.SetDefault("BRD_SYNC_QUEUE_CAPACITY", 0)
	v.SetDefault("BRD_CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("BRD_REQUEST_TIMEOUT", "30s")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Load() (*Config, error) {
	loadDotEnvFiles()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	// Handle array parsing for comma-separated values
	for _, key := range []string{"BRD_CORS_ALLOWED_ORIGINS", "BRD_ELASTICSEARCH_URLS"} {
		if raw := v.GetString(key); raw != "" {
			v.Set(key, splitList(raw))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.Database.Type = strings.ToLower(strings.TrimSpace(c.Database.Type))
	c.Search.Backend = strings.ToLower(strings.TrimSpace(c.Search.Backend))
	c.Search.IndexName = strings.TrimSpace(c.Search.IndexName)
}

func (c *Config) validate() error {
	switch c.Env {
	case "dev", "prod":
	default:
		return fmt.Errorf("invalid BRD_ENV %q (must be dev or prod)", c.Env)
	}

	switch c.Database.Type {
	case "memory":
	case "postgres":
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("BRD_POSTGRES_DSN is required when BRD_DB_TYPE=postgres")
		}
	default:
		return fmt.Errorf("invalid BRD_DB_TYPE %q (must be memory or postgres)", c.Database.Type)
	}

	switch c.Search.Backend {
	case "memory":
	case "redis":
		if c.Search.RedisURL == "" {
			return fmt.Errorf("BRD_REDIS_URL is required when BRD_SEARCH_BACKEND=redis")
		}
	case "mongo":
		if c.Search.MongoURI == "" {
			return fmt.Errorf("BRD_MONGO_URI is required when BRD_SEARCH_BACKEND=mongo")
		}
	case "elasticsearch":
		if len(c.Search.ElasticsearchURLs) == 0 {
			return fmt.Errorf("BRD_ELASTICSEARCH_URLS is required when BRD_SEARCH_BACKEND=elasticsearch")
		}
	default:
		return fmt.Errorf("invalid BRD_SEARCH_BACKEND %q", c.Search.Backend)
	}
	if c.Search.IndexName == "" {
		return fmt.Errorf("BRD_SEARCH_INDEX_NAME must not be empty")
	}

	if c.Sync.Interval <= 0 {
		return fmt.Errorf("BRD_SYNC_INTERVAL must be positive")
	}
	if c.Sync.OpTimeout <= 0 {
		return fmt.Errorf("BRD_SYNC_OP_TIMEOUT must be positive")
	}
	if c.Sync.QueueCapacity < 0 {
		return fmt.Errorf("BRD_SYNC_QUEUE_CAPACITY must be >= 0")
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}
