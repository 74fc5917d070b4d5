package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.Database.Type)
	assert.Equal(t, "memory", cfg.Search.Backend)
	assert.Equal(t, "boards", cfg.Search.IndexName)
	assert.Equal(t, 30*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 5*time.Second, cfg.Sync.OpTimeout)
	assert.False(t, cfg.Sync.OnStartup)
	assert.Equal(t, 0, cfg.Sync.QueueCapacity)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.Security.CORSAllowedOrigins)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.Search.ElasticsearchURLs)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BRD_ENV", "PROD")
	t.Setenv("BRD_DB_TYPE", "postgres")
	t.Setenv("BRD_POSTGRES_DSN", "postgres://u:p@localhost:5432/board")
	t.Setenv("BRD_SEARCH_BACKEND", "elasticsearch")
	t.Setenv("BRD_ELASTICSEARCH_URLS", "http://es1:9200, http://es2:9200")
	t.Setenv("BRD_SYNC_INTERVAL", "10s")
	t.Setenv("BRD_SYNC_QUEUE_CAPACITY", "1000")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, []string{"http://es1:9200", "http://es2:9200"}, cfg.Search.ElasticsearchURLs)
	assert.Equal(t, 10*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 1000, cfg.Sync.QueueCapacity)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without dsn", map[string]string{"BRD_DB_TYPE": "postgres"}},
		{"unknown db", map[string]string{"BRD_DB_TYPE": "sqlite"}},
		{"unknown search backend", map[string]string{"BRD_SEARCH_BACKEND": "solr"}},
		{"mongo without uri", map[string]string{"BRD_SEARCH_BACKEND": "mongo"}},
		{"zero interval", map[string]string{"BRD_SYNC_INTERVAL": "0s"}},
		{"negative capacity", map[string]string{"BRD_SYNC_QUEUE_CAPACITY": "-1"}},
		{"bad env", map[string]string{"BRD_ENV": "staging"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load(viper.New())
			assert.Error(t, err)
		})
	}
}
