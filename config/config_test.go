package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/plotdex/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://localhost:6334", cfg.QdrantURL)
	assert.Equal(t, "movie_plots", cfg.Collection)
	assert.Equal(t, 128, cfg.VectorSize)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Embedding.Timeout)
	assert.Equal(t, ai.BackendSubprocess, cfg.Embedding.Backend)
	assert.Equal(t, 100, cfg.Upload.BatchSize)
	assert.Equal(t, 1, cfg.Upload.Concurrency)
	assert.NoError(t, cfg.Validate())
}

func TestDecode(t *testing.T) {
	cfg := Default()
	err := cfg.Decode(strings.NewReader(`
qdrant_url: https://qdrant.example.com
collection: plots_v2
request_timeout: 3s
embedding:
  backend: openai
  host: http://ollama:11434
  model: nomic-embed-text
upload:
  batch_size: 50
  rate_limit: 2.5
`))
	require.NoError(t, err)

	assert.Equal(t, "https://qdrant.example.com", cfg.QdrantURL)
	assert.Equal(t, "plots_v2", cfg.Collection)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, ai.BackendOpenAI, cfg.Embedding.Backend)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, 50, cfg.Upload.BatchSize)
	assert.Equal(t, 2.5, cfg.Upload.RateLimit)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, 128, cfg.VectorSize)
	assert.Equal(t, 1, cfg.Upload.Concurrency)
}

func TestDecode_Empty(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Decode(strings.NewReader("  \n")))
	assert.Equal(t, Default(), cfg)
}

func TestDecode_UnknownKey(t *testing.T) {
	cfg := Default()
	err := cfg.Decode(strings.NewReader("colection: typo\n"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		EnvQdrantURL:      "https://cloud.qdrant.io:6334",
		EnvQdrantAPIKey:   "secret",
		EnvCollection:     "movies",
		EnvEmbedHost:      "http://embed:11434",
		EnvEmbedModel:     "colbert",
		EnvUploadBatch:    "25",
		EnvRequestTimeout: "1m",
		EnvLedgerPath:     "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://cloud.qdrant.io:6334", cfg.QdrantURL)
	assert.Equal(t, "secret", cfg.QdrantAPIKey)
	assert.Equal(t, "movies", cfg.Collection)
	assert.Equal(t, "http://embed:11434", cfg.Embedding.Host)
	assert.Equal(t, "colbert", cfg.Embedding.Model)
	assert.Equal(t, 25, cfg.Upload.BatchSize)
	assert.Equal(t, time.Minute, cfg.RequestTimeout)
	assert.Empty(t, cfg.LedgerPath, "empty variables are ignored")
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.ApplyEnv(envMap(map[string]string{EnvUploadBatch: "many"})))

	cfg = Default()
	assert.Error(t, cfg.ApplyEnv(envMap(map[string]string{EnvRequestTimeout: "soon"})))
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plotdex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("collection: from_file\nvector_size: 64\n"), 0o644))

	t.Setenv(EnvCollection, "from_env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.Collection, "environment overrides the file")
	assert.Equal(t, 64, cfg.VectorSize, "file overrides defaults")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("QDRANT_API_KEY=from-dotenv\nPLOTDEX_COLLECTION=dotenv_plots\n"), 0o644))

	// Register cleanup, then start from a clean slate.
	t.Setenv(EnvQdrantAPIKey, "")
	t.Setenv(EnvCollection, "already-set")
	require.NoError(t, os.Unsetenv(EnvQdrantAPIKey))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv(EnvQdrantAPIKey))
	assert.Equal(t, "already-set", os.Getenv(EnvCollection), "existing variables win")
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"no url", func(c *Config) { c.QdrantURL = "" }, false},
		{"no collection", func(c *Config) { c.Collection = "" }, false},
		{"zero vector size", func(c *Config) { c.VectorSize = 0 }, false},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }, false},
		{"zero upload batch", func(c *Config) { c.Upload.BatchSize = 0 }, false},
		{"zero concurrency", func(c *Config) { c.Upload.Concurrency = 0 }, false},
		{"negative rate", func(c *Config) { c.Upload.RateLimit = -1 }, false},
		{"resume without ledger", func(c *Config) { c.Upload.Resume = true }, false},
		{"resume with ledger", func(c *Config) { c.Upload.Resume = true; c.LedgerPath = "ledger" }, true},
		{"unknown backend", func(c *Config) { c.Embedding.Backend = "grpc" }, false},
		{"openai without model", func(c *Config) {
			c.Embedding.Backend = ai.BackendOpenAI
			c.Embedding.Model = ""
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestAIConfig(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Backend = ai.BackendOpenAI
	cfg.Embedding.Host = "http://ollama:11434"

	aiCfg, err := cfg.AIConfig()
	require.NoError(t, err)
	assert.Equal(t, ai.BackendOpenAI, aiCfg.Backend)
	assert.Equal(t, "http://ollama:11434/v1", aiCfg.EmbeddingHost)
	assert.Equal(t, cfg.Embedding.Model, aiCfg.EmbeddingModel)
}
