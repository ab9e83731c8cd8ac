package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, BackendSubprocess, cfg.Backend)
	assert.Equal(t, []string{"python3", "jina_colbert.py"}, cfg.Command)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, 256, cfg.ChunkSize)
	assert.Equal(t, 32, cfg.ChunkOverlap)
	require.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with command", func(t *testing.T) {
		cfg := NewConfig(WithCommand("uv", "run", "embed.py"), WithWorkDir("/srv/models"))
		assert.Equal(t, []string{"uv", "run", "embed.py"}, cfg.Command)
		assert.Equal(t, "/srv/models", cfg.WorkDir)
	})

	t.Run("with openai backend", func(t *testing.T) {
		cfg := NewConfig(
			WithBackend(BackendOpenAI),
			WithEmbeddingHost("http://embed:8080"),
			WithEmbeddingModel("text-embedding-3-small"),
			WithToken("sk-test"),
			WithChunking(128, 16),
		)
		assert.Equal(t, BackendOpenAI, cfg.Backend)
		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
		assert.Equal(t, "sk-test", cfg.Token)
		assert.Equal(t, 128, cfg.ChunkSize)
		assert.Equal(t, 16, cfg.ChunkOverlap)
	})
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"http://localhost:11434", "http://localhost:11434/v1"},
		{"http://localhost:11434/", "http://localhost:11434/v1"},
		{"http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			cfg := &Config{EmbeddingHost: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.EmbeddingHost)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    []ConfigOption
		wantErr string
	}{
		{"default", nil, ""},
		{"empty command", []ConfigOption{WithCommand()}, "Command is required"},
		{"unknown backend", []ConfigOption{WithBackend("grpc")}, "unknown backend"},
		{"openai ok", []ConfigOption{WithBackend(BackendOpenAI)}, ""},
		{"openai no model", []ConfigOption{WithBackend(BackendOpenAI), WithEmbeddingModel("")}, "EmbeddingModel is required"},
		{"openai no host", []ConfigOption{WithBackend(BackendOpenAI), WithEmbeddingHost("")}, "EmbeddingHost is required"},
		{"openai bad chunk", []ConfigOption{WithBackend(BackendOpenAI), WithChunking(0, 0)}, "ChunkSize"},
		{"openai bad overlap", []ConfigOption{WithBackend(BackendOpenAI), WithChunking(10, 10)}, "ChunkOverlap"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfig(tt.opts...).Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
