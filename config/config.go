package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/plotdex/ai"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvQdrantURL      = "QDRANT_URL"
	EnvQdrantAPIKey   = "QDRANT_API_KEY"
	EnvCollection     = "PLOTDEX_COLLECTION"
	EnvEmbedHost      = "PLOTDEX_EMBED_HOST"
	EnvEmbedModel     = "PLOTDEX_EMBED_MODEL"
	EnvEmbedBackend   = "PLOTDEX_EMBED_BACKEND"
	EnvLedgerPath     = "PLOTDEX_LEDGER"
	EnvUploadBatch    = "PLOTDEX_UPLOAD_BATCH_SIZE"
	EnvRequestTimeout = "PLOTDEX_REQUEST_TIMEOUT"
)

// Config holds everything needed to ingest and search one collection.
type Config struct {
	Source         string        `yaml:"source"`
	QdrantURL      string        `yaml:"qdrant_url"`
	QdrantAPIKey   string        `yaml:"qdrant_api_key"`
	Collection     string        `yaml:"collection"`
	VectorSize     int           `yaml:"vector_size"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	LedgerPath     string        `yaml:"ledger_path"`
	Embedding      Embedding     `yaml:"embedding"`
	Upload         Upload        `yaml:"upload"`
}

// Embedding configures the embedding backend.
type Embedding struct {
	Backend      string        `yaml:"backend"`
	Command      []string      `yaml:"command"`
	WorkDir      string        `yaml:"work_dir"`
	Host         string        `yaml:"host"`
	Model        string        `yaml:"model"`
	Token        string        `yaml:"token"`
	ChunkSize    int           `yaml:"chunk_size"`
	ChunkOverlap int           `yaml:"chunk_overlap"`
	BatchSize    int           `yaml:"batch_size"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Upload configures the batch uploader.
type Upload struct {
	BatchSize   int     `yaml:"batch_size"`
	Concurrency int     `yaml:"concurrency"`
	RateLimit   float64 `yaml:"rate_limit"`
	Resume      bool    `yaml:"resume"`
}

// Default returns the built-in configuration.
func Default() *Config {
	embed := ai.DefaultConfig()
	return &Config{
		Source:         "data/wiki_movie_plots_deduped.csv",
		QdrantURL:      "http://localhost:6334",
		Collection:     "movie_plots",
		VectorSize:     128,
		RequestTimeout: 10 * time.Second,
		Embedding: Embedding{
			Backend:      embed.Backend,
			Command:      embed.Command,
			WorkDir:      embed.WorkDir,
			Host:         embed.EmbeddingHost,
			Model:        embed.EmbeddingModel,
			Token:        embed.Token,
			ChunkSize:    embed.ChunkSize,
			ChunkOverlap: embed.ChunkOverlap,
			Timeout:      30 * time.Minute,
		},
		Upload: Upload{
			BatchSize:   100,
			Concurrency: 1,
		},
	}
}

// Load builds a configuration from the defaults, the YAML file at path (if
// path is not empty) and the environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := cfg.Decode(f); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode overlays YAML from r onto cfg. Unknown keys are rejected.
func (c *Config) Decode(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(c)
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored. With no paths, ".env" is loaded.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		key string
		dst *string
	}{
		{EnvQdrantURL, &c.QdrantURL},
		{EnvQdrantAPIKey, &c.QdrantAPIKey},
		{EnvCollection, &c.Collection},
		{EnvEmbedHost, &c.Embedding.Host},
		{EnvEmbedModel, &c.Embedding.Model},
		{EnvEmbedBackend, &c.Embedding.Backend},
		{EnvLedgerPath, &c.LedgerPath},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok && v != "" {
			*s.dst = v
		}
	}

	if v, ok := lookup(EnvUploadBatch); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvUploadBatch, err)
		}
		c.Upload.BatchSize = n
	}
	if v, ok := lookup(EnvRequestTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRequestTimeout, err)
		}
		c.RequestTimeout = d
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.QdrantURL == "":
		return fmt.Errorf("%w: qdrant_url is required", ErrInvalidConfig)
	case c.Collection == "":
		return fmt.Errorf("%w: collection is required", ErrInvalidConfig)
	case c.VectorSize < 1:
		return fmt.Errorf("%w: vector_size must be positive, got %d", ErrInvalidConfig, c.VectorSize)
	case c.RequestTimeout < 0:
		return fmt.Errorf("%w: request_timeout must not be negative", ErrInvalidConfig)
	case c.Embedding.Timeout < 0:
		return fmt.Errorf("%w: embedding.timeout must not be negative", ErrInvalidConfig)
	case c.Embedding.BatchSize < 0:
		return fmt.Errorf("%w: embedding.batch_size must not be negative", ErrInvalidConfig)
	case c.Upload.BatchSize < 1:
		return fmt.Errorf("%w: upload.batch_size must be positive, got %d", ErrInvalidConfig, c.Upload.BatchSize)
	case c.Upload.Concurrency < 1:
		return fmt.Errorf("%w: upload.concurrency must be positive, got %d", ErrInvalidConfig, c.Upload.Concurrency)
	case c.Upload.RateLimit < 0:
		return fmt.Errorf("%w: upload.rate_limit must not be negative", ErrInvalidConfig)
	case c.Upload.Resume && c.LedgerPath == "":
		return fmt.Errorf("%w: upload.resume requires ledger_path", ErrInvalidConfig)
	}
	if _, err := c.AIConfig(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// AIConfig converts the embedding section into an ai.Config.
func (c *Config) AIConfig() (*ai.Config, error) {
	e := c.Embedding
	cfg := ai.NewConfig(
		ai.WithBackend(e.Backend),
		ai.WithCommand(e.Command...),
		ai.WithWorkDir(e.WorkDir),
		ai.WithEmbeddingHost(e.Host),
		ai.WithEmbeddingModel(e.Model),
		ai.WithToken(e.Token),
		ai.WithChunking(e.ChunkSize, e.ChunkOverlap),
	)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
