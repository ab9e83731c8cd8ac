// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Embedding backend kinds.
const (
	// BackendSubprocess runs a local model process speaking JSON over stdio.
	BackendSubprocess = "subprocess"
	// BackendOpenAI calls an OpenAI-compatible embeddings endpoint.
	BackendOpenAI = "openai"
)

// Config holds configuration for embedding backends.
type Config struct {
	// Backend selects the embedding implementation.
	// Default: "subprocess"
	Backend string

	// Command is the program and arguments of the subprocess backend.
	// Default: python3 jina_colbert.py
	Command []string

	// WorkDir is the working directory of the subprocess. Empty means the
	// current directory.
	WorkDir string

	// EmbeddingHost is the base URL for the OpenAI-compatible embedding API.
	// Example: "http://localhost:11434/v1"
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	EmbeddingModel string

	// Token is the API token. Local servers accept any value.
	Token string

	// ChunkSize and ChunkOverlap control how the OpenAI backend splits a text
	// into the chunks that make up its multi-vector.
	ChunkSize    int
	ChunkOverlap int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithBackend selects the embedding backend.
func WithBackend(backend string) ConfigOption {
	return func(c *Config) {
		c.Backend = backend
	}
}

// WithCommand sets the subprocess command line.
func WithCommand(command ...string) ConfigOption {
	return func(c *Config) {
		c.Command = command
	}
}

// WithWorkDir sets the subprocess working directory.
func WithWorkDir(dir string) ConfigOption {
	return func(c *Config) {
		c.WorkDir = dir
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithToken sets the API token.
func WithToken(token string) ConfigOption {
	return func(c *Config) {
		c.Token = token
	}
}

// WithChunking sets the chunk size and overlap, in characters.
func WithChunking(size, overlap int) ConfigOption {
	return func(c *Config) {
		c.ChunkSize = size
		c.ChunkOverlap = overlap
	}
}

// DefaultConfig returns a Config that runs the bundled ColBERT script.
func DefaultConfig() *Config {
	return &Config{
		Backend:        BackendSubprocess,
		Command:        []string{"python3", "jina_colbert.py"},
		EmbeddingHost:  "http://localhost:11434/v1",
		EmbeddingModel: "embeddinggemma",
		Token:          "none",
		ChunkSize:      256,
		ChunkOverlap:   32,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithBackend(BackendOpenAI),
//	    WithEmbeddingHost("http://localhost:11434"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to the embedding host if missing.
func (c *Config) Normalize() {
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/") + "/v1"
	}
}

// Validate checks that the configuration is complete for the selected backend.
// It normalizes the configuration first.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Backend {
	case BackendSubprocess:
		if len(c.Command) == 0 || c.Command[0] == "" {
			return errors.New("ai config: Command is required")
		}
	case BackendOpenAI:
		if c.EmbeddingHost == "" {
			return errors.New("ai config: EmbeddingHost is required")
		}
		if c.EmbeddingModel == "" {
			return errors.New("ai config: EmbeddingModel is required")
		}
		if c.ChunkSize <= 0 {
			return errors.New("ai config: ChunkSize must be greater than 0")
		}
		if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
			return errors.New("ai config: ChunkOverlap must be in [0, ChunkSize)")
		}
	default:
		return fmt.Errorf("ai config: unknown backend %q", c.Backend)
	}
	return nil
}
