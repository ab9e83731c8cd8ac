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


package plotdex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/plotdex/ai"
	"github.com/poiesic/plotdex/ai/openai"
	"github.com/poiesic/plotdex/ai/subprocess"
	"github.com/poiesic/plotdex/config"
	"github.com/poiesic/plotdex/core"
	"github.com/poiesic/plotdex/index"
	"github.com/poiesic/plotdex/index/qdrant"
	"github.com/poiesic/plotdex/ingestion"
	"github.com/poiesic/plotdex/search"
	"github.com/poiesic/plotdex/source"
	"github.com/poiesic/plotdex/storage"
	"github.com/poiesic/plotdex/storage/badger"
	"github.com/poiesic/plotdex/table"
)

// ErrNoLedger is returned by ledger operations when no ledger is configured.
var ErrNoLedger = errors.New("no run ledger configured")

// Client wires the embedding backend, the index backend and the optional
// run ledger described by a config.Config.
type Client struct {
	cfg      *config.Config
	backend  index.Backend
	embedder ai.Embedder
	ledger   storage.LedgerRepository
	opener   *source.Opener
	logger   *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	backend  index.Backend
	embedder ai.Embedder
	ledger   storage.LedgerRepository
	s3       source.GetObjectAPI
	logger   *slog.Logger
}

// WithBackend uses backend instead of connecting to Qdrant.
func WithBackend(backend index.Backend) ClientOption {
	return func(o *clientOptions) {
		o.backend = backend
	}
}

// WithEmbedder uses embedder instead of the configured embedding backend.
func WithEmbedder(embedder ai.Embedder) ClientOption {
	return func(o *clientOptions) {
		o.embedder = embedder
	}
}

// WithLedger uses ledger instead of opening the configured ledger path.
func WithLedger(ledger storage.LedgerRepository) ClientOption {
	return func(o *clientOptions) {
		o.ledger = ledger
	}
}

// WithS3Client sets the client used to read s3:// sources.
func WithS3Client(client source.GetObjectAPI) ClientOption {
	return func(o *clientOptions) {
		o.s3 = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// NewClient validates cfg and connects every collaborator it names.
func NewClient(cfg *config.Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &clientOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	c := &Client{cfg: cfg, logger: options.logger}

	c.embedder = options.embedder
	if c.embedder == nil {
		embedder, err := newEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		c.embedder = embedder
	}

	c.backend = options.backend
	if c.backend == nil {
		backend, err := qdrant.New(cfg.QdrantURL, cfg.QdrantAPIKey,
			qdrant.WithTimeout(cfg.RequestTimeout),
			qdrant.WithLogger(c.logger))
		if err != nil {
			return nil, err
		}
		c.backend = backend
	}

	c.ledger = options.ledger
	if c.ledger == nil && cfg.LedgerPath != "" {
		ledger, err := badger.OpenLedger(cfg.LedgerPath)
		if err != nil {
			c.backend.Close()
			return nil, fmt.Errorf("open run ledger: %w", err)
		}
		c.ledger = ledger
	}

	var sourceOpts []source.Option
	if options.s3 != nil {
		sourceOpts = append(sourceOpts, source.WithS3Client(options.s3))
	}
	c.opener = source.NewOpener(append(sourceOpts, source.WithLogger(c.logger))...)

	return c, nil
}

func newEmbedder(cfg *config.Config) (ai.Embedder, error) {
	aiCfg, err := cfg.AIConfig()
	if err != nil {
		return nil, err
	}
	switch aiCfg.Backend {
	case ai.BackendOpenAI:
		return openai.NewEmbedder(aiCfg)
	default:
		return subprocess.NewEmbedder(aiCfg)
	}
}

// Close releases the ledger and the index backend connection.
func (c *Client) Close() error {
	var errs []error
	if c.ledger != nil {
		if err := c.ledger.Close(); err != nil {
			c.logger.Error("error closing run ledger", "err", err)
			errs = append(errs, err)
		}
	}
	if err := c.backend.Close(); err != nil {
		c.logger.Error("error closing index backend", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Config returns the configuration the client was built from.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// Backend returns the index backend.
func (c *Client) Backend() index.Backend {
	return c.backend
}

// Ledger returns the run ledger, or nil when none is configured.
func (c *Client) Ledger() storage.LedgerRepository {
	return c.ledger
}

// Source returns a table.Source reading uri, which is a local path or an
// s3://bucket/key location, optionally compressed.
func (c *Client) Source(uri string) table.Source {
	return table.SourceFunc(func(ctx context.Context) (io.ReadCloser, error) {
		return c.opener.Open(ctx, uri)
	})
}

// NewPipeline creates an ingestion pipeline from the client configuration.
// opts are applied after the configured ones.
func (c *Client) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	cfg := c.cfg
	base := []ingestion.Option{
		ingestion.WithCollection(cfg.Collection),
		ingestion.WithVectorSize(cfg.VectorSize),
		ingestion.WithEmbedBatchSize(cfg.Embedding.BatchSize),
		ingestion.WithEmbedTimeout(cfg.Embedding.Timeout),
		ingestion.WithUploadBatchSize(cfg.Upload.BatchSize),
		ingestion.WithUploadConcurrency(cfg.Upload.Concurrency),
		ingestion.WithUploadRateLimit(cfg.Upload.RateLimit, max(cfg.Upload.Concurrency, 1)),
		ingestion.WithLogger(c.logger),
	}
	if c.ledger != nil {
		base = append(base, ingestion.WithRunLedger(c.ledger), ingestion.WithResume(cfg.Upload.Resume))
	}
	return ingestion.NewPipeline(c.embedder, c.backend, append(base, opts...)...)
}

// Ingest loads the corpus at uri into the configured collection.
func (c *Client) Ingest(ctx context.Context, uri string, opts ...ingestion.Option) (*ingestion.Report, error) {
	pipeline, err := c.NewPipeline(opts...)
	if err != nil {
		return nil, err
	}
	return pipeline.Run(ctx, ingestion.DefaultPlan(c.Source(uri)))
}

// NewSearcher creates a searcher over the configured collection.
func (c *Client) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	opts = append([]search.Option{search.WithLogger(c.logger)}, opts...)
	return search.NewSearcher(c.embedder, c.backend, c.cfg.Collection, opts...)
}

// Search returns the topK best hits for query in the configured collection.
func (c *Client) Search(ctx context.Context, query string, topK int) ([]core.Hit, error) {
	searcher, err := c.NewSearcher()
	if err != nil {
		return nil, err
	}
	return searcher.Search(ctx, query, topK)
}

// Checkpoints lists every checkpoint in the run ledger.
func (c *Client) Checkpoints(ctx context.Context) ([]*core.Checkpoint, error) {
	if c.ledger == nil {
		return nil, ErrNoLedger
	}
	return c.ledger.ListCheckpoints(ctx)
}

// ResetLedger forgets every committed row of the configured collection, so
// the next resumed run ingests the whole corpus again.
func (c *Client) ResetLedger(ctx context.Context) (int, error) {
	if c.ledger == nil {
		return 0, ErrNoLedger
	}
	return c.ledger.Reset(ctx, c.cfg.Collection)
}
