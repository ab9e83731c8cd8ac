package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
	"github.com/poiesic/plotdex/ai"
	"github.com/poiesic/plotdex/core"
	"github.com/poiesic/plotdex/corpus"
	"github.com/poiesic/plotdex/index"
	"github.com/poiesic/plotdex/storage"
	"github.com/poiesic/plotdex/table"
)

// Pipeline stage names reported in core.StageError.
const (
	StageLoad      = "load"
	StageDerive    = "derive"
	StageProject   = "project"
	StageResume    = "resume"
	StageEmbed     = "embed"
	StageValidate  = "validate"
	StageProvision = "provision"
	StageUpload    = "upload"
)

// Defaults for a Pipeline.
const (
	DefaultCollection   = "movie_plots"
	DefaultEmbedTimeout = 30 * time.Minute
)

// Pipeline runs one ingestion end to end: load the corpus, derive texts and
// payloads, embed, check dimensions, provision the collection and upload.
type Pipeline struct {
	embedder       ai.Embedder
	backend        index.Backend
	ledger         storage.LedgerRepository
	collection     string
	vectorSize     int
	titleColumn    string
	bodyColumn     string
	fields         []corpus.Field
	embedBatchSize int
	embedTimeout   time.Duration
	resume         bool
	uploaderOpts   []UploaderOption
	logger         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithCollection sets the target collection name.
// Default is DefaultCollection.
func WithCollection(name string) Option {
	return func(p *Pipeline) error {
		p.collection = name
		return nil
	}
}

// WithVectorSize sets the per-token vector size of the collection.
// Default is core.DefaultVectorSize.
func WithVectorSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("%w: %d", core.ErrInvalidVectorSize, size)
		}
		p.vectorSize = size
		return nil
	}
}

// WithColumns sets the title and body columns used to derive texts.
func WithColumns(title, body string) Option {
	return func(p *Pipeline) error {
		p.titleColumn = title
		p.bodyColumn = body
		return nil
	}
}

// WithFields sets the payload layout. Default is corpus.MovieFields.
func WithFields(fields []corpus.Field) Option {
	return func(p *Pipeline) error {
		p.fields = fields
		return nil
	}
}

// WithEmbedBatchSize splits embedding into calls of at most size texts.
// Zero sends every text in a single call, which is the default.
func WithEmbedBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 0 {
			return fmt.Errorf("embed batch size must not be negative, got %d", size)
		}
		p.embedBatchSize = size
		return nil
	}
}

// WithEmbedTimeout bounds each embedding call. Zero disables the bound.
// Default is DefaultEmbedTimeout.
func WithEmbedTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		p.embedTimeout = d
		return nil
	}
}

// WithRunLedger records committed batches in ledger.
func WithRunLedger(ledger storage.LedgerRepository) Option {
	return func(p *Pipeline) error {
		p.ledger = ledger
		p.uploaderOpts = append(p.uploaderOpts, WithLedger(ledger))
		return nil
	}
}

// WithResume skips rows the ledger already records as committed for the
// same collection and corpus. Requires WithRunLedger.
func WithResume(resume bool) Option {
	return func(p *Pipeline) error {
		p.resume = resume
		return nil
	}
}

// WithUploadBatchSize sets the number of points per upsert.
func WithUploadBatchSize(size int) Option {
	return func(p *Pipeline) error {
		p.uploaderOpts = append(p.uploaderOpts, WithBatchSize(size))
		return nil
	}
}

// WithUploadConcurrency sets how many upserts may be in flight at once.
func WithUploadConcurrency(n int) Option {
	return func(p *Pipeline) error {
		p.uploaderOpts = append(p.uploaderOpts, WithConcurrency(n))
		return nil
	}
}

// WithUploadRateLimit caps upserts per second.
func WithUploadRateLimit(perSecond float64, burst int) Option {
	return func(p *Pipeline) error {
		p.uploaderOpts = append(p.uploaderOpts, WithRateLimit(perSecond, burst))
		return nil
	}
}

// WithProgressWriter reports upload progress to w.
func WithProgressWriter(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.uploaderOpts = append(p.uploaderOpts, WithProgress(w))
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(embedder ai.Embedder, backend index.Backend, opts ...Option) (*Pipeline, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if backend == nil {
		return nil, ErrBackendRequired
	}

	p := &Pipeline{
		embedder:     embedder,
		backend:      backend,
		collection:   DefaultCollection,
		vectorSize:   core.DefaultVectorSize,
		titleColumn:  corpus.ColumnTitle,
		bodyColumn:   corpus.ColumnPlot,
		fields:       corpus.MovieFields,
		embedTimeout: DefaultEmbedTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.resume && p.ledger == nil {
		return nil, ErrLedgerRequired
	}
	// Uploader options are applied per run; check them once here
	scratch := &Uploader{}
	for _, opt := range p.uploaderOpts {
		if err := opt(scratch); err != nil {
			return nil, err
		}
	}
	if err := core.ValidateCollectionSpec(p.spec()); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) spec() core.CollectionSpec {
	return core.NewCollectionSpec(p.collection, p.vectorSize)
}

// Report summarizes a successful run.
type Report struct {
	RunID       string
	Collection  string
	Rows        int
	Fingerprint uint64
	Created     bool
	Upload      *UploadReport
	Elapsed     time.Duration
}

// DefaultPlan reads src with the release year normalized to text.
func DefaultPlan(src table.Source) *table.Plan {
	return table.Scan(src).Cast(map[string]table.Type{corpus.ColumnReleaseYear: table.String})
}

func stageErr(stage string, err error) error {
	return &core.StageError{Stage: stage, Err: err}
}

// Run executes the pipeline over the frame produced by plan. Failures are
// returned as *core.StageError naming the stage that failed. Embedding and
// dimension checks complete before the collection is touched.
func (p *Pipeline) Run(ctx context.Context, plan *table.Plan) (*Report, error) {
	if plan == nil {
		return nil, ErrPlanRequired
	}
	start := time.Now()
	runID := uuid.NewString()
	base := p.logger.With("run_id", runID)
	logger := base.With("component", "pipeline", "collection", p.collection)

	logger.Info("loading corpus", "plan", plan.Describe())
	frame, err := plan.Materialize(ctx)
	if err != nil {
		return nil, stageErr(StageLoad, err)
	}
	logger.Info("corpus loaded", "rows", frame.Len(), "columns", len(frame.Columns()))

	texts, err := corpus.DeriveTexts(frame, p.titleColumn, p.bodyColumn)
	if err != nil {
		return nil, stageErr(StageDerive, err)
	}
	fingerprint := core.Fingerprint(texts)

	projector, err := corpus.NewProjector(frame, p.fields)
	if err != nil {
		return nil, stageErr(StageProject, err)
	}

	skip := roaring.New()
	if p.resume {
		key := storage.LedgerKey{Collection: p.collection, Fingerprint: fingerprint}
		committed, err := p.ledger.Committed(ctx, key)
		if err != nil {
			return nil, stageErr(StageResume, fmt.Errorf("read run ledger: %w", err))
		}
		skip = committed
		logger.Info("resuming", "fingerprint", fmt.Sprintf("%016x", fingerprint), "committed", skip.GetCardinality())
	}

	embeddings, err := p.embed(ctx, logger, texts, skip)
	if err != nil {
		return nil, stageErr(StageEmbed, err)
	}

	if err := p.validate(embeddings, skip); err != nil {
		return nil, stageErr(StageValidate, err)
	}

	provisioner := NewProvisioner(p.backend, base)
	created, err := provisioner.EnsureCollection(ctx, p.spec())
	if err != nil {
		return nil, stageErr(StageProvision, err)
	}

	uploader, err := NewUploader(p.backend, append(p.uploaderOpts, WithUploaderLogger(base))...)
	if err != nil {
		return nil, stageErr(StageUpload, err)
	}
	defer uploader.Release()

	upload, err := uploader.Run(ctx, UploadRequest{
		Collection:  p.collection,
		Embeddings:  embeddings,
		Payloads:    projector,
		Fingerprint: fingerprint,
		Skip:        skip,
	})
	if err != nil {
		return nil, stageErr(StageUpload, err)
	}

	report := &Report{
		RunID:       runID,
		Collection:  p.collection,
		Rows:        frame.Len(),
		Fingerprint: fingerprint,
		Created:     created,
		Upload:      upload,
		Elapsed:     time.Since(start),
	}
	logger.Info("ingestion complete", "rows", report.Rows, "points", upload.Points,
		"skipped", upload.Skipped, "created", created, "elapsed", report.Elapsed)
	return report, nil
}

// embed returns one multi-vector per text. Rows in skip are not embedded and
// are left nil.
func (p *Pipeline) embed(ctx context.Context, logger *slog.Logger, texts []string, skip *roaring.Bitmap) ([]core.MultiVector, error) {
	embeddings := make([]core.MultiVector, len(texts))

	rows := make([]int, 0, len(texts))
	for row := range texts {
		if !skip.Contains(uint32(row)) {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return embeddings, nil
	}

	size := p.embedBatchSize
	if size == 0 {
		size = len(rows)
	}

	logger.Info("embedding texts", "count", len(rows), "batch_size", size)
	start := time.Now()
	for lo := 0; lo < len(rows); lo += size {
		hi := min(lo+size, len(rows))
		batch := make([]string, hi-lo)
		for i, row := range rows[lo:hi] {
			batch[i] = texts[row]
		}

		vectors, err := p.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		if err := core.CheckCount(len(batch), len(vectors)); err != nil {
			return nil, err
		}
		for i, row := range rows[lo:hi] {
			embeddings[row] = vectors[i]
		}
		logger.Debug("embedded batch", "done", hi, "total", len(rows))
	}
	logger.Info("embedding complete", "count", len(rows), "elapsed", time.Since(start))
	return embeddings, nil
}

func (p *Pipeline) embedBatch(ctx context.Context, texts []string) ([]core.MultiVector, error) {
	if p.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.embedTimeout)
		defer cancel()
	}
	return p.embedder.EmbedTexts(ctx, texts)
}

func (p *Pipeline) validate(embeddings []core.MultiVector, skip *roaring.Bitmap) error {
	for row, mv := range embeddings {
		if skip.Contains(uint32(row)) {
			continue
		}
		if err := core.ValidateMultiVector(row, mv, p.vectorSize); err != nil {
			return err
		}
	}
	return nil
}
