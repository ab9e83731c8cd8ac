package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/plotdex/core"
	"github.com/poiesic/plotdex/index"
	"github.com/poiesic/plotdex/storage"
	"golang.org/x/time/rate"
)

// DefaultBatchSize is the number of points sent per upsert.
const DefaultBatchSize = 100

// PayloadSource supplies the payload of each row. *corpus.Projector
// satisfies it.
type PayloadSource interface {
	Len() int
	Payload(row int) (core.Payload, error)
}

// UploadRequest describes one upload.
type UploadRequest struct {
	Collection string
	// Embeddings holds one multi-vector per row. Entries for skipped rows
	// may be nil.
	Embeddings []core.MultiVector
	Payloads   PayloadSource
	// Fingerprint keys the run ledger entry of this corpus.
	Fingerprint uint64
	// Skip lists rows that are already committed and must not be sent.
	Skip *roaring.Bitmap
}

// UploadReport summarizes a finished upload.
type UploadReport struct {
	Points    int
	Skipped   int
	Batches   int
	Committed []core.RowRange
	Elapsed   time.Duration
}

// Uploader sends points to the index backend in fixed-size batches.
// Point ids are row indices, so repeated uploads overwrite rather than
// duplicate.
type Uploader struct {
	backend     index.Backend
	batchSize   int
	concurrency int
	limiter     *rate.Limiter
	ledger      storage.LedgerRepository
	progress    io.Writer
	pool        *ants.Pool
	logger      *slog.Logger
}

// UploaderOption configures an Uploader.
type UploaderOption func(*Uploader) error

// WithBatchSize sets the number of points per upsert.
// Default is DefaultBatchSize.
func WithBatchSize(size int) UploaderOption {
	return func(u *Uploader) error {
		if size < 1 {
			return fmt.Errorf("batch size must be at least 1, got %d", size)
		}
		u.batchSize = size
		return nil
	}
}

// WithConcurrency sets how many upserts may be in flight at once.
// Default is 1, which uploads batches strictly in order.
func WithConcurrency(n int) UploaderOption {
	return func(u *Uploader) error {
		if n < 1 {
			return fmt.Errorf("concurrency must be at least 1, got %d", n)
		}
		u.concurrency = n
		return nil
	}
}

// WithRateLimit caps upserts per second. Zero disables the limit.
func WithRateLimit(perSecond float64, burst int) UploaderOption {
	return func(u *Uploader) error {
		if perSecond < 0 {
			return fmt.Errorf("rate limit must not be negative, got %v", perSecond)
		}
		if perSecond == 0 {
			u.limiter = nil
			return nil
		}
		u.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
		return nil
	}
}

// WithLedger records every committed batch in ledger.
func WithLedger(ledger storage.LedgerRepository) UploaderOption {
	return func(u *Uploader) error {
		u.ledger = ledger
		return nil
	}
}

// WithProgress writes a progress line to w as batches complete.
func WithProgress(w io.Writer) UploaderOption {
	return func(u *Uploader) error {
		u.progress = w
		return nil
	}
}

// WithUploaderLogger sets a custom logger.
func WithUploaderLogger(logger *slog.Logger) UploaderOption {
	return func(u *Uploader) error {
		if logger == nil {
			logger = slog.Default()
		}
		u.logger = logger.With("component", "uploader")
		return nil
	}
}

// NewUploader creates an uploader on backend.
func NewUploader(backend index.Backend, opts ...UploaderOption) (*Uploader, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	u := &Uploader{
		backend:     backend,
		batchSize:   DefaultBatchSize,
		concurrency: 1,
		logger:      slog.Default().With("component", "uploader"),
	}
	for _, opt := range opts {
		if err := opt(u); err != nil {
			return nil, err
		}
	}
	if u.concurrency > 1 {
		pool, err := ants.NewPool(u.concurrency)
		if err != nil {
			return nil, err
		}
		u.pool = pool
	}
	return u, nil
}

// Release releases the worker pool. The uploader should not be used after
// calling Release.
func (u *Uploader) Release() {
	if u.pool != nil {
		u.pool.Release()
	}
}

// Upload sends one point per row of embeddings, with payloads taken from
// the same row of payloads.
func (u *Uploader) Upload(ctx context.Context, collection string, embeddings []core.MultiVector, payloads PayloadSource) (*UploadReport, error) {
	return u.Run(ctx, UploadRequest{
		Collection: collection,
		Embeddings: embeddings,
		Payloads:   payloads,
	})
}

type batch struct {
	rows   core.RowRange
	points []core.IndexPoint
}

// batchRun holds the state shared by the batches of one Run call.
type batchRun struct {
	mu        sync.Mutex
	committed []core.RowRange
	failed    *core.UploadError
	points    int
	batches   int
}

func (r *batchRun) succeed(b batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, b.rows)
	r.points += len(b.points)
	r.batches++
}

// fail records the first failure only.
func (r *batchRun) fail(b batch, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed == nil {
		r.failed = core.NewUploadError(b.rows, nil, err)
	}
}

func (r *batchRun) hasFailed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed != nil
}

// Run uploads req. The buffer is flushed when it holds a full batch or when
// the last row has been added. The first failing upsert stops the upload;
// batches committed before it stay in the collection and are listed in the
// returned *core.UploadError.
func (u *Uploader) Run(ctx context.Context, req UploadRequest) (*UploadReport, error) {
	if req.Payloads == nil {
		return nil, ErrPayloadsRequired
	}
	if req.Payloads.Len() != len(req.Embeddings) {
		return nil, fmt.Errorf("%w: %d embeddings, %d payload rows",
			ErrPayloadMismatch, len(req.Embeddings), req.Payloads.Len())
	}

	start := time.Now()
	total := len(req.Embeddings)
	skip := req.Skip
	if skip == nil {
		skip = roaring.New()
	}
	skipped := 0
	for row := range total {
		if skip.Contains(uint32(row)) {
			skipped++
		}
	}
	pending := total - skipped

	var tracker *ProgressTracker
	if u.progress != nil {
		tracker = NewProgressTracker(u.progress, pending, u.batchSize)
		tracker.Start()
		defer tracker.Finish()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	run := &batchRun{}
	var wg sync.WaitGroup
	key := storage.LedgerKey{Collection: req.Collection, Fingerprint: req.Fingerprint}

	send := func(b batch) {
		if runCtx.Err() != nil || run.hasFailed() {
			return
		}
		if err := u.upsert(runCtx, req.Collection, b); err != nil {
			u.logger.Error("upsert failed", "collection", req.Collection,
				"start", b.rows.Start, "end", b.rows.End, "err", err)
			run.fail(b, err)
			cancel()
			return
		}
		run.succeed(b)
		u.record(ctx, key, b, total)
		if tracker != nil {
			tracker.Increment(len(b.points))
		}
	}

	dispatch := func(b batch) error {
		if u.pool == nil {
			send(b)
			return nil
		}
		wg.Add(1)
		err := u.pool.Submit(func() {
			defer wg.Done()
			send(b)
		})
		if err != nil {
			wg.Done()
		}
		return err
	}

	var buf []core.IndexPoint
	first := -1
	for row := range total {
		if skip.Contains(uint32(row)) {
			continue
		}
		if run.hasFailed() || runCtx.Err() != nil {
			break
		}
		payload, err := req.Payloads.Payload(row)
		if err != nil {
			cancel()
			wg.Wait()
			return nil, err
		}
		if first < 0 {
			first = row
		}
		buf = append(buf, core.IndexPoint{
			ID:      core.PointID(row),
			Vector:  req.Embeddings[row],
			Payload: payload,
		})
		if len(buf) == u.batchSize {
			if err := dispatch(batch{rows: core.RowRange{Start: first, End: row + 1}, points: buf}); err != nil {
				cancel()
				wg.Wait()
				return nil, err
			}
			buf = make([]core.IndexPoint, 0, u.batchSize)
			first = -1
		}
	}
	if len(buf) > 0 && !run.hasFailed() && runCtx.Err() == nil {
		last := int(buf[len(buf)-1].ID)
		if err := dispatch(batch{rows: core.RowRange{Start: first, End: last + 1}, points: buf}); err != nil {
			cancel()
			wg.Wait()
			return nil, err
		}
	}
	wg.Wait()

	slices.SortFunc(run.committed, func(a, b core.RowRange) int { return a.Start - b.Start })

	if run.failed != nil {
		run.failed.Committed = run.committed
		return nil, run.failed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &UploadReport{
		Points:    run.points,
		Skipped:   skipped,
		Batches:   run.batches,
		Committed: run.committed,
		Elapsed:   time.Since(start),
	}
	u.logger.Info("upload complete", "collection", req.Collection,
		"points", report.Points, "skipped", report.Skipped,
		"batches", report.Batches, "elapsed", report.Elapsed)
	return report, nil
}

func (u *Uploader) upsert(ctx context.Context, collection string, b batch) error {
	if u.limiter != nil {
		if err := u.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	u.logger.Debug("upserting batch", "collection", collection,
		"start", b.rows.Start, "end", b.rows.End, "points", len(b.points))
	return u.backend.UpsertPoints(ctx, collection, b.points)
}

// record stores a committed batch in the ledger. Ledger failures are logged
// and do not fail the upload.
func (u *Uploader) record(ctx context.Context, key storage.LedgerKey, b batch, total int) {
	if u.ledger == nil {
		return
	}
	if err := u.ledger.MarkCommitted(ctx, key, b.rows, total); err != nil {
		u.logger.Warn("failed to record committed batch", "start", b.rows.Start, "end", b.rows.End, "err", err)
	}
}
