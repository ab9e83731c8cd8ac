package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/poiesic/plotdex/core"
	"github.com/poiesic/plotdex/index"
	"github.com/poiesic/plotdex/index/memory"
	"github.com/poiesic/plotdex/table"
)

var errUpsertRefused = errors.New("upsert refused")

// movieCSV builds a corpus of n rows with distinct titles and plots.
func movieCSV(n int) string {
	var b strings.Builder
	b.WriteString("Release Year,Title,Origin/Ethnicity,Director,Cast,Genre,Wiki Page,Plot\n")
	for i := range n {
		fmt.Fprintf(&b, "%d,Movie %d,American,Director %d,,drama,,\"Plot number %d, with a twist.\"\n",
			1900+i%100, i, i%7, i)
	}
	return b.String()
}

func csvPlan(csv string) *table.Plan {
	return DefaultPlan(table.SourceFunc(func(ctx context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(csv)), nil
	}))
}

// recordingBackend wraps an in-memory backend, counts calls and can refuse
// a given upsert.
type recordingBackend struct {
	*memory.Backend

	mu       sync.Mutex
	lists    int
	creates  int
	upserts  []int // points per upsert, in call order
	failOn   int   // 1-based upsert call to refuse, 0 disables
	listErr  error
	calls    int
	upserted []core.RowRange
}

var _ index.Backend = (*recordingBackend)(nil)

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{Backend: memory.New()}
}

func (r *recordingBackend) ListCollections(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	r.lists++
	err := r.listErr
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.Backend.ListCollections(ctx)
}

func (r *recordingBackend) CreateCollection(ctx context.Context, spec core.CollectionSpec) error {
	r.mu.Lock()
	r.creates++
	r.mu.Unlock()
	return r.Backend.CreateCollection(ctx, spec)
}

func (r *recordingBackend) UpsertPoints(ctx context.Context, collection string, points []core.IndexPoint) error {
	r.mu.Lock()
	r.calls++
	refuse := r.failOn > 0 && r.calls == r.failOn
	if !refuse {
		r.upserts = append(r.upserts, len(points))
		if len(points) > 0 {
			r.upserted = append(r.upserted, core.RowRange{
				Start: int(points[0].ID),
				End:   int(points[len(points)-1].ID) + 1,
			})
		}
	}
	r.mu.Unlock()
	if refuse {
		return errUpsertRefused
	}
	return r.Backend.UpsertPoints(ctx, collection, points)
}

func (r *recordingBackend) counts() (lists, creates, upserts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lists, r.creates, len(r.upserts)
}

func (r *recordingBackend) batchSizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.upserts...)
}

// payloadRows is a PayloadSource over a fixed slice.
type payloadRows []core.Payload

func (p payloadRows) Len() int { return len(p) }

func (p payloadRows) Payload(row int) (core.Payload, error) {
	if row < 0 || row >= len(p) {
		return nil, &core.RowIndexError{Row: row, Len: len(p)}
	}
	return p[row], nil
}

func unitEmbeddings(n, dim int) ([]core.MultiVector, payloadRows) {
	embeddings := make([]core.MultiVector, n)
	payloads := make(payloadRows, n)
	for i := range n {
		v := make([]float32, dim)
		v[i%dim] = 1
		embeddings[i] = core.MultiVector{v}
		payloads[i] = core.Payload{"title": fmt.Sprintf("Movie %d", i)}
	}
	return embeddings, payloads
}
