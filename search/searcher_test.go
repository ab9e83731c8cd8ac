package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/poiesic/plotdex/ai/mock"
	"github.com/poiesic/plotdex/core"
	"github.com/poiesic/plotdex/index"
	"github.com/poiesic/plotdex/index/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 32

var plots = []struct {
	title string
	year  string
	text  string
}{
	{"Kansas Saloon Smashers", "1901", "a bartender serves drinks in a saloon"},
	{"The Great Train Robbery", "1903", "bandits rob a train and flee on horseback"},
	{"Laughing Gas", "1907", "a woman visits the dentist and laughs"},
	{"Frankenstein", "1910", "a scientist creates a monster in his laboratory"},
}

func seededBackend(t *testing.T) *memory.Backend {
	t.Helper()
	ctx := context.Background()
	backend := memory.New()
	require.NoError(t, backend.CreateCollection(ctx, core.NewCollectionSpec("movie_plots", testDim)))

	points := make([]core.IndexPoint, len(plots))
	for i, p := range plots {
		points[i] = core.IndexPoint{
			ID:      core.PointID(i),
			Vector:  mock.MultiVectorFor(p.text, testDim),
			Payload: core.Payload{PayloadTitle: p.title, PayloadYear: p.year},
		}
	}
	require.NoError(t, backend.UpsertPoints(ctx, "movie_plots", points))
	return backend
}

func TestNewSearcher(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDim(testDim)
	backend := memory.New()

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(embedder, backend, "movie_plots")
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with custom logger", func(t *testing.T) {
		searcher, err := NewSearcher(embedder, backend, "movie_plots", WithLogger(slog.Default()))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewSearcher(nil, backend, "movie_plots")
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("nil backend", func(t *testing.T) {
		_, err := NewSearcher(embedder, nil, "movie_plots")
		assert.ErrorIs(t, err, ErrBackendRequired)
	})

	t.Run("empty collection", func(t *testing.T) {
		_, err := NewSearcher(embedder, backend, "")
		assert.ErrorIs(t, err, core.ErrEmptyCollectionName)
	})
}

func TestSearch_RanksMatchingPlotFirst(t *testing.T) {
	searcher, err := NewSearcher(mock.NewMockEmbedderWithDim(testDim), seededBackend(t), "movie_plots")
	require.NoError(t, err)

	hits, err := searcher.Search(context.Background(), "bandits rob train", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, core.PointID(1), hits[0].ID)
	assert.Equal(t, "The Great Train Robbery", hits[0].Title)
	assert.Equal(t, "1903", hits[0].Year)
	assert.InDelta(t, 3.0, hits[0].Score, 1e-4, "every query token has an exact match")
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearch_TopKLargerThanCollection(t *testing.T) {
	searcher, err := NewSearcher(mock.NewMockEmbedderWithDim(testDim), seededBackend(t), "movie_plots")
	require.NoError(t, err)

	hits, err := searcher.Search(context.Background(), "dentist", 10)
	require.NoError(t, err)
	assert.Len(t, hits, len(plots))
	assert.Equal(t, "Laughing Gas", hits[0].Title)
}

func TestSearch_EmptyCollection(t *testing.T) {
	backend := memory.New()
	require.NoError(t, backend.CreateCollection(context.Background(), core.NewCollectionSpec("movie_plots", testDim)))
	searcher, err := NewSearcher(mock.NewMockEmbedderWithDim(testDim), backend, "movie_plots")
	require.NoError(t, err)

	hits, err := searcher.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_InvalidInput(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDim(testDim)
	searcher, err := NewSearcher(embedder, seededBackend(t), "movie_plots")
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = searcher.Search(context.Background(), "train", 0)
	assert.ErrorIs(t, err, index.ErrInvalidLimit)

	assert.Zero(t, embedder.CallCount(), "invalid input is rejected before embedding")
}

func TestSearch_MissingCollection(t *testing.T) {
	searcher, err := NewSearcher(mock.NewMockEmbedderWithDim(testDim), memory.New(), "movie_plots")
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "train", 5)
	assert.ErrorIs(t, err, index.ErrCollectionNotFound)
}

func TestSearch_EmbedderError(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDim(testDim)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) (core.MultiVector, error) {
		return nil, errors.New("backend down")
	}
	searcher, err := NewSearcher(embedder, seededBackend(t), "movie_plots")
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "train", 5)
	assert.EqualError(t, err, "backend down")
}

func TestSearch_EmptyEmbedding(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDim(testDim)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) (core.MultiVector, error) {
		return core.MultiVector{}, nil
	}
	searcher, err := NewSearcher(embedder, seededBackend(t), "movie_plots")
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "train", 5)
	var derr *core.DimensionError
	assert.ErrorAs(t, err, &derr)
}

type recordingMonitor struct {
	query   string
	vectors int
	points  int
	hits    []core.Hit
	calls   []string
}

func (m *recordingMonitor) Start(query string) {
	m.query = query
	m.calls = append(m.calls, "start")
}

func (m *recordingMonitor) AfterEmbedding(vectors core.MultiVector) {
	m.vectors = len(vectors)
	m.calls = append(m.calls, "embedding")
}

func (m *recordingMonitor) AfterQuery(points []index.ScoredPoint) {
	m.points = len(points)
	m.calls = append(m.calls, "query")
}

func (m *recordingMonitor) Finish(hits []core.Hit) {
	m.hits = hits
	m.calls = append(m.calls, "finish")
}

func TestSearchWithMonitor(t *testing.T) {
	searcher, err := NewSearcher(mock.NewMockEmbedderWithDim(testDim), seededBackend(t), "movie_plots")
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	hits, err := searcher.SearchWithMonitor(context.Background(), " monster laboratory ", 3, monitor)
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "embedding", "query", "finish"}, monitor.calls)
	assert.Equal(t, "monster laboratory", monitor.query)
	assert.Equal(t, 2, monitor.vectors)
	assert.Equal(t, 3, monitor.points)
	assert.Equal(t, hits, monitor.hits)
	assert.Equal(t, "Frankenstein", hits[0].Title)
}
