package plotdex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/poiesic/plotdex/ai/mock"
	"github.com/poiesic/plotdex/config"
	"github.com/poiesic/plotdex/index/memory"
	"github.com/poiesic/plotdex/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const corpusCSV = `Release Year,Title,Origin/Ethnicity,Director,Cast,Genre,Wiki Page,Plot
1901,Kansas Saloon Smashers,American,Unknown,,unknown,,A bartender serves drinks in a saloon.
1903,The Great Train Robbery,American,Edwin S. Porter,,western,,Bandits rob a train and flee.
1907,Laughing Gas,American,Edwin Stanton Porter,,comedy,,A woman visits the dentist.
`

func writeCorpus(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plots.csv")
	require.NoError(t, os.WriteFile(path, []byte(corpusCSV), 0o644))
	return path
}

func newTestClient(t *testing.T, cfg *config.Config) (*Client, *memory.Backend) {
	t.Helper()
	backend := memory.New()
	client, err := NewClient(cfg,
		WithBackend(backend),
		WithEmbedder(mock.NewMockEmbedderWithDim(cfg.VectorSize)))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, backend
}

func TestNewClient(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		cfg := config.Default()
		cfg.Collection = ""
		_, err := NewClient(cfg, WithBackend(memory.New()))
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("ledger path is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

		cfg := config.Default()
		cfg.LedgerPath = file
		_, err := NewClient(cfg, WithBackend(memory.New()), WithEmbedder(mock.NewMockEmbedder()))
		assert.Error(t, err)
	})

	t.Run("no ledger", func(t *testing.T) {
		client, _ := newTestClient(t, config.Default())
		assert.Nil(t, client.Ledger())

		_, err := client.Checkpoints(context.Background())
		assert.ErrorIs(t, err, ErrNoLedger)
		_, err = client.ResetLedger(context.Background())
		assert.ErrorIs(t, err, ErrNoLedger)
	})
}

func TestClient_IngestAndSearch(t *testing.T) {
	cfg := config.Default()
	cfg.VectorSize = 32
	client, backend := newTestClient(t, cfg)

	report, err := client.Ingest(context.Background(), writeCorpus(t))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Rows)
	assert.True(t, report.Created)
	assert.Equal(t, 3, backend.Count("movie_plots"))

	hits, err := client.Search(context.Background(), "bandits rob train", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "The Great Train Robbery", hits[0].Title)
	assert.Equal(t, "1903", hits[0].Year)
}

func TestClient_IngestCompressedSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots.csv.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(corpusCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	cfg := config.Default()
	cfg.VectorSize = 16
	client, backend := newTestClient(t, cfg)

	_, err = client.Ingest(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, backend.Count("movie_plots"))
}

func TestClient_IngestMissingSource(t *testing.T) {
	client, _ := newTestClient(t, config.Default())

	_, err := client.Ingest(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestClient_PipelineOptionsOverrideConfig(t *testing.T) {
	cfg := config.Default()
	cfg.VectorSize = 16
	client, backend := newTestClient(t, cfg)

	_, err := client.Ingest(context.Background(), writeCorpus(t), ingestion.WithCollection("override"))
	require.NoError(t, err)
	assert.Equal(t, 3, backend.Count("override"))
	assert.Zero(t, backend.Count("movie_plots"))
}

func TestClient_Ledger(t *testing.T) {
	cfg := config.Default()
	cfg.VectorSize = 16
	cfg.LedgerPath = filepath.Join(t.TempDir(), "ledger")
	cfg.Upload.Resume = true
	client, _ := newTestClient(t, cfg)
	require.NotNil(t, client.Ledger())

	report, err := client.Ingest(context.Background(), writeCorpus(t))
	require.NoError(t, err)

	checkpoints, err := client.Checkpoints(context.Background())
	require.NoError(t, err)
	require.Len(t, checkpoints, 1)
	assert.Equal(t, "movie_plots", checkpoints[0].Collection)
	assert.Equal(t, report.Fingerprint, checkpoints[0].Fingerprint)
	assert.Equal(t, uint64(3), checkpoints[0].Committed)

	again, err := client.Ingest(context.Background(), writeCorpus(t))
	require.NoError(t, err)
	assert.Equal(t, 3, again.Upload.Skipped)

	removed, err := client.ResetLedger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	checkpoints, err = client.Checkpoints(context.Background())
	require.NoError(t, err)
	assert.Empty(t, checkpoints)
}

func TestClient_Close(t *testing.T) {
	cfg := config.Default()
	cfg.LedgerPath = filepath.Join(t.TempDir(), "ledger")
	client, err := NewClient(cfg, WithBackend(memory.New()), WithEmbedder(mock.NewMockEmbedder()))
	require.NoError(t, err)

	assert.NoError(t, client.Close())
}
