package reindex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscus/taxchat/ai/mock"
	"github.com/fiscus/taxchat/core"
	"github.com/fiscus/taxchat/storage"
	"github.com/fiscus/taxchat/storage/badger"
)

// staleVector marks seeded chunks so tests can tell re-embedded ones apart.
var staleVector = []float32{9, 9, 9}

// reindexFixture wires a reindexer against in-memory repositories.
type reindexFixture struct {
	repo        storage.ChunkRepository
	checkpoints storage.CheckpointRepository
	embedder    *mock.MockEmbedder
	out         *bytes.Buffer
	ids         []core.ID
}

func newReindexFixture(t *testing.T, chunks int) *reindexFixture {
	t.Helper()

	_, repo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	seed := make([]*core.Chunk, chunks)
	for i := range seed {
		seed[i] = &core.Chunk{
			DocumentId: 1,
			Source:     "pub936.pdf",
			Page:       i + 1,
			Ordinal:    i,
			Content:    fmt.Sprintf("Mortgage interest deduction notes, part %d.", i+1),
			Vector:     append([]float32(nil), staleVector...),
		}
	}
	ids := make([]core.ID, 0, chunks)
	if chunks > 0 {
		stored, err := repo.AddChunks(context.Background(), seed...)
		require.NoError(t, err)
		for _, c := range stored {
			ids = append(ids, c.Id)
		}
	}

	return &reindexFixture{
		repo:        repo,
		checkpoints: badger.NewCheckpointRepository(backend),
		embedder:    mock.NewMockEmbedder(),
		out:         &bytes.Buffer{},
		ids:         ids,
	}
}

func (f *reindexFixture) reindexer(config *Config) *Reindexer {
	return NewReindexer(f.repo, f.checkpoints, f.embedder, config, f.out)
}

func testConfig() *Config {
	return &Config{
		BatchSize:      2,
		ReportInterval: 1,
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
	}
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestNewReindexer_NilConfigUsesDefaults(t *testing.T) {
	f := newReindexFixture(t, 0)
	r := f.reindexer(nil)
	assert.Equal(t, DefaultConfig(), r.config)
}

func TestReindexer_Run(t *testing.T) {
	f := newReindexFixture(t, 5)
	f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		vecs := make([][]float32, len(texts))
		for i := range vecs {
			vecs[i] = []float32{3, 4, 0}
		}
		return vecs, nil
	}

	err := f.reindexer(testConfig()).Run(context.Background())
	require.NoError(t, err)

	// Every stored vector is replaced and normalized to unit length.
	chunks, err := f.repo.GetAllChunks(context.Background())
	require.NoError(t, err)
	require.Len(t, chunks, 5)
	for _, c := range chunks {
		require.Len(t, c.Vector, 3)
		assert.InDelta(t, 0.6, c.Vector[0], 1e-6)
		assert.InDelta(t, 0.8, c.Vector[1], 1e-6)
		assert.InDelta(t, 1.0, vectorNorm(c.Vector), 1e-6)
	}

	// 5 chunks at batch size 2 means three embedding calls.
	assert.Equal(t, 3, f.embedder.CallCount())
	assert.Equal(t, 5, f.embedder.TotalTexts())

	// A completed run rewinds the checkpoint for the next invocation.
	cp, err := f.checkpoints.LoadCheckpoint(context.Background(), processorType)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, core.ID(0), cp.LastID)

	out := f.out.String()
	assert.Contains(t, out, "Starting reindex of 5 chunks (batch size: 2)")
	assert.Contains(t, out, "Reindexing complete. Processed 5 chunks")
}

func TestReindexer_EmptyDatabase(t *testing.T) {
	f := newReindexFixture(t, 0)

	err := f.reindexer(testConfig()).Run(context.Background())
	require.NoError(t, err)

	assert.Contains(t, f.out.String(), "No chunks found in database (0 chunks)")
	assert.Zero(t, f.embedder.CallCount())
}

func TestReindexer_ResumesFromCheckpoint(t *testing.T) {
	f := newReindexFixture(t, 5)
	require.NoError(t, f.checkpoints.SaveCheckpoint(context.Background(), &core.Checkpoint{
		ProcessorType: processorType,
		LastID:        f.ids[1],
	}))

	err := f.reindexer(testConfig()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, f.embedder.TotalTexts())
	assert.Contains(t, f.out.String(), "Resuming from checkpoint: 3 of 5 chunks remaining")

	// Chunks behind the frontier keep their old vectors.
	untouched, err := f.repo.GetChunks(context.Background(), f.ids[0], f.ids[1])
	require.NoError(t, err)
	require.Len(t, untouched, 2)
	for _, c := range untouched {
		assert.Equal(t, staleVector, c.Vector)
	}

	redone, err := f.repo.GetChunks(context.Background(), f.ids[2], f.ids[3], f.ids[4])
	require.NoError(t, err)
	require.Len(t, redone, 3)
	for _, c := range redone {
		assert.NotEqual(t, staleVector, c.Vector)
		assert.InDelta(t, 1.0, vectorNorm(c.Vector), 1e-4)
	}
}

func TestReindexer_AllChunksAlreadyDone(t *testing.T) {
	f := newReindexFixture(t, 3)
	require.NoError(t, f.checkpoints.SaveCheckpoint(context.Background(), &core.Checkpoint{
		ProcessorType: processorType,
		LastID:        f.ids[2],
	}))

	err := f.reindexer(testConfig()).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, f.embedder.CallCount())
	assert.Contains(t, f.out.String(), "All 3 chunks already reindexed; resetting checkpoint")

	cp, err := f.checkpoints.LoadCheckpoint(context.Background(), processorType)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, core.ID(0), cp.LastID)
}

func TestReindexer_EmbedderFailureSurfacesAttempts(t *testing.T) {
	f := newReindexFixture(t, 3)
	f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("rate limited")
	}

	config := testConfig()
	config.MaxRetries = 2

	err := f.reindexer(config).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate embeddings after 2 attempts")
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, 2, f.embedder.CallCount())

	// No batch completed, so no checkpoint was written.
	cp, err := f.checkpoints.LoadCheckpoint(context.Background(), processorType)
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestReindexer_ResumeAfterMidRunFailure(t *testing.T) {
	f := newReindexFixture(t, 5)

	calls := 0
	f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls >= 2 {
			return nil, errors.New("connection reset")
		}
		vecs := make([][]float32, len(texts))
		for i := range vecs {
			vecs[i] = []float32{0, 5, 0}
		}
		return vecs, nil
	}

	err := f.reindexer(testConfig()).Run(context.Background())
	require.Error(t, err)

	// The first batch was checkpointed before the failure.
	cp, err := f.checkpoints.LoadCheckpoint(context.Background(), processorType)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, f.ids[1], cp.LastID)

	// A rerun picks up where the failed run left off.
	f.embedder.EmbedTextsFunc = nil
	before := f.embedder.TotalTexts()

	err = f.reindexer(testConfig()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, f.embedder.TotalTexts()-before)
	assert.Contains(t, f.out.String(), "Resuming from checkpoint: 3 of 5 chunks remaining")

	cp, err = f.checkpoints.LoadCheckpoint(context.Background(), processorType)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, core.ID(0), cp.LastID)
}
