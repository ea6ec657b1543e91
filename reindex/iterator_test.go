package reindex

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscus/taxchat/core"
	"github.com/fiscus/taxchat/storage"
	"github.com/fiscus/taxchat/storage/badger"
)

// seedChunkRepo stores n chunks and returns their IDs in insertion order.
func seedChunkRepo(t *testing.T, n int) (storage.ChunkRepository, []core.ID) {
	t.Helper()

	_, repo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	chunks := make([]*core.Chunk, n)
	for i := range chunks {
		chunks[i] = &core.Chunk{
			DocumentId: 1,
			Source:     "pub17.pdf",
			Page:       i + 1,
			Ordinal:    i,
			Content:    fmt.Sprintf("Itemized deduction rules, part %d.", i+1),
			Vector:     []float32{1, 0, 0},
		}
	}
	stored, err := repo.AddChunks(context.Background(), chunks...)
	require.NoError(t, err)

	ids := make([]core.ID, n)
	for i, c := range stored {
		ids[i] = c.Id
	}
	return repo, ids
}

func TestNewChunkIterator_DefaultBatchSize(t *testing.T) {
	repo, _ := seedChunkRepo(t, 0)

	for _, size := range []int{0, -5} {
		it := NewChunkIterator(repo, size)
		assert.Equal(t, DefaultBatchSize, it.batchSize)
	}

	it := NewChunkIterator(repo, 7)
	assert.Equal(t, 7, it.batchSize)
}

func TestChunkIterator_BatchSizes(t *testing.T) {
	repo, ids := seedChunkRepo(t, 5)
	it := NewChunkIterator(repo, 2)

	var batches [][]core.ID
	err := it.ForEach(context.Background(), 0, func(chunks []*core.Chunk) error {
		batch := make([]core.ID, len(chunks))
		for i, c := range chunks {
			batch[i] = c.Id
		}
		batches = append(batches, batch)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, batches, 3)
	assert.Equal(t, []core.ID{ids[0], ids[1]}, batches[0])
	assert.Equal(t, []core.ID{ids[2], ids[3]}, batches[1])
	assert.Equal(t, []core.ID{ids[4]}, batches[2])
}

// Badger returns chunk records in lexicographic key order, which is not
// numeric ID order once IDs pass 9. The iterator must deliver them sorted.
func TestChunkIterator_OrdersByID(t *testing.T) {
	repo, ids := seedChunkRepo(t, 12)
	it := NewChunkIterator(repo, 100)

	var seen []core.ID
	err := it.ForEach(context.Background(), 0, func(chunks []*core.Chunk) error {
		for _, c := range chunks {
			seen = append(seen, c.Id)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, ids, seen)
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1], seen[i])
	}
}

func TestChunkIterator_ResumesPastFrontier(t *testing.T) {
	repo, ids := seedChunkRepo(t, 5)
	it := NewChunkIterator(repo, 10)

	var seen []core.ID
	err := it.ForEach(context.Background(), ids[1], func(chunks []*core.Chunk) error {
		for _, c := range chunks {
			seen = append(seen, c.Id)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []core.ID{ids[2], ids[3], ids[4]}, seen)
}

func TestChunkIterator_FrontierPastEnd(t *testing.T) {
	repo, ids := seedChunkRepo(t, 3)
	it := NewChunkIterator(repo, 10)

	called := false
	err := it.ForEach(context.Background(), ids[2], func(chunks []*core.Chunk) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestChunkIterator_EmptyRepository(t *testing.T) {
	repo, _ := seedChunkRepo(t, 0)
	it := NewChunkIterator(repo, 10)

	err := it.ForEach(context.Background(), 0, func(chunks []*core.Chunk) error {
		t.Fatal("callback should not run for an empty repository")
		return nil
	})
	require.NoError(t, err)
}

func TestChunkIterator_StopsOnCallbackError(t *testing.T) {
	repo, _ := seedChunkRepo(t, 5)
	it := NewChunkIterator(repo, 2)

	boom := errors.New("batch rejected")
	calls := 0
	err := it.ForEach(context.Background(), 0, func(chunks []*core.Chunk) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestChunkIterator_ContextCanceledBetweenBatches(t *testing.T) {
	repo, _ := seedChunkRepo(t, 5)
	it := NewChunkIterator(repo, 2)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := it.ForEach(ctx, 0, func(chunks []*core.Chunk) error {
		calls++
		cancel()
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestChunkIterator_ContextCanceledBeforeStart(t *testing.T) {
	repo, _ := seedChunkRepo(t, 3)
	it := NewChunkIterator(repo, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := it.ForEach(ctx, 0, func(chunks []*core.Chunk) error {
		t.Fatal("callback should not run with a canceled context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
