// Copyright 2026 Fiscus Labs
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


package reindex

import (
	"context"
	"slices"

	"github.com/fiscus/taxchat/core"
	"github.com/fiscus/taxchat/storage"
)

const (
	// DefaultBatchSize is the default number of chunks to process per batch
	DefaultBatchSize = 100
)

// ChunkIterator iterates over stored chunks in ID order, in batches.
// ID order is what makes checkpoint resume meaningful: every chunk with
// an ID at or below the checkpoint has already been processed.
type ChunkIterator struct {
	repo      storage.ChunkRepository
	batchSize int
}

// NewChunkIterator creates a new chunk iterator.
// batchSize: number of chunks per batch (must be > 0)
func NewChunkIterator(repo storage.ChunkRepository, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &ChunkIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach iterates over all chunks with IDs greater than afterID,
// calling fn for each batch. Iteration stops on the first error from fn
// or when all chunks are processed. Context cancellation is checked
// between batches.
func (it *ChunkIterator) ForEach(ctx context.Context, afterID core.ID, fn func([]*core.Chunk) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	chunks, err := it.pending(ctx, afterID)
	if err != nil {
		return err
	}

	for i := 0; i < len(chunks); i += it.batchSize {
		end := min(i+it.batchSize, len(chunks))

		if err := fn(chunks[i:end]); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	return nil
}

// pending returns the chunks past afterID, sorted by ID ascending.
func (it *ChunkIterator) pending(ctx context.Context, afterID core.ID) ([]*core.Chunk, error) {
	all, err := it.repo.GetAllChunks(ctx)
	if err != nil {
		return nil, err
	}

	chunks := make([]*core.Chunk, 0, len(all))
	for _, c := range all {
		if c.Id > afterID {
			chunks = append(chunks, c)
		}
	}

	slices.SortFunc(chunks, func(a, b *core.Chunk) int {
		switch {
		case a.Id < b.Id:
			return -1
		case a.Id > b.Id:
			return 1
		default:
			return 0
		}
	})

	return chunks, nil
}
