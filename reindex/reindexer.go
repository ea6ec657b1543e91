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
	"fmt"
	"io"
	"time"

	"github.com/fiscus/taxchat/ai"
	"github.com/fiscus/taxchat/core"
	"github.com/fiscus/taxchat/storage"
)

// processorType keys the reindex checkpoint in the checkpoint store.
const processorType = "reindex"

// Config holds configuration for a reindexing run.
type Config struct {
	// BatchSize is the number of chunks to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for failed embedding calls
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reindexer re-embeds every stored chunk, checkpointing after each batch
// so an interrupted run can resume.
type Reindexer struct {
	repo        storage.ChunkRepository
	checkpoints storage.CheckpointRepository
	embedder    ai.Embedder
	config      *Config
	progress    io.Writer
	processor   *BatchProcessor
	iterator    *ChunkIterator
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(
	repo storage.ChunkRepository,
	checkpoints storage.CheckpointRepository,
	embedder ai.Embedder,
	config *Config,
	progress io.Writer,
) *Reindexer {
	if config == nil {
		config = DefaultConfig()
	}

	processor := NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay)
	iterator := NewChunkIterator(repo, config.BatchSize)

	return &Reindexer{
		repo:        repo,
		checkpoints: checkpoints,
		embedder:    embedder,
		config:      config,
		progress:    progress,
		processor:   processor,
		iterator:    iterator,
	}
}

// Run executes the reindexing operation. Every chunk in the database is
// re-embedded in ID order; a checkpoint is saved after each batch, so an
// interrupted run resumes past the chunks already done. A completed run
// resets the checkpoint so the next invocation starts fresh.
func (r *Reindexer) Run(ctx context.Context) error {
	afterID, err := r.loadCheckpoint(ctx)
	if err != nil {
		return err
	}

	all, err := r.repo.GetAllChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to query chunks: %w", err)
	}

	total := len(all)
	if total == 0 {
		fmt.Fprintf(r.progress, "No chunks found in database (0 chunks)\n")
		return nil
	}

	remaining := 0
	for _, c := range all {
		if c.Id > afterID {
			remaining++
		}
	}

	if remaining == 0 {
		fmt.Fprintf(r.progress, "All %d chunks already reindexed; resetting checkpoint\n", total)
		return r.resetCheckpoint(ctx)
	}

	if remaining < total {
		fmt.Fprintf(r.progress, "Resuming from checkpoint: %d of %d chunks remaining\n",
			remaining, total)
	}
	fmt.Fprintf(r.progress, "Starting reindex of %d chunks (batch size: %d)\n",
		remaining, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, remaining, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, afterID, func(chunks []*core.Chunk) error {
		if err := r.processor.Process(ctx, chunks); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}

		// The batch is durable; move the resume frontier past it.
		last := chunks[len(chunks)-1].Id
		if err := r.saveCheckpoint(ctx, last); err != nil {
			return err
		}

		processed += len(chunks)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		return err
	}

	tracker.Finish()

	if err := r.resetCheckpoint(ctx); err != nil {
		return err
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindexing complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		processed, elapsed.Round(time.Second), float64(processed)/elapsed.Seconds())

	return nil
}

// loadCheckpoint returns the resume frontier, or zero when no prior run
// left one behind.
func (r *Reindexer) loadCheckpoint(ctx context.Context) (core.ID, error) {
	cp, err := r.checkpoints.LoadCheckpoint(ctx, processorType)
	if err != nil {
		return 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp == nil {
		return 0, nil
	}
	return cp.LastID, nil
}

func (r *Reindexer) saveCheckpoint(ctx context.Context, lastID core.ID) error {
	cp := &core.Checkpoint{
		ProcessorType: processorType,
		LastID:        lastID,
	}
	if err := r.checkpoints.SaveCheckpoint(ctx, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// resetCheckpoint rewinds the frontier to zero so the next run covers
// the whole corpus again.
func (r *Reindexer) resetCheckpoint(ctx context.Context) error {
	return r.saveCheckpoint(ctx, 0)
}
