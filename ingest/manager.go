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


package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/fiscus/taxchat/ai"
	"github.com/fiscus/taxchat/chunk"
	"github.com/fiscus/taxchat/core"
	"github.com/fiscus/taxchat/extract"
	"github.com/fiscus/taxchat/storage"
)

const (
	// DefaultConcurrency is the number of pipelines that may run at once.
	DefaultConcurrency = 4

	// DefaultRetention is how long terminal jobs stay pollable before
	// the janitor evicts them.
	DefaultRetention = 10 * time.Minute

	// DefaultStaleTimeout bounds how long a non-terminal job may sit
	// without progress before it is failed.
	DefaultStaleTimeout = 15 * time.Minute

	// DefaultMaxFileBytes is the per-file size ceiling (16 MiB).
	DefaultMaxFileBytes = 16 << 20

	// janitorInterval is how often retention and staleness are enforced.
	janitorInterval = time.Minute
)

// Extractor extracts per-page text from one uploaded document.
type Extractor interface {
	Extract(ctx context.Context, r io.ReaderAt, size int64, name string) (*extract.Result, error)
}

// Splitter turns an extracted document into ordered chunks.
type Splitter interface {
	Split(doc *extract.Result, source string) ([]*core.Chunk, error)
}

// Clock supplies the current time. Swapped out in tests.
type Clock func() time.Time

// Manager owns asynchronous document-ingestion jobs. Submit registers a
// job and returns immediately; the pipeline runs on a bounded worker
// pool while callers poll Status for staged progress.
type Manager struct {
	docRepo   storage.DocumentRepository
	chunkRepo storage.ChunkRepository
	embedder  ai.Embedder
	extractor Extractor
	splitter  Splitter

	concurrency  int
	retention    time.Duration
	staleTimeout time.Duration
	spoolDir     string
	maxFileBytes int64
	clock        Clock
	logger       *slog.Logger

	mu     sync.RWMutex
	jobs   map[string]*job
	closed bool

	pool        *ants.Pool
	wg          sync.WaitGroup
	janitorStop chan struct{}
	janitorDone chan struct{}
	closeOnce   sync.Once
}

// Option configures a Manager.
type Option func(*Manager) error

// WithConcurrency sets how many pipelines may run at once.
// Default is 4.
func WithConcurrency(n int) Option {
	return func(m *Manager) error {
		if n < 1 {
			return fmt.Errorf("concurrency must be positive, got %d", n)
		}
		m.concurrency = n
		return nil
	}
}

// WithRetention sets how long terminal jobs remain pollable.
// Default is 10 minutes.
func WithRetention(d time.Duration) Option {
	return func(m *Manager) error {
		if d <= 0 {
			return fmt.Errorf("retention must be positive, got %v", d)
		}
		m.retention = d
		return nil
	}
}

// WithStaleTimeout sets how long a job may sit without progress before
// the janitor fails it. Default is 15 minutes.
func WithStaleTimeout(d time.Duration) Option {
	return func(m *Manager) error {
		if d <= 0 {
			return fmt.Errorf("stale timeout must be positive, got %v", d)
		}
		m.staleTimeout = d
		return nil
	}
}

// WithSpoolDir sets where uploaded bytes are written before processing.
// Default is a taxchat-spool directory under the OS temp dir.
func WithSpoolDir(dir string) Option {
	return func(m *Manager) error {
		if dir == "" {
			return errors.New("spool dir cannot be empty")
		}
		m.spoolDir = dir
		return nil
	}
}

// WithMaxFileBytes sets the per-file size ceiling. Default is 16 MiB.
func WithMaxFileBytes(n int64) Option {
	return func(m *Manager) error {
		if n < 1 {
			return fmt.Errorf("max file bytes must be positive, got %d", n)
		}
		m.maxFileBytes = n
		return nil
	}
}

// WithClock sets the time source. Used by tests to drive retention and
// staleness deterministically.
func WithClock(clock Clock) Option {
	return func(m *Manager) error {
		if clock == nil {
			return errors.New("clock cannot be nil")
		}
		m.clock = clock
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// WithExtractor replaces the PDF extractor.
func WithExtractor(e Extractor) Option {
	return func(m *Manager) error {
		if e == nil {
			return errors.New("extractor cannot be nil")
		}
		m.extractor = e
		return nil
	}
}

// WithSplitter replaces the chunk splitter.
func WithSplitter(s Splitter) Option {
	return func(m *Manager) error {
		if s == nil {
			return errors.New("splitter cannot be nil")
		}
		m.splitter = s
		return nil
	}
}

// NewManager creates a Manager over the given repositories and AI provider.
func NewManager(
	docRepo storage.DocumentRepository,
	chunkRepo storage.ChunkRepository,
	provider ai.Provider,
	opts ...Option,
) (*Manager, error) {
	if docRepo == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if chunkRepo == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	m := &Manager{
		docRepo:      docRepo,
		chunkRepo:    chunkRepo,
		embedder:     provider.Embedder(),
		concurrency:  DefaultConcurrency,
		retention:    DefaultRetention,
		staleTimeout: DefaultStaleTimeout,
		spoolDir:     filepath.Join(os.TempDir(), "taxchat-spool"),
		maxFileBytes: DefaultMaxFileBytes,
		clock:        time.Now,
		logger:       slog.Default(),
		jobs:         make(map[string]*job),
		janitorStop:  make(chan struct{}),
		janitorDone:  make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	m.logger = m.logger.With("component", "ingest")

	if m.extractor == nil {
		m.extractor = extract.NewExtractor(m.logger)
	}
	if m.splitter == nil {
		splitter, err := chunk.NewSplitter()
		if err != nil {
			return nil, err
		}
		m.splitter = splitter
	}

	// Non-blocking mode: a saturated pool rejects Submit instead of
	// queueing unboundedly.
	pool, err := ants.NewPool(m.concurrency, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	m.pool = pool

	go m.janitor()

	return m, nil
}

// Submit validates and spools the batch, registers a job, and hands the
// pipeline to the worker pool. It returns the new job's ID without
// waiting for processing; callers follow up with Status.
//
// Validation failures are synchronous and create no job. A saturated
// pool also creates no job and returns ErrManagerBusy.
func (m *Manager) Submit(ctx context.Context, files []File) (string, error) {
	infos := make([]core.FileInfo, len(files))
	for i, f := range files {
		infos[i] = core.FileInfo{Name: f.Name, Size: f.Size}
	}
	if err := core.ValidateUploadBatch(infos, m.maxFileBytes); err != nil {
		return "", err
	}

	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return "", ErrManagerClosed
	}

	jobID := uuid.NewString()

	// Spool the raw bytes so the pipeline never depends on the request
	// body outliving the HTTP handler.
	spoolDir := filepath.Join(m.spoolDir, jobID)
	if err := os.MkdirAll(spoolDir, 0755); err != nil {
		return "", fmt.Errorf("creating spool dir: %w", err)
	}

	jobFiles := make([]jobFile, len(files))
	for i, f := range files {
		path := filepath.Join(spoolDir, filepath.Base(f.Name))
		if err := os.WriteFile(path, f.Data, 0644); err != nil {
			os.RemoveAll(spoolDir)
			return "", fmt.Errorf("spooling %s: %w", f.Name, err)
		}
		jobFiles[i] = jobFile{
			info:      infos[i],
			spoolPath: path,
			docID:     core.IDFromBytes(f.Data),
		}
	}

	now := m.clock()
	j := &job{
		id:        jobID,
		files:     jobFiles,
		stage:     StageQueued,
		fileIndex: -1,
		pct:       pctQueued,
		message:   "Queued for processing",
		createdAt: now,
		updatedAt: now,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		os.RemoveAll(spoolDir)
		return "", ErrManagerClosed
	}
	m.jobs[jobID] = j
	// Add under the lock: Close sets closed before it waits, so any
	// submission it must wait for has already counted itself here.
	m.wg.Add(1)
	m.mu.Unlock()

	err := m.pool.Submit(func() {
		defer m.wg.Done()
		m.runPipeline(jobID)
	})
	if err != nil {
		m.wg.Done()
		m.mu.Lock()
		delete(m.jobs, jobID)
		m.mu.Unlock()
		os.RemoveAll(spoolDir)

		if errors.Is(err, ants.ErrPoolOverload) {
			m.logger.Warn("rejecting upload, pool saturated", "files", len(files))
			return "", ErrManagerBusy
		}
		return "", err
	}

	m.logger.Info("job accepted", "job", jobID, "files", len(files))
	return jobID, nil
}

// Status returns a snapshot of the job's current state.
// Unknown or evicted IDs return ErrJobNotFound.
func (m *Manager) Status(jobID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return Snapshot{}, ErrJobNotFound
	}
	return j.snapshot(), nil
}

// Close stops the janitor, waits for in-flight pipelines, and releases
// the worker pool. Submit fails with ErrManagerClosed afterwards.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()

		close(m.janitorStop)
		<-m.janitorDone

		m.wg.Wait()
		m.pool.Release()
	})
	return nil
}

// janitor enforces retention and staleness on a fixed tick until Close.
func (m *Manager) janitor() {
	defer close(m.janitorDone)

	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.janitorStop:
			return
		case <-ticker.C:
			m.sweep(m.clock())
		}
	}
}

// sweep evicts terminal jobs past retention and fails non-terminal jobs
// idle past the stale timeout.
func (m *Manager) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, j := range m.jobs {
		idle := now.Sub(j.updatedAt)

		if j.stage.Terminal() {
			if idle > m.retention {
				delete(m.jobs, id)
				m.logger.Debug("evicted terminal job", "job", id, "stage", j.stage)
			}
			continue
		}

		if idle > m.staleTimeout {
			j.stage = StageError
			j.errMsg = "processing timed out"
			j.message = "processing timed out"
			j.fileIndex = -1
			j.updatedAt = now
			m.logger.Warn("job timed out", "job", id, "idle", idle)
		}
	}
}

// update applies fn to a live job under the write lock. Terminal jobs
// are never touched, and the percentage never moves backwards.
func (m *Manager) update(jobID string, fn func(*job)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok || j.stage.Terminal() {
		return
	}

	prevPct := j.pct
	fn(j)
	if j.pct < prevPct {
		j.pct = prevPct
	}
	j.updatedAt = m.clock()
}

// setStage moves the job to a new stage with its percentage and message.
func (m *Manager) setStage(jobID string, stage Stage, pct int, message string) {
	m.update(jobID, func(j *job) {
		j.stage = stage
		j.pct = pct
		j.message = message
		if stage != StageExtracting {
			j.fileIndex = -1
		}
	})
}

// setExtractingFile marks the file currently being extracted.
func (m *Manager) setExtractingFile(jobID string, index, total int, name string) {
	m.update(jobID, func(j *job) {
		j.stage = StageExtracting
		j.fileIndex = index
		j.pct = extractionPercent(index, total)
		j.message = fmt.Sprintf("Extracting text from %s", name)
	})
}

// touch refreshes the job's updatedAt so long stages don't trip the
// stale timeout.
func (m *Manager) touch(jobID string) {
	m.update(jobID, func(j *job) {})
}

// setCompleted moves the job to its successful terminal state.
func (m *Manager) setCompleted(jobID string, result *Result) {
	m.update(jobID, func(j *job) {
		j.stage = StageCompleted
		j.pct = pctCompleted
		j.message = "Upload complete"
		j.fileIndex = -1
		j.result = result
	})
}

// setError moves the job to its failed terminal state. The percentage
// freezes at its last value.
func (m *Manager) setError(jobID string, msg string) {
	m.update(jobID, func(j *job) {
		j.stage = StageError
		j.errMsg = msg
		j.message = msg
		j.fileIndex = -1
	})
}
