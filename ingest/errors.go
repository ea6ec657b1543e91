package ingest

import "errors"

var (
	// ErrManagerBusy is returned by Submit when the worker pool is
	// saturated. The caller may retry once capacity frees up.
	ErrManagerBusy = errors.New("ingestion manager busy")

	// ErrJobNotFound is returned by Status for unknown or evicted job IDs.
	ErrJobNotFound = errors.New("job not found")

	// ErrManagerClosed is returned by Submit after Close has been called.
	ErrManagerClosed = errors.New("ingestion manager closed")

	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")
)
