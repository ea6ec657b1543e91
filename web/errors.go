package web

import "errors"

var (
	// ErrIngestorRequired is returned when an ingestion manager is not provided.
	ErrIngestorRequired = errors.New("ingestor required")

	// ErrChatRequired is returned when a chat session is not provided.
	ErrChatRequired = errors.New("chat session required")

	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")
)
