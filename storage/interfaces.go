package storage

import (
	"context"

	"github.com/fiscus/taxchat/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// DocumentRepository provides operations for managing document records.
type DocumentRepository interface {
	Repository
	// AddDocuments adds one or more documents to storage.
	// Document IDs are content-based (IDFromBytes of the file bytes),
	// so re-adding the same document overwrites the prior record.
	// Documents with ID=0 fall back to IDFromContent of the name.
	// Sets InsertedAt timestamp if not already set.
	// Returns the documents with timestamps populated.
	AddDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocuments retrieves multiple documents by their IDs.
	// Returns only the documents that exist (no error for missing documents).
	GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error)

	// ListDocuments retrieves all documents, ordered by name.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// DeleteDocuments removes documents by their IDs.
	// Returns ErrNotFound if any document doesn't exist.
	// Chunks belonging to the documents are not touched; callers that
	// want a full purge delete chunks through ChunkRepository first.
	DeleteDocuments(ctx context.Context, ids ...core.ID) error

	// CountDocuments returns the total number of stored documents.
	CountDocuments(ctx context.Context) (int, error)
}

// ChunkRepository provides operations for managing document chunks and
// their embedding vectors.
type ChunkRepository interface {
	Repository
	// AddChunks adds one or more chunks to storage.
	// For chunks with ID=0, generates new IDs from sequence.
	// Sets InsertedAt timestamp if not already set.
	// Maintains the document index so chunks can be found by document.
	// Returns the chunks with generated IDs and timestamps populated.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// UpdateChunks updates existing chunks.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any chunk doesn't exist.
	UpdateChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// GetChunk retrieves a single chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error)

	// GetChunks retrieves multiple chunks by their IDs.
	// Returns only the chunks that exist (no error for missing chunks).
	GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)

	// GetChunksByDocument retrieves all chunks belonging to a document,
	// ordered by ordinal.
	GetChunksByDocument(ctx context.Context, documentID core.ID) ([]*core.Chunk, error)

	// GetAllChunks retrieves every stored chunk. Intended for maintenance
	// jobs (reindexing); not a hot path.
	GetAllChunks(ctx context.Context) ([]*core.Chunk, error)

	// DeleteChunksByDocument removes all chunks belonging to a document,
	// along with their document-index entries. Returns the number of
	// chunks removed. Removing zero chunks is not an error.
	DeleteChunksByDocument(ctx context.Context, documentID core.ID) (int, error)

	// CountChunks returns the total number of stored chunks.
	CountChunks(ctx context.Context) (int, error)

	// FindSimilar finds chunks similar to the given vector.
	// Returns chunks with similarity >= minSimilarity, up to limit results.
	// Results are ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)
}

// CheckpointRepository persists progress markers for resumable
// maintenance jobs.
type CheckpointRepository interface {
	// SaveCheckpoint stores a checkpoint, replacing any previous
	// checkpoint for the same processor type.
	SaveCheckpoint(ctx context.Context, cp *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a processor type.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)
}
