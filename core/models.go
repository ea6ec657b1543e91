package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// IDFromBytes generates a deterministic ID from raw bytes.
// Documents are identified by the hash of their full contents, so
// ingesting identical bytes twice resolves to the same document.
func IDFromBytes(data []byte) ID {
	h, _ := blake2b.New(8, nil)
	h.Write(data)
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Document represents a single ingested source document.
type Document struct {
	Id         ID
	Name       string // Original filename as submitted
	StoredPath string // Location of the raw bytes on disk
	SizeBytes  int64
	Pages      int
	ChunkCount int
	InsertedAt time.Time // When the record was inserted into the database
	UpdatedAt  time.Time // When the record was last updated
}

// Chunk represents one embedded text segment of a document.
// Vector is populated by the embedding stage before storage.
type Chunk struct {
	Id         ID
	DocumentId ID
	Source     string // Filename of the originating document
	Page       int    // 1-based page the text was extracted from
	Ordinal    int    // Position of the chunk within its document
	Content    string
	Vector     []float32 // Embedding vector for semantic search
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// SimilarityMatch represents a chunk match from vector similarity search.
type SimilarityMatch struct {
	ChunkId ID
	Score   float32
}

// SearchResult represents a search result with the full chunk and relevance score.
type SearchResult struct {
	Chunk *Chunk
	Score float32
}

// Checkpoint records how far a long-running processor has progressed,
// so interrupted runs can resume rather than start over.
type Checkpoint struct {
	ProcessorType string
	LastID        ID
	UpdatedAt     time.Time
}
