package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fiscus/taxchat/ai"
	"github.com/fiscus/taxchat/core"
	"github.com/fiscus/taxchat/storage"
)

const (
	// DefaultMinSimilarity filters out chunks with low cosine similarity
	// to the query.
	DefaultMinSimilarity float32 = 0.30

	// DefaultLimit is the number of chunks retrieved per query.
	DefaultLimit = 20
)

// Retriever performs semantic search over stored document chunks.
type Retriever struct {
	chunkRepository storage.ChunkRepository
	embedder        ai.Embedder
	minSimilarity   float32
	logger          *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithMinSimilarity sets the relevance threshold below which chunks are
// dropped from results. Default is 0.30.
func WithMinSimilarity(min float32) Option {
	return func(r *Retriever) error {
		if min < 0 || min > 1 {
			return fmt.Errorf("min similarity must be within [0, 1], got %v", min)
		}
		r.minSimilarity = min
		return nil
	}
}

// NewRetriever creates a new retriever.
func NewRetriever(
	chunkRepository storage.ChunkRepository,
	provider ai.Provider,
	opts ...Option,
) (*Retriever, error) {
	if chunkRepository == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	r := &Retriever{
		chunkRepository: chunkRepository,
		embedder:        provider.Embedder(),
		minSimilarity:   DefaultMinSimilarity,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Search embeds the query and returns the most similar stored chunks,
// ranked by relevance score descending. Chunks scoring below the
// minimum similarity threshold are excluded. A limit of zero or less
// uses DefaultLimit.
func (r *Retriever) Search(ctx context.Context, query string, limit int) ([]*core.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	embedding, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		r.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	matches, err := r.chunkRepository.FindSimilar(ctx, embedding, r.minSimilarity, limit)
	if err != nil {
		r.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}

	r.logger.Debug("retrieved chunks", "query", query, "hits", len(matches))
	return matches, nil
}
