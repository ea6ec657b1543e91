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


package taxchat

import (
	"io"
	"log/slog"

	"github.com/fiscus/taxchat/ai"
	"github.com/fiscus/taxchat/ai/openai"
	"github.com/fiscus/taxchat/chat"
	"github.com/fiscus/taxchat/ingest"
	"github.com/fiscus/taxchat/reindex"
	"github.com/fiscus/taxchat/retrieval"
	"github.com/fiscus/taxchat/storage"
	"github.com/fiscus/taxchat/storage/badger"
)

// Database bundles the badger backend, its repositories, and the AI
// provider behind one handle, and acts as the factory for the higher
// level components that consume them.
type Database struct {
	backend        *badger.Backend
	documentRepo   storage.DocumentRepository
	chunkRepo      storage.ChunkRepository
	checkpointRepo storage.CheckpointRepository
	provider       ai.Provider
	logger         *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	provider ai.Provider
}

// WithAIConfig sets the AI service configuration used to construct the
// OpenAI-compatible provider.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithProvider supplies an already-built AI provider instead of
// constructing one from configuration.
func WithProvider(provider ai.Provider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	// Apply options
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(), // Default if not provided
	}
	for _, opt := range opts {
		opt(options)
	}
	// Open backend
	backend, err := badger.OpenBackend(filePath, false)
	if err != nil {
		return nil, err
	}

	// Create document repository
	documentRepo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	// Create chunk repository
	chunkRepo, err := badger.NewChunkRepository(backend)
	if err != nil {
		documentRepo.Close()
		backend.Close()
		return nil, err
	}

	// Create checkpoint repository
	checkpointRepo := badger.NewCheckpointRepository(backend)

	// Create AI provider with configured settings unless one was injected
	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			chunkRepo.Close()
			documentRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Database{
		backend:        backend,
		documentRepo:   documentRepo,
		chunkRepo:      chunkRepo,
		checkpointRepo: checkpointRepo,
		provider:       provider,
		logger:         slog.Default(),
	}, nil
}

func (db *Database) Close() error {
	// Close AI provider first
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	// Close repositories
	if err := db.chunkRepo.Close(); err != nil {
		db.logger.Error("error closing chunk repository", "err", err)
		return err
	}
	if err := db.documentRepo.Close(); err != nil {
		db.logger.Error("error closing document repository", "err", err)
		return err
	}

	// Close backend
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) DocumentRepository() storage.DocumentRepository {
	return db.documentRepo
}

func (db *Database) ChunkRepository() storage.ChunkRepository {
	return db.chunkRepo
}

func (db *Database) CheckpointRepository() storage.CheckpointRepository {
	return db.checkpointRepo
}

func (db *Database) Provider() ai.Provider {
	return db.provider
}

// NewIngestManager builds the asynchronous upload job manager over this
// database's repositories and provider.
func (db *Database) NewIngestManager(opts ...ingest.Option) (*ingest.Manager, error) {
	return ingest.NewManager(db.documentRepo, db.chunkRepo, db.provider, opts...)
}

// NewRetriever builds a similarity searcher over the stored chunks.
func (db *Database) NewRetriever(opts ...retrieval.Option) (*retrieval.Retriever, error) {
	return retrieval.NewRetriever(db.chunkRepo, db.provider, opts...)
}

// NewChatSession builds a retrieval-grounded chat session with a default
// retriever. Callers needing retriever options should construct one via
// NewRetriever and call chat.NewSession directly.
func (db *Database) NewChatSession(opts ...chat.Option) (*chat.Session, error) {
	retriever, err := retrieval.NewRetriever(db.chunkRepo, db.provider)
	if err != nil {
		return nil, err
	}
	return chat.NewSession(retriever, db.provider, opts...)
}

// NewReindexer builds the maintenance command that re-embeds the whole
// chunk corpus, writing progress to the given writer.
func (db *Database) NewReindexer(config *reindex.Config, progress io.Writer) *reindex.Reindexer {
	return reindex.NewReindexer(db.chunkRepo, db.checkpointRepo, db.provider.Embedder(), config, progress)
}
