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


package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fiscus/taxchat/ingest"
	"github.com/fiscus/taxchat/storage"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = "127.0.0.1:5000"

	// DefaultMaxUploadBytes caps the whole multipart request body (64 MiB).
	// Per-file ceilings are enforced separately by the ingestion manager.
	DefaultMaxUploadBytes = 64 << 20

	// DefaultShutdownTimeout bounds how long in-flight requests may
	// drain after a shutdown signal.
	DefaultShutdownTimeout = 10 * time.Second
)

// Ingestor is the slice of the ingestion manager the HTTP layer consumes.
type Ingestor interface {
	Submit(ctx context.Context, files []ingest.File) (string, error)
	Status(jobID string) (ingest.Snapshot, error)
}

// Chat answers user messages and tracks conversation history.
type Chat interface {
	Answer(ctx context.Context, message string) (string, error)
	Reset()
}

// Server serves the upload and chat API over HTTP.
type Server struct {
	engine          *gin.Engine
	addr            string
	origins         []string
	maxUploadBytes  int64
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithAddr sets the listen address. Default is 127.0.0.1:5000.
func WithAddr(addr string) Option {
	return func(s *Server) error {
		if addr == "" {
			return errors.New("addr cannot be empty")
		}
		s.addr = addr
		return nil
	}
}

// WithAllowedOrigins restricts CORS to the given origins.
// Default allows every origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) error {
		s.origins = origins
		return nil
	}
}

// WithMaxUploadBytes caps the multipart request body size.
// Default is 64 MiB.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) error {
		if n <= 0 {
			return fmt.Errorf("max upload bytes must be positive, got %d", n)
		}
		s.maxUploadBytes = n
		return nil
	}
}

// WithShutdownTimeout sets the drain deadline applied during shutdown.
// Default is 10 seconds.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d <= 0 {
			return fmt.Errorf("shutdown timeout must be positive, got %v", d)
		}
		s.shutdownTimeout = d
		return nil
	}
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// NewServer builds the HTTP server around the given subsystems.
func NewServer(
	ingestor Ingestor,
	chat Chat,
	docs storage.DocumentRepository,
	chunks storage.ChunkRepository,
	opts ...Option,
) (*Server, error) {
	if ingestor == nil {
		return nil, ErrIngestorRequired
	}
	if chat == nil {
		return nil, ErrChatRequired
	}
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}

	s := &Server{
		addr:            DefaultAddr,
		maxUploadBytes:  DefaultMaxUploadBytes,
		shutdownTimeout: DefaultShutdownTimeout,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	s.logger = s.logger.With("component", "web")

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.MaxMultipartMemory = s.maxUploadBytes
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(s.logger))
	engine.Use(MaxBodySize(s.maxUploadBytes))
	engine.Use(CORS(s.origins))

	registerRoutes(engine, newAPI(ingestor, chat, docs, chunks, s.logger))

	s.engine = engine
	return s, nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Handler exposes the route tree for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is canceled or the listener fails, then drains
// in-flight requests within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("http server listening", "addr", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
