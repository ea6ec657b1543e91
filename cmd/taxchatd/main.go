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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/fiscus/taxchat"
	"github.com/fiscus/taxchat/ai"
	"github.com/fiscus/taxchat/ingest"
	"github.com/fiscus/taxchat/web"
)

func main() {
	// Pick up OPENAI_API_KEY and friends from a .env file if present.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:   "taxchatd",
		Usage:  "Retrieval-augmented tax document chat server",
		Before: setupLogger,
		Action: serveCommand,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"TAXCHAT_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Address to listen on",
				Value:   web.DefaultAddr,
				EnvVars: []string{"TAXCHAT_ADDR"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				Value:   "./taxchat_db",
				EnvVars: []string{"TAXCHAT_DB"},
			},
			&cli.StringFlag{
				Name:    "spool-dir",
				Usage:   "Directory for spooled upload batches (default: under the system temp dir)",
				EnvVars: []string{"TAXCHAT_SPOOL_DIR"},
			},
			&cli.StringFlag{
				Name:    "embedding-host",
				Usage:   "Embedding service host URL",
				Value:   "https://api.openai.com/v1",
				EnvVars: []string{"TAXCHAT_EMBEDDING_HOST"},
			},
			&cli.StringFlag{
				Name:    "chat-host",
				Usage:   "Chat completion service host URL",
				Value:   "https://api.openai.com/v1",
				EnvVars: []string{"TAXCHAT_CHAT_HOST"},
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name",
				Value:   "text-embedding-3-small",
				EnvVars: []string{"TAXCHAT_EMBEDDING_MODEL"},
			},
			&cli.StringFlag{
				Name:    "chat-model",
				Usage:   "Chat completion model name",
				Value:   "gpt-3.5-turbo",
				EnvVars: []string{"TAXCHAT_CHAT_MODEL"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API key for the AI services (\"none\" for local servers)",
				Value:   "none",
				EnvVars: []string{"TAXCHAT_API_KEY", "OPENAI_API_KEY"},
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Usage:   "Maximum ingestion pipelines running at once",
				Value:   ingest.DefaultConcurrency,
				EnvVars: []string{"TAXCHAT_CONCURRENCY"},
			},
			&cli.Int64Flag{
				Name:    "max-file-size",
				Usage:   "Per-file upload size limit in bytes",
				Value:   ingest.DefaultMaxFileBytes,
				EnvVars: []string{"TAXCHAT_MAX_FILE_SIZE"},
			},
			&cli.DurationFlag{
				Name:    "retention",
				Usage:   "How long finished jobs stay pollable",
				Value:   ingest.DefaultRetention,
				EnvVars: []string{"TAXCHAT_RETENTION"},
			},
			&cli.DurationFlag{
				Name:    "stale-timeout",
				Usage:   "How long a job may sit without progress before it is failed",
				Value:   ingest.DefaultStaleTimeout,
				EnvVars: []string{"TAXCHAT_STALE_TIMEOUT"},
			},
			&cli.StringSliceFlag{
				Name:    "allowed-origin",
				Usage:   "CORS origin allowed to call the API (repeatable; default allows all)",
				EnvVars: []string{"TAXCHAT_ALLOWED_ORIGINS"},
			},
		},
	}
}

func serveCommand(c *cli.Context) error {
	// Shut down cleanly on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithChatHost(c.String("chat-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithChatModel(c.String("chat-model")),
		ai.WithAPIKey(c.String("api-key")),
	)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	db, err := taxchat.NewDatabase(c.String("db"), taxchat.WithAIConfig(aiConfig))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	managerOpts := []ingest.Option{
		ingest.WithConcurrency(c.Int("concurrency")),
		ingest.WithRetention(c.Duration("retention")),
		ingest.WithStaleTimeout(c.Duration("stale-timeout")),
		ingest.WithMaxFileBytes(c.Int64("max-file-size")),
	}
	if dir := c.String("spool-dir"); dir != "" {
		managerOpts = append(managerOpts, ingest.WithSpoolDir(dir))
	}

	manager, err := db.NewIngestManager(managerOpts...)
	if err != nil {
		return fmt.Errorf("failed to create ingest manager: %w", err)
	}
	defer manager.Close()

	session, err := db.NewChatSession()
	if err != nil {
		return fmt.Errorf("failed to create chat session: %w", err)
	}

	serverOpts := []web.Option{web.WithAddr(c.String("addr"))}
	if origins := c.StringSlice("allowed-origin"); len(origins) > 0 {
		serverOpts = append(serverOpts, web.WithAllowedOrigins(origins))
	}

	srv, err := web.NewServer(manager, session, db.DocumentRepository(), db.ChunkRepository(), serverOpts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	slog.Info("taxchatd listening",
		"addr", srv.Addr(),
		"db", c.String("db"),
		"concurrency", c.Int("concurrency"),
	)

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
