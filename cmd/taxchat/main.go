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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/fiscus/taxchat"
	"github.com/fiscus/taxchat/ai"
	"github.com/fiscus/taxchat/ai/openai"
	"github.com/fiscus/taxchat/chat"
	"github.com/fiscus/taxchat/ingest"
	"github.com/fiscus/taxchat/reindex"
	"github.com/fiscus/taxchat/storage/badger"
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
		Name:  "taxchat",
		Usage: "Terminal tools for the tax document chat corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest PDF files or directories into the database",
				ArgsUsage: "<file|dir>...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "db",
						Aliases: []string{"d"},
						Usage:   "Path to BadgerDB database directory",
						Value:   "./taxchat_db",
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "https://api.openai.com/v1",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name",
						Value: "text-embedding-3-small",
					},
					&cli.StringFlag{
						Name:    "api-key",
						Usage:   "API key for the AI services (\"none\" for local servers)",
						Value:   "none",
						EnvVars: []string{"OPENAI_API_KEY"},
					},
					&cli.Int64Flag{
						Name:  "max-file-size",
						Usage: "Per-file size limit in bytes",
						Value: ingest.DefaultMaxFileBytes,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Ask a single question grounded in the stored documents",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags:     chatFlags(),
			},
			{
				Name:   "chat",
				Usage:  "Chat interactively over the stored documents",
				Action: chatCommand,
				Flags:  chatFlags(),
			},
			{
				Name:   "status",
				Usage:  "Show what the database holds",
				Action: statusCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "db",
						Aliases: []string{"d"},
						Usage:   "Path to BadgerDB database directory",
						Value:   "./taxchat_db",
					},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed all stored chunks with a new embedding model",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "db",
						Aliases: []string{"d"},
						Usage:   "Path to BadgerDB database directory",
						Value:   "./taxchat_db",
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "https://api.openai.com/v1",
					},
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "api-key",
						Usage:   "API key for the AI services (\"none\" for local servers)",
						Value:   "none",
						EnvVars: []string{"OPENAI_API_KEY"},
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed embedding calls",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}
}

// chatFlags lists the flags shared by the ask and chat commands.
func chatFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory",
			Value:   "./taxchat_db",
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "https://api.openai.com/v1",
		},
		&cli.StringFlag{
			Name:  "chat-host",
			Usage: "Chat completion service host URL",
			Value: "https://api.openai.com/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "text-embedding-3-small",
		},
		&cli.StringFlag{
			Name:  "chat-model",
			Usage: "Chat completion model name",
			Value: "gpt-3.5-turbo",
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "API key for the AI services (\"none\" for local servers)",
			Value:   "none",
			EnvVars: []string{"OPENAI_API_KEY"},
		},
	}
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	args := c.Args().Slice()
	if len(args) == 0 {
		return fmt.Errorf("at least one PDF file or directory is required")
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}

	// Create AI config; only the embedding side is exercised here, the
	// chat side keeps its defaults.
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
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

	manager, err := db.NewIngestManager(ingest.WithMaxFileBytes(c.Int64("max-file-size")))
	if err != nil {
		return fmt.Errorf("failed to create ingest manager: %w", err)
	}
	defer manager.Close()

	jobID, err := manager.Submit(ctx, files)
	if err != nil {
		return fmt.Errorf("submission rejected: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Ingesting %d files (job %s)\n", len(files), jobID)

	snap, err := followJob(ctx, manager, jobID, os.Stderr)
	if err != nil {
		return err
	}
	if snap.Stage == ingest.StageError {
		return fmt.Errorf("ingestion failed: %s", snap.Error)
	}

	fmt.Printf("Uploaded: %s\n", strings.Join(snap.Result.UploadedFiles, ", "))
	if len(snap.Result.FailedFiles) > 0 {
		fmt.Printf("Failed:   %s\n", strings.Join(snap.Result.FailedFiles, ", "))
	}
	return nil
}

// collectFiles expands the arguments into an upload batch. Directory
// arguments contribute their PDF entries; explicit file paths are taken
// as given.
func collectFiles(args []string) ([]ingest.File, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
				continue
			}
			paths = append(paths, filepath.Join(arg, entry.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, errors.New("no PDF files found")
	}

	files := make([]ingest.File, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, ingest.File{
			Name: filepath.Base(path),
			Size: int64(len(data)),
			Data: data,
		})
	}
	return files, nil
}

// followJob polls the job until it reaches a terminal stage, printing
// each visible transition along the way.
func followJob(ctx context.Context, manager *ingest.Manager, jobID string, w io.Writer) (ingest.Snapshot, error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var last ingest.Snapshot
	for {
		snap, err := manager.Status(jobID)
		if err != nil {
			return ingest.Snapshot{}, err
		}
		if snap.Stage != last.Stage || snap.Percentage != last.Percentage || snap.CurrentFile != last.CurrentFile {
			fmt.Fprintf(w, "[%3d%%] %-10s %s\n", snap.Percentage, snap.Stage, snap.Message)
			last = snap
		}
		if snap.Stage.Terminal() {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return ingest.Snapshot{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func askCommand(c *cli.Context) error {
	ctx := context.Background()

	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	db, session, err := openChat(c)
	if err != nil {
		return err
	}
	defer db.Close()

	answer, err := session.Answer(ctx, question)
	if err != nil {
		return fmt.Errorf("failed to answer: %w", err)
	}

	fmt.Println(answer)
	return nil
}

func chatCommand(c *cli.Context) error {
	ctx := context.Background()

	db, session, err := openChat(c)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("taxchat interactive mode. Ask about your tax documents; /help lists commands.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			session.Reset()
			fmt.Println("Chat history cleared")
			continue
		case "/history":
			printHistory(session.History())
			continue
		case "/help":
			fmt.Println("Commands: /reset clears the conversation, /history shows it, /quit exits.")
			continue
		}

		answer, err := session.Answer(ctx, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Printf("\n%s\n\n", answer)
	}
}

// openChat opens the database and builds a chat session from the
// command's AI flags.
func openChat(c *cli.Context) (*taxchat.Database, *chat.Session, error) {
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithChatHost(c.String("chat-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithChatModel(c.String("chat-model")),
		ai.WithAPIKey(c.String("api-key")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	db, err := taxchat.NewDatabase(c.String("db"), taxchat.WithAIConfig(aiConfig))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	session, err := db.NewChatSession()
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to create chat session: %w", err)
	}
	return db, session, nil
}

func printHistory(history []ai.Message) {
	if len(history) == 0 {
		fmt.Println("No conversation yet")
		return
	}
	for _, msg := range history {
		fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
	}
}

func statusCommand(c *cli.Context) error {
	ctx := context.Background()

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	docRepo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create document repository: %w", err)
	}
	defer docRepo.Close()

	chunkRepo, err := badger.NewChunkRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create chunk repository: %w", err)
	}
	defer chunkRepo.Close()

	docs, err := docRepo.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	chunkCount, err := chunkRepo.CountChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}

	fmt.Printf("Documents: %d\n", len(docs))
	fmt.Printf("Chunks:    %d\n", chunkCount)
	for _, doc := range docs {
		fmt.Printf("  %s  (%d pages, %d chunks)\n", doc.Name, doc.Pages, doc.ChunkCount)
	}
	return nil
}

func reindexCommand(c *cli.Context) error {
	ctx := context.Background()

	// Validate flags
	dbPath := c.String("db")
	if dbPath == "" {
		return fmt.Errorf("database path is required")
	}

	// Open database
	backend, err := badger.OpenBackend(dbPath, false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	repo, err := badger.NewChunkRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	defer repo.Close()

	checkpoints := badger.NewCheckpointRepository(backend)

	// Create AI config; the chat side keeps defaults, only embedding is used
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithAPIKey(c.String("api-key")),
	)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	// Create embedder
	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	// Create reindexing config
	reindexConfig := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	// Validate config
	if reindexConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reindexConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reindexConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	// Create reindexer
	reindexer := reindex.NewReindexer(repo, checkpoints, embedder, reindexConfig, os.Stderr)

	// Run reindexing
	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	if err := reindexer.Run(ctx); err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}

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
