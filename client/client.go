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


package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultPollInterval is how often Await asks for job status.
	DefaultPollInterval = 2 * time.Second

	// DefaultMaxPollFailures is how many consecutive poll failures
	// Await tolerates before giving up.
	DefaultMaxPollFailures = 3

	// defaultHTTPTimeout bounds each individual request.
	defaultHTTPTimeout = 30 * time.Second
)

// Status values reported by the server.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Result lists which files of a completed job made it into the corpus.
type Result struct {
	UploadedFiles []string `json:"uploaded_files"`
	FailedFiles   []string `json:"failed_files"`
}

// Progress is one observed snapshot of an upload job.
type Progress struct {
	Status       string  `json:"status"`
	Percentage   int     `json:"percentage"`
	Message      string  `json:"message"`
	CurrentStage string  `json:"currentStage"`
	CurrentFile  string  `json:"currentFile"`
	Result       *Result `json:"result"`
	Error        string  `json:"error"`
}

// Terminal reports whether the snapshot is final.
func (p Progress) Terminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusError
}

// envelope is the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Client drives uploads against a running server. One upload may be in
// flight per Client at a time; concurrent independent jobs need
// separate Clients.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	pollInterval    time.Duration
	maxPollFailures int
	logger          *slog.Logger

	mu       sync.Mutex
	inFlight bool
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithPollInterval sets how often Await polls. Default is 2 seconds.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("poll interval must be positive, got %v", d)
		}
		c.pollInterval = d
		return nil
	}
}

// WithMaxPollFailures sets how many consecutive poll failures Await
// tolerates. Default is 3.
func WithMaxPollFailures(n int) Option {
	return func(c *Client) error {
		if n < 1 {
			return fmt.Errorf("max poll failures must be positive, got %d", n)
		}
		c.maxPollFailures = n
		return nil
	}
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// NewClient creates a client for the server at baseURL,
// e.g. "http://127.0.0.1:5000".
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL required")
	}

	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		httpClient:      &http.Client{Timeout: defaultHTTPTimeout},
		pollInterval:    DefaultPollInterval,
		maxPollFailures: DefaultMaxPollFailures,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	c.logger = c.logger.With("component", "client")

	return c, nil
}

// Upload submits the files at the given paths as one batch and returns
// the server-assigned session ID. While an upload is in flight this
// client refuses further ones with ErrUploadInFlight; the slot frees
// when Await returns, or immediately if submission fails.
func (c *Client) Upload(ctx context.Context, paths []string) (string, error) {
	if len(paths) == 0 {
		return "", ErrNoFiles
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return "", ErrUploadInFlight
	}
	c.inFlight = true
	c.mu.Unlock()

	sessionID, err := c.upload(ctx, paths)
	if err != nil {
		c.release()
		return "", err
	}

	c.logger.Info("upload accepted", "session_id", sessionID, "files", len(paths))
	return sessionID, nil
}

func (c *Client) upload(ctx context.Context, paths []string) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, path := range paths {
		if err := addFilePart(w, path); err != nil {
			return "", err
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload_documents", &body)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return "", err
	}

	if !env.Success {
		if resp.StatusCode == http.StatusServiceUnavailable {
			return "", fmt.Errorf("%w: %s", ErrServerBusy, env.Error)
		}
		return "", fmt.Errorf("upload rejected: %s", env.Error)
	}

	var accepted struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(env.Data, &accepted); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if accepted.SessionID == "" {
		return "", errors.New("server returned no session ID")
	}

	return accepted.SessionID, nil
}

// Progress fetches the current snapshot for one session.
func (c *Client) Progress(ctx context.Context, sessionID string) (Progress, error) {
	u := fmt.Sprintf("%s/api/upload_progress/%s", c.baseURL, url.PathEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Progress{}, fmt.Errorf("building status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Progress{}, err
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return Progress{}, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return Progress{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if !env.Success {
		return Progress{}, fmt.Errorf("status check failed: %s", env.Error)
	}

	var p Progress
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return Progress{}, fmt.Errorf("decoding status response: %w", err)
	}

	return p, nil
}

// Await polls the session until it reaches a terminal stage and returns
// the final snapshot. Transient poll failures are tolerated up to the
// configured maximum in a row; an unknown session or context
// cancellation stops the loop immediately. Await releases the client's
// upload slot when it returns.
func (c *Client) Await(ctx context.Context, sessionID string) (Progress, error) {
	defer c.release()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		p, err := c.Progress(ctx, sessionID)
		switch {
		case err == nil:
			failures = 0
			if p.Terminal() {
				c.logger.Info("upload finished", "session_id", sessionID, "status", p.Status)
				return p, nil
			}

		case errors.Is(err, ErrSessionNotFound),
			errors.Is(err, context.Canceled),
			errors.Is(err, context.DeadlineExceeded):
			return Progress{}, err

		default:
			failures++
			c.logger.Warn("status poll failed",
				"session_id", sessionID, "consecutive", failures, "error", err)
			if failures >= c.maxPollFailures {
				return Progress{}, fmt.Errorf("%d consecutive poll failures: %w", failures, err)
			}
		}

		select {
		case <-ctx.Done():
			return Progress{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// release frees the single-upload slot.
func (c *Client) release() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}

func addFilePart(w *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	part, err := w.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	return nil
}

func decodeEnvelope(resp *http.Response) (envelope, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, fmt.Errorf("reading response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, fmt.Errorf("unexpected response (status %d): %w", resp.StatusCode, err)
	}

	return env, nil
}
