package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscus/taxchat/ai/mock"
	"github.com/fiscus/taxchat/chat"
	"github.com/fiscus/taxchat/core"
	"github.com/fiscus/taxchat/extract"
	"github.com/fiscus/taxchat/ingest"
	"github.com/fiscus/taxchat/storage"
	"github.com/fiscus/taxchat/storage/badger"
)

// stubExtractor avoids real PDF parsing in upload tests.
type stubExtractor struct {
	failOn map[string]bool
}

func (e *stubExtractor) Extract(ctx context.Context, r io.ReaderAt, size int64, name string) (*extract.Result, error) {
	if e.failOn[name] {
		return nil, errors.New("no extractable text")
	}
	return &extract.Result{
		Name: name,
		Pages: []extract.PageText{
			{Page: 1, Text: "Form 1040 instructions: taxable income is computed after the standard deduction."},
		},
	}, nil
}

// stubChat is a canned web.Chat implementation.
type stubChat struct {
	answer  string
	err     error
	lastMsg string
	resets  int
}

func (s *stubChat) Answer(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", chat.ErrEmptyMessage
	}
	s.lastMsg = message
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func (s *stubChat) Reset() {
	s.resets++
}

// stubIngestor lets tests force Submit/Status outcomes without a pool.
type stubIngestor struct {
	sessionID string
	submitErr error
	snap      ingest.Snapshot
	statusErr error
}

func (s *stubIngestor) Submit(ctx context.Context, files []ingest.File) (string, error) {
	if s.submitErr != nil {
		return "", s.submitErr
	}
	return s.sessionID, nil
}

func (s *stubIngestor) Status(jobID string) (ingest.Snapshot, error) {
	if s.statusErr != nil {
		return ingest.Snapshot{}, s.statusErr
	}
	return s.snap, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer wires a server around a real ingestion manager and
// in-memory repositories; only extraction and chat are stubbed.
func newTestServer(t *testing.T, ext *stubExtractor) (*Server, *stubChat, storage.DocumentRepository, storage.ChunkRepository) {
	t.Helper()

	docs, chunks, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	if ext == nil {
		ext = &stubExtractor{}
	}

	manager, err := ingest.NewManager(docs, chunks, mock.NewMockProvider(),
		ingest.WithSpoolDir(t.TempDir()),
		ingest.WithExtractor(ext),
		ingest.WithLogger(testLogger()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	chatStub := &stubChat{answer: "The 2024 standard deduction for single filers is $14,600."}

	srv, err := NewServer(manager, chatStub, docs, chunks, WithLogger(testLogger()))
	require.NoError(t, err)

	return srv, chatStub, docs, chunks
}

// newStubServer wires a server around fully stubbed subsystems.
func newStubServer(t *testing.T, ingestor Ingestor, chatSvc Chat) *Server {
	t.Helper()

	docs, chunks, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	srv, err := NewServer(ingestor, chatSvc, docs, chunks, WithLogger(testLogger()))
	require.NoError(t, err)
	return srv
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func doRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return env
}

type uploadPart struct {
	name string
	data []byte
}

func multipartBody(t *testing.T, parts []uploadPart) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		fw, err := w.CreateFormFile("files", p.name)
		require.NoError(t, err)
		_, err = fw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func submitUpload(t *testing.T, srv *Server, parts []uploadPart) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, parts)
	req := httptest.NewRequest(http.MethodPost, "/api/upload_documents", body)
	req.Header.Set("Content-Type", contentType)
	return doRequest(srv, req)
}

// pollProgress polls upload_progress until the job reaches a terminal
// status.
func pollProgress(t *testing.T, srv *Server, sessionID string) uploadProgress {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/api/upload_progress/"+sessionID, nil)
		rec := doRequest(srv, req)
		require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

		env := decodeEnvelope(t, rec)
		require.True(t, env.Success)

		var p uploadProgress
		require.NoError(t, json.Unmarshal(env.Data, &p))
		if p.Status == "completed" || p.Status == "error" {
			return p
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("upload never reached a terminal status")
	return uploadProgress{}
}

func TestNewServer(t *testing.T) {
	docs, chunks, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	ingestor := &stubIngestor{sessionID: "s1"}
	chatStub := &stubChat{}

	t.Run("missing dependencies", func(t *testing.T) {
		_, err := NewServer(nil, chatStub, docs, chunks)
		assert.ErrorIs(t, err, ErrIngestorRequired)

		_, err = NewServer(ingestor, nil, docs, chunks)
		assert.ErrorIs(t, err, ErrChatRequired)

		_, err = NewServer(ingestor, chatStub, nil, chunks)
		assert.ErrorIs(t, err, ErrDocumentRepositoryRequired)

		_, err = NewServer(ingestor, chatStub, docs, nil)
		assert.ErrorIs(t, err, ErrChunkRepositoryRequired)
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := NewServer(ingestor, chatStub, docs, chunks, WithAddr(""))
		assert.Error(t, err)

		_, err = NewServer(ingestor, chatStub, docs, chunks, WithMaxUploadBytes(0))
		assert.Error(t, err)

		_, err = NewServer(ingestor, chatStub, docs, chunks, WithShutdownTimeout(0))
		assert.Error(t, err)

		_, err = NewServer(ingestor, chatStub, docs, chunks, WithLogger(nil))
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		srv, err := NewServer(ingestor, chatStub, docs, chunks)
		require.NoError(t, err)
		assert.Equal(t, DefaultAddr, srv.Addr())
		assert.Equal(t, int64(DefaultMaxUploadBytes), srv.maxUploadBytes)
		assert.Equal(t, DefaultShutdownTimeout, srv.shutdownTimeout)
	})
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _, _ := newTestServer(t, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, docs, chunks := newTestServer(t, nil)
	ctx := context.Background()

	_, err := docs.AddDocuments(ctx, &core.Document{Name: "pub501.pdf", SizeBytes: 2048})
	require.NoError(t, err)
	_, err = chunks.AddChunks(ctx,
		&core.Chunk{DocumentId: 1, Source: "pub501.pdf", Page: 1, Content: "Filing status rules."},
		&core.Chunk{DocumentId: 1, Source: "pub501.pdf", Page: 2, Content: "Dependency tests."},
	)
	require.NoError(t, err)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)

	var stats struct {
		DocumentCount int `json:"document_count"`
		ChunkCount    int `json:"chunk_count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.DocumentCount)
	assert.Equal(t, 2, stats.ChunkCount)
}

func TestUploadDocuments(t *testing.T) {
	srv, _, _, chunks := newTestServer(t, nil)

	rec := submitUpload(t, srv, []uploadPart{
		{name: "form1.pdf", data: []byte("%PDF-1.4 fake form")},
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)

	var accepted struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &accepted))
	require.NotEmpty(t, accepted.SessionID)

	final := pollProgress(t, srv, accepted.SessionID)
	assert.Equal(t, "completed", final.Status)
	assert.Equal(t, 100, final.Percentage)
	assert.Equal(t, "completed", final.CurrentStage)
	require.NotNil(t, final.Result)
	assert.Equal(t, []string{"form1.pdf"}, final.Result.UploadedFiles)
	assert.Empty(t, final.Result.FailedFiles)
	assert.Empty(t, final.Error)

	count, err := chunks.CountChunks(context.Background())
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestUploadDocuments_MixedBatch(t *testing.T) {
	ext := &stubExtractor{failOn: map[string]bool{"scanned.pdf": true}}
	srv, _, _, _ := newTestServer(t, ext)

	rec := submitUpload(t, srv, []uploadPart{
		{name: "form1.pdf", data: []byte("%PDF-1.4 ok")},
		{name: "scanned.pdf", data: []byte("%PDF-1.4 image only")},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var accepted struct {
		SessionID string `json:"session_id"`
	}
	env := decodeEnvelope(t, rec)
	require.NoError(t, json.Unmarshal(env.Data, &accepted))

	final := pollProgress(t, srv, accepted.SessionID)
	assert.Equal(t, "completed", final.Status)
	require.NotNil(t, final.Result)
	assert.Equal(t, []string{"form1.pdf"}, final.Result.UploadedFiles)
	assert.Equal(t, []string{"scanned.pdf"}, final.Result.FailedFiles)
}

func TestUploadDocuments_Validation(t *testing.T) {
	srv, _, _, _ := newTestServer(t, nil)

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/upload_documents", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		rec := doRequest(srv, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.False(t, env.Success)
		assert.Equal(t, "invalid multipart form", env.Error)
	})

	t.Run("no files", func(t *testing.T) {
		rec := submitUpload(t, srv, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.False(t, env.Success)
		assert.Contains(t, env.Error, "no files")
	})

	t.Run("unsupported format", func(t *testing.T) {
		rec := submitUpload(t, srv, []uploadPart{
			{name: "notes.txt", data: []byte("plain text")},
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.Contains(t, env.Error, "unsupported file format")
	})

	t.Run("duplicate files", func(t *testing.T) {
		data := []byte("%PDF-1.4 same bytes")
		rec := submitUpload(t, srv, []uploadPart{
			{name: "w2.pdf", data: data},
			{name: "w2.pdf", data: data},
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.Contains(t, env.Error, "duplicate file")
	})
}

func TestUploadDocuments_ManagerBusy(t *testing.T) {
	srv := newStubServer(t, &stubIngestor{submitErr: ingest.ErrManagerBusy}, &stubChat{})

	rec := submitUpload(t, srv, []uploadPart{
		{name: "form1.pdf", data: []byte("%PDF-1.4")},
	})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "busy")
}

func TestUploadProgress_UnknownSession(t *testing.T) {
	srv, _, _, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/upload_progress/not-a-session", nil)
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "not found")
}

func TestSendMessage(t *testing.T) {
	srv, chatStub, _, _ := newTestServer(t, nil)

	body := strings.NewReader(`{"message": "What is the standard deduction for 2024?"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/send_message", body)
	req.Header.Set("Content-Type", "application/json")
	rec := doRequest(srv, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)

	var data struct {
		Response string `json:"response"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, chatStub.answer, data.Response)
	assert.Equal(t, "What is the standard deduction for 2024?", chatStub.lastMsg)
}

func TestSendMessage_Validation(t *testing.T) {
	srv, _, _, _ := newTestServer(t, nil)

	cases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"no body", "", "Message is required"},
		{"missing field", `{}`, "Message is required"},
		{"malformed json", `{"message"`, "Message is required"},
		{"blank message", `{"message": "   "}`, "Message cannot be empty"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/send_message", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rec := doRequest(srv, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			assert.Equal(t, tc.wantErr, env.Error)
		})
	}
}

func TestSendMessage_ProviderFailure(t *testing.T) {
	chatStub := &stubChat{err: errors.New("generating answer: model unavailable")}
	srv := newStubServer(t, &stubIngestor{sessionID: "s1"}, chatStub)

	body := strings.NewReader(`{"message": "Am I eligible for the EITC?"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/send_message", body)
	req.Header.Set("Content-Type", "application/json")
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "model unavailable")
}

func TestResetChat(t *testing.T) {
	srv, chatStub, _, _ := newTestServer(t, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodPost, "/api/reset_chat", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)
	assert.JSONEq(t, `{"message":"Chat history cleared"}`, string(env.Data))
	assert.Equal(t, 1, chatStub.resets)
}

func TestUnknownEndpoint(t *testing.T) {
	srv, _, _, _ := newTestServer(t, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "Endpoint not found", env.Error)
}

func TestProgressFromSnapshot(t *testing.T) {
	t.Run("processing", func(t *testing.T) {
		p := progressFromSnapshot(ingest.Snapshot{
			Stage:       ingest.StageExtracting,
			Percentage:  32,
			Message:     "Extracting text from w2.pdf",
			CurrentFile: "w2.pdf",
		})
		assert.Equal(t, "processing", p.Status)
		assert.Equal(t, "extracting", p.CurrentStage)
		assert.Equal(t, 32, p.Percentage)
		assert.Equal(t, "w2.pdf", p.CurrentFile)
		assert.Nil(t, p.Result)
		assert.Empty(t, p.Error)
	})

	t.Run("error", func(t *testing.T) {
		p := progressFromSnapshot(ingest.Snapshot{
			Stage:      ingest.StageError,
			Percentage: 75,
			Message:    "embedding failed",
			Error:      "embedding failed",
		})
		assert.Equal(t, "error", p.Status)
		assert.Equal(t, 75, p.Percentage)
		assert.Equal(t, "embedding failed", p.Error)
		assert.Nil(t, p.Result)
	})
}
