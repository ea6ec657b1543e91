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
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/fiscus/taxchat/chat"
	"github.com/fiscus/taxchat/core"
	"github.com/fiscus/taxchat/ingest"
	"github.com/fiscus/taxchat/storage"
)

// API holds the handlers' dependencies.
type API struct {
	ingestor Ingestor
	chat     Chat
	docs     storage.DocumentRepository
	chunks   storage.ChunkRepository
	logger   *slog.Logger
}

func newAPI(ingestor Ingestor, chat Chat, docs storage.DocumentRepository, chunks storage.ChunkRepository, logger *slog.Logger) *API {
	return &API{ingestor: ingestor, chat: chat, docs: docs, chunks: chunks, logger: logger}
}

func registerRoutes(r *gin.Engine, api *API) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", api.handleHealth)
		apiGroup.GET("/status", api.handleStatus)

		apiGroup.POST("/upload_documents", api.handleUploadDocuments)
		apiGroup.GET("/upload_progress/:session_id", api.handleUploadProgress)

		apiGroup.POST("/send_message", api.handleSendMessage)
		apiGroup.POST("/reset_chat", api.handleResetChat)
	}

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "Endpoint not found")
	})
}

// uploadResult mirrors ingest.Result in the wire format the UI reads.
type uploadResult struct {
	UploadedFiles []string `json:"uploaded_files"`
	FailedFiles   []string `json:"failed_files"`
}

// uploadProgress is the data payload of upload_progress responses.
type uploadProgress struct {
	Status       string        `json:"status"`
	Percentage   int           `json:"percentage"`
	Message      string        `json:"message"`
	CurrentStage string        `json:"currentStage"`
	CurrentFile  string        `json:"currentFile"`
	Result       *uploadResult `json:"result,omitempty"`
	Error        string        `json:"error,omitempty"`
}

func progressFromSnapshot(snap ingest.Snapshot) uploadProgress {
	p := uploadProgress{
		Status:       "processing",
		Percentage:   snap.Percentage,
		Message:      snap.Message,
		CurrentStage: string(snap.Stage),
		CurrentFile:  snap.CurrentFile,
		Error:        snap.Error,
	}

	switch snap.Stage {
	case ingest.StageCompleted:
		p.Status = "completed"
	case ingest.StageError:
		p.Status = "error"
	}

	if snap.Result != nil {
		p.Result = &uploadResult{
			UploadedFiles: snap.Result.UploadedFiles,
			FailedFiles:   snap.Result.FailedFiles,
		}
	}

	return p
}

func (a *API) handleHealth(c *gin.Context) {
	respondData(c, http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) handleStatus(c *gin.Context) {
	ctx := c.Request.Context()

	docCount, err := a.docs.CountDocuments(ctx)
	if err != nil {
		a.logger.Error("error counting documents", "error", err)
		respondError(c, http.StatusInternalServerError, "unable to read corpus stats")
		return
	}

	chunkCount, err := a.chunks.CountChunks(ctx)
	if err != nil {
		a.logger.Error("error counting chunks", "error", err)
		respondError(c, http.StatusInternalServerError, "unable to read corpus stats")
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"document_count": docCount,
		"chunk_count":    chunkCount,
	})
}

func (a *API) handleUploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid multipart form")
		return
	}

	headers := form.File["files"]
	files := make([]ingest.File, 0, len(headers))
	for _, h := range headers {
		part, err := h.Open()
		if err != nil {
			respondError(c, http.StatusInternalServerError, "unable to read uploaded file")
			return
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			respondError(c, http.StatusInternalServerError, "unable to read uploaded file")
			return
		}

		files = append(files, ingest.File{
			Name: filepath.Base(h.Filename),
			Size: int64(len(data)),
			Data: data,
		})
	}

	sessionID, err := a.ingestor.Submit(c.Request.Context(), files)
	if err != nil {
		a.logger.Warn("upload rejected", "files", len(files), "error", err)
		respondError(c, uploadErrorStatus(err), err.Error())
		return
	}

	a.logger.Info("upload accepted", "session_id", sessionID, "files", len(files))
	respondData(c, http.StatusOK, gin.H{"session_id": sessionID})
}

func (a *API) handleUploadProgress(c *gin.Context) {
	snap, err := a.ingestor.Status(c.Param("session_id"))
	if err != nil {
		respondError(c, http.StatusNotFound, err.Error())
		return
	}

	respondData(c, http.StatusOK, progressFromSnapshot(snap))
}

func (a *API) handleSendMessage(c *gin.Context) {
	var payload struct {
		Message *string `json:"message"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Message == nil {
		respondError(c, http.StatusBadRequest, "Message is required")
		return
	}

	answer, err := a.chat.Answer(c.Request.Context(), *payload.Message)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			respondError(c, http.StatusBadRequest, "Message cannot be empty")
			return
		}
		a.logger.Error("error answering message", "error", err)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	respondData(c, http.StatusOK, gin.H{"response": answer})
}

func (a *API) handleResetChat(c *gin.Context) {
	a.chat.Reset()
	respondData(c, http.StatusOK, gin.H{"message": "Chat history cleared"})
}

// uploadErrorStatus maps Submit failures onto HTTP statuses: pool
// saturation is retryable (503), bad input is the caller's fault (400).
func uploadErrorStatus(err error) int {
	switch {
	case errors.Is(err, ingest.ErrManagerBusy), errors.Is(err, ingest.ErrManagerClosed):
		return http.StatusServiceUnavailable
	case isValidationError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrNoFiles) ||
		errors.Is(err, core.ErrUnsupportedFormat) ||
		errors.Is(err, core.ErrFileTooLarge) ||
		errors.Is(err, core.ErrDuplicateFile) ||
		errors.Is(err, core.ErrEmptyName)
}

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}
