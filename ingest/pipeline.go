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


package ingest

import (
	"context"
	"fmt"
	"os"

	"github.com/fiscus/taxchat/core"
	"github.com/fiscus/taxchat/extract"
)

// embedBatchSize is how many chunk texts go to the embedder per call.
const embedBatchSize = 50

// extractedDoc carries one file's intermediate state across stages.
type extractedDoc struct {
	file   jobFile
	result *extract.Result
	chunks []*core.Chunk
}

// runPipeline drives one job through extract, chunk, embed and store.
// It runs detached from the submitting request, so its context is never
// a request context.
//
// Extraction failures are per-file: the bad file lands in FailedFiles
// and the rest of the batch proceeds. Failures in later stages fail the
// whole job, since by then the surviving files are processed as one unit.
func (m *Manager) runPipeline(jobID string) {
	ctx := context.Background()

	m.mu.RLock()
	j, ok := m.jobs[jobID]
	if !ok {
		m.mu.RUnlock()
		return
	}
	files := j.files
	m.mu.RUnlock()

	logger := m.logger.With("job", jobID)

	var docs []*extractedDoc
	failed := make([]string, 0)
	for i, f := range files {
		m.setExtractingFile(jobID, i, len(files), f.info.Name)

		res, err := m.extractFile(ctx, f)
		if err != nil {
			logger.Warn("extraction failed", "file", f.info.Name, "error", err)
			failed = append(failed, f.info.Name)
			continue
		}
		docs = append(docs, &extractedDoc{file: f, result: res})
	}

	if len(docs) == 0 {
		// Nothing survived extraction. The batch still completes; the
		// caller learns which files were unusable from the result.
		m.setCompleted(jobID, &Result{
			UploadedFiles: make([]string, 0),
			FailedFiles:   failed,
		})
		logger.Info("batch completed with no usable documents", "failed", len(failed))
		return
	}

	m.setStage(jobID, StageChunking, pctChunking, "Splitting text into chunks")
	var totalChunks int
	for _, d := range docs {
		chunks, err := m.splitter.Split(d.result, d.file.info.Name)
		if err != nil {
			m.setError(jobID, fmt.Sprintf("chunking %s: %v", d.file.info.Name, err))
			return
		}
		for _, c := range chunks {
			c.DocumentId = d.file.docID
		}
		d.chunks = chunks
		totalChunks += len(chunks)
	}

	m.setStage(jobID, StageEmbedding, pctEmbedding, "Generating embeddings")
	all := make([]*core.Chunk, 0, totalChunks)
	for _, d := range docs {
		all = append(all, d.chunks...)
	}
	for start := 0; start < len(all); start += embedBatchSize {
		end := min(start+embedBatchSize, len(all))
		batch := all[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		vectors, err := m.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			m.setError(jobID, fmt.Sprintf("embedding failed: %v", err))
			return
		}
		if len(vectors) != len(batch) {
			m.setError(jobID, fmt.Sprintf("embedding returned %d vectors for %d chunks", len(vectors), len(batch)))
			return
		}
		for i, v := range vectors {
			batch[i].Vector = v
		}

		// Long embedding runs must not look stalled to the janitor.
		m.touch(jobID)
	}

	m.setStage(jobID, StageStoring, pctStoring, "Storing documents in the database")
	uploaded := make([]string, 0, len(docs))
	for _, d := range docs {
		// Re-uploading a document replaces its chunks rather than
		// stacking duplicates next to them.
		if _, err := m.chunkRepo.DeleteChunksByDocument(ctx, d.file.docID); err != nil {
			m.setError(jobID, fmt.Sprintf("replacing chunks for %s: %v", d.file.info.Name, err))
			return
		}

		doc := &core.Document{
			Id:         d.file.docID,
			Name:       d.file.info.Name,
			StoredPath: d.file.spoolPath,
			SizeBytes:  d.file.info.Size,
			Pages:      len(d.result.Pages),
			ChunkCount: len(d.chunks),
		}
		if _, err := m.docRepo.AddDocuments(ctx, doc); err != nil {
			m.setError(jobID, fmt.Sprintf("storing %s: %v", d.file.info.Name, err))
			return
		}
		if len(d.chunks) > 0 {
			if _, err := m.chunkRepo.AddChunks(ctx, d.chunks...); err != nil {
				m.setError(jobID, fmt.Sprintf("storing chunks for %s: %v", d.file.info.Name, err))
				return
			}
		}

		uploaded = append(uploaded, d.file.info.Name)
	}

	m.setCompleted(jobID, &Result{
		UploadedFiles: uploaded,
		FailedFiles:   failed,
	})
	logger.Info("batch completed",
		"uploaded", len(uploaded),
		"failed", len(failed),
		"chunks", totalChunks)
}

// extractFile opens the spooled bytes and runs the extractor on them.
func (m *Manager) extractFile(ctx context.Context, f jobFile) (*extract.Result, error) {
	file, err := os.Open(f.spoolPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	return m.extractor.Extract(ctx, file, info.Size(), f.info.Name)
}
