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
	"time"

	"github.com/fiscus/taxchat/core"
)

// Stage names one phase of the ingestion pipeline.
type Stage string

const (
	// StageQueued means the job is accepted but not yet running.
	StageQueued Stage = "queued"
	// StageExtracting means per-file text extraction is in progress.
	StageExtracting Stage = "extracting"
	// StageChunking means extracted text is being split into chunks.
	StageChunking Stage = "chunking"
	// StageEmbedding means chunk embeddings are being generated.
	StageEmbedding Stage = "embedding"
	// StageStoring means documents and chunks are being written to storage.
	StageStoring Stage = "storing"
	// StageCompleted is the successful terminal stage.
	StageCompleted Stage = "completed"
	// StageError is the failed terminal stage.
	StageError Stage = "error"
)

// Terminal reports whether the stage is one of the two end states.
// Once a job reaches a terminal stage it never changes again.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// File is one uploaded file offered to Submit, bytes included.
type File struct {
	Name string
	Size int64
	Data []byte
}

// Result summarizes a completed job: which files made it into the
// database and which failed extraction.
type Result struct {
	UploadedFiles []string
	FailedFiles   []string
}

// jobFile tracks one file of a job through the pipeline.
type jobFile struct {
	info      core.FileInfo
	spoolPath string
	docID     core.ID // content hash of the raw bytes
}

// job is the manager-owned record of one ingestion run. All fields are
// guarded by the manager's lock; callers only ever see Snapshot copies.
type job struct {
	id        string
	files     []jobFile
	stage     Stage
	fileIndex int // index of the file being extracted, -1 outside extraction
	pct       int
	message   string
	createdAt time.Time
	updatedAt time.Time
	result    *Result
	errMsg    string
}

// Snapshot is the read-only view of a job returned by Status.
type Snapshot struct {
	ID               string
	Stage            Stage
	Percentage       int
	Message          string
	CurrentFile      string
	CurrentFileIndex int
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Result           *Result
	Error            string
}

// snapshot builds a defensive copy of the job's observable state.
func (j *job) snapshot() Snapshot {
	s := Snapshot{
		ID:               j.id,
		Stage:            j.stage,
		Percentage:       j.pct,
		Message:          j.message,
		CurrentFileIndex: -1,
		CreatedAt:        j.createdAt,
		UpdatedAt:        j.updatedAt,
		Error:            j.errMsg,
	}

	if j.stage == StageExtracting && j.fileIndex >= 0 && j.fileIndex < len(j.files) {
		s.CurrentFileIndex = j.fileIndex
		s.CurrentFile = j.files[j.fileIndex].info.Name
	}

	if j.result != nil {
		r := Result{
			UploadedFiles: append([]string(nil), j.result.UploadedFiles...),
			FailedFiles:   append([]string(nil), j.result.FailedFiles...),
		}
		s.Result = &r
	}

	return s
}
