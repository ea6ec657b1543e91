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


package core

import (
	"fmt"
	"path/filepath"
	"strings"
)

// allowedExtensions lists the document formats accepted for ingestion.
var allowedExtensions = map[string]bool{
	".pdf": true,
}

// FileInfo describes a file offered for ingestion, before any bytes are read.
type FileInfo struct {
	Name string
	Size int64
}

// IsAllowedFormat reports whether a filename carries an accepted extension.
// The check is case-insensitive.
func IsAllowedFormat(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// ValidateUploadBatch validates a batch of files offered for ingestion.
//
// Validation rules:
//   - The batch must contain at least one file
//   - Every file must carry an accepted extension
//   - No file may exceed maxBytes
//   - No two files may share both name and size
//
// The batch is rejected as a whole on the first violation; no file from a
// rejected batch enters the pipeline.
func ValidateUploadBatch(files []FileInfo, maxBytes int64) error {
	if len(files) == 0 {
		return ErrNoFiles
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if f.Name == "" {
			return fmt.Errorf("%w: file has no name", ErrEmptyName)
		}
		if !IsAllowedFormat(f.Name) {
			return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Name)
		}
		if maxBytes > 0 && f.Size > maxBytes {
			return fmt.Errorf("%w: %s (%d bytes, limit %d)", ErrFileTooLarge, f.Name, f.Size, maxBytes)
		}

		key := fmt.Sprintf("%s:%d", strings.ToLower(f.Name), f.Size)
		if seen[key] {
			return fmt.Errorf("%w: %s", ErrDuplicateFile, f.Name)
		}
		seen[key] = true
	}

	return nil
}

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Name must not be empty
//   - SizeBytes must not be negative
//
// NOT validated (populated by the pipeline):
//   - Pages and ChunkCount (known only after extraction/chunking)
//   - ID (derived from content by the storing stage)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyName)
	}

	if doc.SizeBytes < 0 {
		return fmt.Errorf("%w: negative size %d", ErrInvalidDocument, doc.SizeBytes)
	}

	return nil
}

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Content must not be empty
//   - Source must not be empty
//
// NOT validated (populated by processors):
//   - Vector (can be empty until the embedding stage runs)
//   - ID (0 is valid from database sequences)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if chunk.Source == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyName)
	}

	return nil
}
