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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyName indicates a document name is empty.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrNoFiles indicates an upload batch contained no files.
	ErrNoFiles = errors.New("no files provided")

	// ErrUnsupportedFormat indicates a file is not in an accepted format.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrFileTooLarge indicates a file exceeds the configured size ceiling.
	ErrFileTooLarge = errors.New("file exceeds maximum size")

	// ErrDuplicateFile indicates two files in one batch share a name and size.
	ErrDuplicateFile = errors.New("duplicate file in batch")
)
