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


package chunk

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/fiscus/taxchat/core"
	"github.com/fiscus/taxchat/extract"
)

const (
	// DefaultChunkSize is the maximum chunk length in characters.
	DefaultChunkSize = 300

	// DefaultChunkOverlap is the number of characters shared between
	// adjacent chunks, preserving context across chunk boundaries.
	DefaultChunkOverlap = 50
)

// defaultSeparators is the hierarchical split order: paragraphs, then
// lines, then words, then characters.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter splits extracted documents into retrieval-sized chunks.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	splitter     textsplitter.RecursiveCharacter
}

// Option configures a Splitter.
type Option func(*Splitter) error

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) error {
		if size < 1 {
			return fmt.Errorf("chunk size must be positive, got %d", size)
		}
		s.chunkSize = size
		return nil
	}
}

// WithChunkOverlap sets the overlap between adjacent chunks.
func WithChunkOverlap(overlap int) Option {
	return func(s *Splitter) error {
		if overlap < 0 {
			return fmt.Errorf("chunk overlap must be non-negative, got %d", overlap)
		}
		s.chunkOverlap = overlap
		return nil
	}
}

// NewSplitter creates a Splitter with the given options.
func NewSplitter(opts ...Option) (*Splitter, error) {
	s := &Splitter{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.chunkOverlap >= s.chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", s.chunkOverlap, s.chunkSize)
	}

	s.splitter = textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(s.chunkSize),
		textsplitter.WithChunkOverlap(s.chunkOverlap),
		textsplitter.WithSeparators(defaultSeparators),
	)

	return s, nil
}

// Split chunks the extracted document page by page, so each chunk keeps
// the page it came from. Ordinals run across the whole document.
func (s *Splitter) Split(doc *extract.Result, source string) ([]*core.Chunk, error) {
	var chunks []*core.Chunk

	ordinal := 0
	for _, page := range doc.Pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}

		parts, err := s.splitter.SplitText(page.Text)
		if err != nil {
			return nil, fmt.Errorf("splitting %s page %d: %w", source, page.Page, err)
		}

		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			chunks = append(chunks, &core.Chunk{
				Source:  source,
				Page:    page.Page,
				Ordinal: ordinal,
				Content: part,
			})
			ordinal++
		}
	}

	return chunks, nil
}
