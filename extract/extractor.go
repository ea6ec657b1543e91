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


package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
)

// PageText holds the cleaned text of a single page.
type PageText struct {
	Page int // 1-based page number
	Text string
}

// Result is the outcome of extracting one document.
type Result struct {
	Name  string
	Pages []PageText
}

// Text returns the full document text with pages joined by blank lines.
func (r *Result) Text() string {
	parts := make([]string, len(r.Pages))
	for i, p := range r.Pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n\n")
}

// Extractor extracts cleaned per-page text from PDF documents.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates a new Extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		logger: logger.With("component", "extractor"),
	}
}

// Extract parses the PDF and returns its cleaned per-page text.
// Pages that yield no usable text are dropped; if every page is empty
// the whole extraction fails with ErrNoText.
func (e *Extractor) Extract(ctx context.Context, r io.ReaderAt, size int64, name string) (*Result, error) {
	loader := documentloaders.NewPDF(r, size)

	docs, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}

	result := &Result{Name: name}
	for i, doc := range docs {
		page := i + 1
		if p, ok := doc.Metadata["page"].(int); ok {
			page = p
		}

		cleaned := Clean(doc.PageContent)
		if cleaned == "" {
			e.logger.Debug("page yielded no text", "file", name, "page", page)
			continue
		}

		result.Pages = append(result.Pages, PageText{Page: page, Text: cleaned})
	}

	if len(result.Pages) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoText)
	}

	e.logger.Info("extracted document",
		"file", name,
		"pages", len(result.Pages),
		"chars", len(result.Text()))

	return result, nil
}
