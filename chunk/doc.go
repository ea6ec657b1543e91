// Package chunk splits extracted document text into overlapping,
// retrieval-sized pieces while preserving page attribution.
package chunk
