// Package reindex provides re-embedding of the stored chunk corpus after
// an embedding-model change.
//
// The package supports batch processing of chunks in ID order, progress
// reporting, retry with exponential backoff, vector normalization, and
// checkpoint-based resume so an interrupted run picks up where it left
// off instead of starting over.
package reindex
