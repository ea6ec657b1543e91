// Package ingest provides asynchronous document-ingestion jobs with
// staged progress reporting.
//
// The Manager type accepts upload batches and processes them on a
// bounded worker pool, including:
//   - Spooling raw bytes to disk before the request handler returns
//   - Extracting, chunking and embedding document text
//   - Storing documents and chunks in the repositories
//
// Submit returns a job ID immediately; callers poll Status for the
// current stage, percentage and message. A background janitor evicts
// finished jobs after a retention window and fails jobs that stop
// making progress.
package ingest
