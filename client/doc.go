// Package client is the Go consumer of the upload API: it submits
// document batches and polls upload_progress until the job reaches a
// terminal stage, tolerating transient poll failures along the way.
package client
