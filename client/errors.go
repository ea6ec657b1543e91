package client

import "errors"

var (
	// ErrUploadInFlight is returned by Upload while a previous upload
	// from this client has not reached a terminal stage.
	ErrUploadInFlight = errors.New("an upload is already in flight")

	// ErrServerBusy is returned when the server rejects an upload
	// because its ingestion pool is saturated. Retryable.
	ErrServerBusy = errors.New("server busy")

	// ErrSessionNotFound is returned when the server does not know the
	// polled session, either because the ID is wrong or the job was
	// already evicted.
	ErrSessionNotFound = errors.New("upload session not found")

	// ErrNoFiles is returned by Upload when no paths are given.
	ErrNoFiles = errors.New("no files provided")
)
