package repository

import "errors"

// Sentinel kinds for store errors.
//
// ErrVersionConflict is the expected, successful-no-op side of the
// idempotency and serialization story: callers re-read and retry, they do
// not back off. ErrTransient wraps throttling and timeout style failures
// that are worth retrying with backoff.
var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("entry version conflict")
	ErrTransient       = errors.New("transient store error")
)
