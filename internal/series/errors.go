package series

import "errors"

// ErrInvalidRange marks a caller contract violation (start after end).
// Not retryable; the cache state is untouched.
var ErrInvalidRange = errors.New("invalid date range")

// FetchError wraps an upstream failure (network, timeout, malformed
// response). The cache performed no writes; retrying the same call is
// safe.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "upstream fetch: " + e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// StorageError wraps a local persistence failure. Fatal for the call and
// surfaced directly; the cache never falls back to stale data on it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "store " + e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }
