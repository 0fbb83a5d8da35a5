package domain

import "errors"

// Sentinel errors for the worker's error taxonomy. Callers branch on these
// with errors.Is/errors.As.
var (
	// ErrNotFound covers a missing row or a tenant mismatch - the gateway
	// never distinguishes the two to callers outside internal/storage.
	ErrNotFound = errors.New("not found")

	// ErrValidation covers extractor schema violations or missing
	// required fields in a payload.
	ErrValidation = errors.New("validation failed")

	// ErrUnsupported covers an unknown schema_version.
	ErrUnsupported = errors.New("unsupported schema version")

	// ErrBundle covers a malformed or incomplete model bundle.
	ErrBundle = errors.New("model bundle error")

	// ErrInference covers a library-level scoring failure or a
	// non-finite score.
	ErrInference = errors.New("inference error")

	// ErrGateway covers a database or transport failure in the
	// persistence layer.
	ErrGateway = errors.New("gateway error")

	// ErrTransient covers queue-pop errors or decode errors in the
	// poller - never terminal, always followed by a backoff.
	ErrTransient = errors.New("transient error")
)
