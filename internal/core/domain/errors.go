package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent pipeline failures.
// These are distinct from infrastructure errors, which adapters wrap
// with one of the sentinels below.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// Ingestion Errors.

	// ErrUnsupportedFileType indicates no normaliser handles the file extension.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrParse indicates a corrupt or unreadable file.
	// Returned wrapped in a *ParseError that carries the cause.
	ErrParse = errors.New("parse error")

	// Index Errors.

	// ErrDimensionMismatch indicates a vector does not match the index dimension.
	// The whole batch is rejected before any state changes.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrIndexCorrupted indicates the on-disk index or side-table is malformed.
	ErrIndexCorrupted = errors.New("index corrupted")

	// ErrIndexNotTrained indicates an approximate index was used before training.
	ErrIndexNotTrained = errors.New("index not trained")

	// Backend Errors.

	// ErrEmbeddingBackendUnavailable indicates the embedding model could not be reached
	// or did not answer within its timeout.
	ErrEmbeddingBackendUnavailable = errors.New("embedding backend unavailable")

	// ErrGenerationBackendUnavailable indicates every configured generation backend failed.
	ErrGenerationBackendUnavailable = errors.New("generation backend unavailable")

	// Cache Errors.

	// ErrCacheCorrupted indicates a cache entry could not be decoded.
	// Callers treat it as a miss; it is never surfaced to users.
	ErrCacheCorrupted = errors.New("cache corrupted")

	// ErrCacheMiss indicates the key is not present in a cache store.
	ErrCacheMiss = errors.New("cache miss")
)

// ParseError reports a file that could not be parsed.
type ParseError struct {
	// Path is the file path or name that failed.
	Path string

	// Format is the detected format (pdf, docx, csv, ...).
	Format string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("parse %s (%s): %v", e.Path, e.Format, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

// Unwrap exposes both ErrParse and the cause to errors.Is.
func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

// NewParseError wraps err as a ParseError for the given path.
func NewParseError(path, format string, err error) error {
	return &ParseError{Path: path, Format: format, Err: err}
}
