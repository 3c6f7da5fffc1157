package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrEmptyResponse     = errors.New("empty response body")
	ErrInvalidURL        = errors.New("invalid URL")
	ErrNoListings        = errors.New("no listing blocks found")
	ErrOracleUnavailable = errors.New("schema oracle unavailable")
	ErrInvalidSchema     = errors.New("invalid extraction schema")
	ErrRunStopped        = errors.New("run has been stopped")
)

// FetchError wraps errors that occur during page fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError wraps errors that occur during extraction.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError wraps errors raised while reading, generating or parsing an
// extraction schema. Source is a file path or the oracle provider name.
type SchemaError struct {
	Source string
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error (%s): %v", e.Source, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur while writing output files.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the normalizer pipeline.
type PipelineError struct {
	Stage   string
	Listing *Listing
	Err     error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
