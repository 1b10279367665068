package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument signals a malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrExtraction signals that the question could not be turned into a filter.
	ErrExtraction = errors.New("query extraction failed")
	// ErrCollectionNotFound signals a missing question collection.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrStoreConnection signals a transient document store failure.
	ErrStoreConnection = errors.New("document store unavailable")
	// ErrTimeout signals that an external call exceeded its deadline.
	ErrTimeout = errors.New("timed out")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmptyDataset signals an ingestion request without usable records.
	ErrEmptyDataset = errors.New("dataset has no records")
)

// Retrieval stages reported in RetrievalError.
const (
	StageExtract = "extract"
	StageEmbed   = "embed"
	StageStore   = "store"
)

// ExtractionError carries the reason a question could not be mapped onto the filter schema.
type ExtractionError struct {
	Reason string
	Err    error
}

// NewExtractionError creates an ExtractionError. err may be nil.
func NewExtractionError(reason string, err error) *ExtractionError {
	return &ExtractionError{Reason: reason, Err: err}
}

func (e *ExtractionError) Error() string {
	msg := ErrExtraction.Error() + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExtraction}
	}
	return []error{ErrExtraction, e.Err}
}

// TimeoutError reports which external call ran out of time.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, ErrTimeout.Error(), e.Err)
}

func (e *TimeoutError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTimeout}
	}
	return []error{ErrTimeout, e.Err}
}

// RetrievalError is the single error type leaving the retrieval tool.
// Cause is always preserved for diagnostics.
type RetrievalError struct {
	Stage string
	Err   error
}

// NewRetrievalError wraps err unless it already is a RetrievalError.
func NewRetrievalError(stage string, err error) error {
	if err == nil {
		return nil
	}
	var re *RetrievalError
	if errors.As(err, &re) {
		return err
	}
	return &RetrievalError{Stage: stage, Err: err}
}

func (e *RetrievalError) Error() string {
	return "retrieval failed at " + e.Stage + ": " + e.Err.Error()
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// IsTimeout reports whether err was caused by an exceeded deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
