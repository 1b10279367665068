package pastq

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/pastq/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidArgument        = domain.ErrInvalidArgument
	ErrExtraction             = domain.ErrExtraction
	ErrCollectionNotFound     = domain.ErrCollectionNotFound
	ErrStoreConnection        = domain.ErrStoreConnection
	ErrTimeout                = domain.ErrTimeout
	ErrRateLimited            = domain.ErrRateLimited
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrEmptyDataset           = domain.ErrEmptyDataset
)

// Errors raised by the API gateway rather than the domain.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// codeSentinels maps API error codes to sentinel errors.
var codeSentinels = map[string]error{
	"bad_request":              ErrInvalidArgument,
	"validation_failed":        ErrInvalidArgument,
	"unauthorized":             ErrUnauthorized,
	"forbidden":                ErrForbidden,
	"extraction_failed":        ErrExtraction,
	"collection_not_found":     ErrCollectionNotFound,
	"timeout":                  ErrTimeout,
	"store_unavailable":        ErrStoreConnection,
	"rate_limited":             ErrRateLimited,
	"embedding_provider_error": ErrEmbeddingProviderError,
	"empty_dataset":            ErrEmptyDataset,
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	// Stage is the retrieval step that failed, when the server reports one.
	Stage string
}

func (e *APIError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("pastq: %s (%d, stage %s): %s", e.Code, e.StatusCode, e.Stage, e.Message)
	}
	return fmt.Sprintf("pastq: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Is matches the sentinel error for the response code.
func (e *APIError) Is(target error) bool {
	s, ok := codeSentinels[e.Code]
	return ok && s == target
}
