package chi

// ErrorCode is the machine-readable error code in ErrorResponse.
type ErrorCode string

// Error codes returned by the API.
const (
	CodeBadRequest         ErrorCode = "bad_request"
	CodeValidationFailed   ErrorCode = "validation_failed"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeForbidden          ErrorCode = "forbidden"
	CodeExtractionFailed   ErrorCode = "extraction_failed"
	CodeCollectionNotFound ErrorCode = "collection_not_found"
	CodeTimeout            ErrorCode = "timeout"
	CodeStoreUnavailable   ErrorCode = "store_unavailable"
	CodeRateLimited        ErrorCode = "rate_limited"
	CodeEmbeddingProvider  ErrorCode = "embedding_provider_error"
	CodeEmptyDataset       ErrorCode = "empty_dataset"
	CodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	// Stage is the retrieval step that failed, when known.
	Stage string `json:"stage,omitempty"`
}

// RetrieveRequest is the body of POST /v1/retrieve.
// K accepts a number or a numeric string.
type RetrieveRequest struct {
	Question string `json:"question"`
	K        any    `json:"k,omitempty"`
}

// QuestionsParams are the query parameters of GET /v1/questions.
type QuestionsParams struct {
	Question string
	K        *string
}

// CollectionListResponse is the body of GET /v1/collections.
type CollectionListResponse struct {
	Items []string `json:"items"`
}

// DeleteQuestionsRequest is the body of DELETE /v1/collections/{collection}/documents.
type DeleteQuestionsRequest struct {
	IDs []string `json:"ids"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
