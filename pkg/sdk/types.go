package pastq

// Result is one retrieved past question.
type Result struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// FilterInfo shows how the server interpreted the question.
// Present only when the server has filter info enabled.
type FilterInfo struct {
	FilterExpression string `json:"filter_expression"`
	MetadataOnly     bool   `json:"metadata_only"`
}

// Envelope is the response of Retrieve and Questions.
type Envelope struct {
	Results    []Result    `json:"results"`
	FilterInfo *FilterInfo `json:"filter_info,omitempty"`

	// EmbeddingTokens is the token count the server reported for this call.
	EmbeddingTokens int `json:"-"`
}

// Record is one question to load. It needs a "question" string;
// every other key is kept as metadata.
type Record map[string]any

// LoadReport summarises a Load call.
type LoadReport struct {
	Collection   string `json:"collection"`
	Inserted     int    `json:"inserted"`
	GeneratedIDs int    `json:"generated_ids"`
	TotalTokens  int    `json:"total_tokens"`
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded", "error"
	Checks map[string]string `json:"checks"` // component → "ok"/"error"
}

// Healthy reports whether every component passed.
func (h HealthStatus) Healthy() bool { return h.Status == "ok" }

type retrieveRequest struct {
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
}

type collectionList struct {
	Items []string `json:"items"`
}

type deleteRequest struct {
	IDs []string `json:"ids"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage"`
}
