package result

import "github.com/kailas-cloud/pastq/internal/domain/question"

// Result is one retrieved question as returned to callers.
type Result struct {
	ID       string         `json:"-"`
	Score    float64        `json:"-"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// FromDocument builds a result, dropping any embedding from the metadata.
func FromDocument(doc *question.Document, score float64) Result {
	return Result{
		ID:       doc.ID,
		Score:    score,
		Text:     doc.Text,
		Metadata: doc.PublicMetadata(),
	}
}

// FilterInfo exposes how a question was interpreted.
type FilterInfo struct {
	FilterExpression string `json:"filter_expression"`
	MetadataOnly     bool   `json:"metadata_only"`
}

// Envelope is the uniform output of a retrieval.
type Envelope struct {
	Results    []Result    `json:"results"`
	FilterInfo *FilterInfo `json:"filter_info,omitempty"`
}

// Truncate keeps at most k results. Negative k keeps none.
func (e *Envelope) Truncate(k int) {
	k = max(k, 0)
	if len(e.Results) > k {
		e.Results = e.Results[:k]
	}
}
