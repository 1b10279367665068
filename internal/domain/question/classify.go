package question

import "github.com/kailas-cloud/pastq/internal/domain/search/mode"

// DefaultMetadataOnlyThreshold is the largest number of set fields a
// question may have and still be answered by exact filtering alone.
const DefaultMetadataOnlyThreshold = 2

// Classifier picks the retrieval mode for a filter by counting set fields.
type Classifier struct {
	threshold int
}

// NewClassifier creates a classifier. threshold <= 0 selects the default.
func NewClassifier(threshold int) Classifier {
	if threshold <= 0 {
		threshold = DefaultMetadataOnlyThreshold
	}
	return Classifier{threshold: threshold}
}

// Threshold returns the configured field-count threshold.
func (c Classifier) Threshold() int { return c.threshold }

// Classify returns mode.MetadataOnly when at most threshold fields are set
// and question_text is absent, mode.Semantic otherwise.
// The extractor's own metadata_only flag does not influence the result.
func (c Classifier) Classify(f *Filter) mode.Mode {
	if _, ok := f.Value(FieldQuestionText); ok {
		return mode.Semantic
	}
	if len(f.SetFields()) <= c.threshold {
		return mode.MetadataOnly
	}
	return mode.Semantic
}
