package mode

// Mode is the retrieval strategy chosen for a question.
type Mode string

const (
	// MetadataOnly answers the question with exact metadata filtering.
	MetadataOnly Mode = "metadata_only"
	// Semantic ranks by embedding similarity and then applies the filter.
	Semantic Mode = "semantic"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == MetadataOnly || m == Semantic
}
