package openai

import (
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/kailas-cloud/pastq/internal/domain/question"
)

// filterSchema renders the question filter fields as the JSON schema the
// model's response is constrained to.
func filterSchema() jsonschema.Definition {
	props := make(map[string]jsonschema.Definition, len(question.Fields))
	var required []string
	for _, s := range question.Fields {
		props[string(s.Name)] = fieldSchema(s)
		if s.Required {
			required = append(required, string(s.Name))
		}
	}
	return jsonschema.Definition{
		Type:                 jsonschema.Object,
		Properties:           props,
		Required:             required,
		AdditionalProperties: false,
	}
}

func fieldSchema(s question.Spec) jsonschema.Definition {
	switch s.Kind {
	case question.KindEnum:
		return jsonschema.Definition{Type: jsonschema.String, Enum: s.Values, Description: s.Description}
	case question.KindInt:
		return jsonschema.Definition{Type: jsonschema.Integer, Description: s.Description}
	case question.KindIntList:
		return jsonschema.Definition{
			Type:        jsonschema.Array,
			Items:       &jsonschema.Definition{Type: jsonschema.Integer},
			Description: s.Description,
		}
	case question.KindFlag:
		return jsonschema.Definition{Type: jsonschema.Boolean, Description: s.Description}
	default:
		return jsonschema.Definition{Type: jsonschema.String, Description: s.Description}
	}
}

// systemPrompt builds the extraction instruction. minBS is the earliest exam
// year held in the bank; threshold mirrors the classifier's field-count rule.
func systemPrompt(minBS, threshold int) string {
	var b strings.Builder
	b.WriteString("You convert a student's question about past exam papers into a JSON query object.\n\n")
	b.WriteString("Fields:\n")
	for _, s := range question.Fields {
		fmt.Fprintf(&b, "- %s: %s", s.Name, s.Description)
		if s.Required {
			b.WriteString(" (required)")
		}
		if len(s.Values) > 0 {
			fmt.Fprintf(&b, "; one of: %s", strings.Join(s.Values, ", "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, `
Rules:
- When the question mentions several years, collect them into a list, e.g. "2075 and 2076 BS" gives year_bs [2075, 2076].
- Never report a year before %d BS. "Before 2077" means every year from %d up to 2076.
- Omit any field the question does not state. Do not invent values.
- Put words describing what the question itself is about into question_text only when no field above captures them.
- Set metadata_only to true when the question can be answered with exact field values alone, using at most %d fields and no question_text. Otherwise set it to false.
- Keep numbers, question numbers and acronyms exactly as the user wrote them.
`, minBS, minBS, threshold)
	return b.String()
}
