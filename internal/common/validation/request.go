// Package validation checks inbound research requests against a JSON schema
// before a workflow is started.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const researchRequestSchema = `{
	"type": "object",
	"properties": {
		"message": {"type": "string", "minLength": 1, "maxLength": 4000},
		"chatId": {"type": "string", "minLength": 1},
		"sessionId": {"type": "string"},
		"conversationContext": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"role": {"type": "string", "enum": ["user", "assistant"]},
					"content": {"type": "string"}
				},
				"required": ["role", "content"]
			}
		}
	},
	"required": ["message", "chatId"],
	"additionalProperties": false
}`

var requestSchema = gojsonschema.NewStringLoader(researchRequestSchema)

// ValidateResearchRequest validates a raw request body. A nil error means the
// body may be unmarshalled into server.ResearchRequest safely.
func ValidateResearchRequest(body []byte) error {
	result, err := gojsonschema.Validate(requestSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("request schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("invalid request: %s", strings.Join(msgs, "; "))
}
