package incident

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// rulesSchema describes the shape of a rules file. Semantic checks
// (known event types, known actions) live in Rule.Validate; the schema
// rejects structural mistakes with positional error messages before
// any rule is interpreted.
const rulesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["rules"],
  "properties": {
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "title", "severity", "conditions", "response_actions"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "title": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "severity": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
          "enabled": {"type": "boolean"},
          "cooldown_seconds": {"type": "integer", "minimum": 0},
          "conditions": {
            "type": "object",
            "required": ["event_types", "count_threshold"],
            "properties": {
              "event_types": {"type": "array", "items": {"type": "string"}, "minItems": 1},
              "window_seconds": {"type": "integer", "minimum": 0},
              "count_threshold": {"type": "integer", "minimum": 1},
              "same_source": {"type": "boolean"},
              "distinct_resources": {"type": "boolean"},
              "match_details": {"type": "object", "additionalProperties": {"type": "string"}}
            }
          },
          "response_actions": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "string", "enum": ["log", "alert", "lock_application", "disable_features", "emergency_shutdown"]}
          }
        }
      }
    }
  }
}`

// validateRulesSchema checks a parsed rules document against the
// embedded JSON schema.
func validateRulesSchema(doc rulesDocument) error {
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal rules for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(rulesSchema),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return fmt.Errorf("rules file failed schema validation:\n  - %s",
			strings.Join(errorMessages, "\n  - "))
	}
	return nil
}
