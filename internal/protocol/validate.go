package protocol

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/agentcomm/comm-server/internal/model"
)

// validateSchemaDocument rejects a schema document that is not itself valid
// JSON Schema (Draft-07 meta-schema), catching malformed registrations
// before they reach storage.
func validateSchemaDocument(schema []byte) error {
	if len(schema) == 0 {
		return fmt.Errorf("schema must not be empty")
	}

	loader := gojsonschema.NewBytesLoader(schema)
	meta := gojsonschema.NewReferenceLoader("http://json-schema.org/draft-07/schema#")

	result, err := gojsonschema.Validate(meta, loader)
	if err != nil {
		return fmt.Errorf("schema is not valid JSON: %w", err)
	}
	if !result.Valid() {
		return fmt.Errorf("schema does not conform to JSON Schema draft-07: %v", result.Errors())
	}
	return nil
}

// validatePayload checks payload against schema, returning a populated
// ValidationResult rather than an error for ordinary validation failures —
// only malformed input (schema or payload that isn't even JSON) is an
// error.
func validatePayload(schema, payload []byte) (*model.ValidationResult, error) {
	schemaLoader := gojsonschema.NewBytesLoader(schema)
	docLoader := gojsonschema.NewBytesLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("validate payload: %w", err)
	}

	if result.Valid() {
		return &model.ValidationResult{Valid: true}, nil
	}

	out := &model.ValidationResult{Valid: false}
	for _, e := range result.Errors() {
		out.Errors = append(out.Errors, model.ValidationErrorDetail{
			Field:       e.Field(),
			Description: e.Description(),
		})
	}
	return out, nil
}
