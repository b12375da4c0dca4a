package model

import "time"

// Definition is a registered protocol's schema and metadata, keyed by
// (project, name, version) in the Protocol Registry (spec §4.3).
type Definition struct {
	ProjectID   string
	Name        string
	Version     string
	Schema      []byte // raw JSON Schema document
	Description string
	Deprecated  bool
	CreatedAt   time.Time
}

// ValidationResult is the outcome of validating a payload against a
// Definition's schema.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationErrorDetail
}

// ValidationErrorDetail names a single schema violation, in the field/reason
// shape gojsonschema reports them.
type ValidationErrorDetail struct {
	Field       string
	Description string
}
