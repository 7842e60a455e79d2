package validation

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Schema is a compiled JSON schema.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

func Compile(name, schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: s}, nil
}

func MustCompile(name, schemaJSON string) *Schema {
	s, err := Compile(name, schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateBytes validates a raw JSON document. Malformed JSON is reported
// as a single error on the root field.
func (s *Schema) ValidateBytes(raw []byte) *ValidationResult {
	if !json.Valid(raw) {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(root)",
			Message: "malformed JSON",
			Code:    "MALFORMED_JSON",
		}}}
	}
	return s.validate(gojsonschema.NewBytesLoader(raw))
}

// ValidateDocument validates an already decoded Go value.
func (s *Schema) ValidateDocument(doc interface{}) *ValidationResult {
	return s.validate(gojsonschema.NewGoLoader(doc))
}

func (s *Schema) validate(doc gojsonschema.JSONLoader) *ValidationResult {
	result, err := s.schema.Validate(doc)
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(root)",
			Message: err.Error(),
			Code:    "VALIDATION_ERROR",
		}}}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	return out
}

var (
	compileOnce  sync.Once
	displayRules *Schema
	playlistRule *Schema
	admission    *Schema
	display      *Schema
)

func compileBuiltins() {
	displayRules = MustCompile("display_rules", DisplayRulesSchema)
	playlistRule = MustCompile("playlist_rules", PlaylistRulesSchema)
	admission = MustCompile("admission_request", AdmissionRequestSchema)
	display = MustCompile("display_request", DisplayRequestSchema)
}

func DisplayRules() *Schema {
	compileOnce.Do(compileBuiltins)
	return displayRules
}

func PlaylistRules() *Schema {
	compileOnce.Do(compileBuiltins)
	return playlistRule
}

func AdmissionRequest() *Schema {
	compileOnce.Do(compileBuiltins)
	return admission
}

func DisplayRequest() *Schema {
	compileOnce.Do(compileBuiltins)
	return display
}
