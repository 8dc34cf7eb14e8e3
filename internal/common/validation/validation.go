// Package validation checks match requests at the transport boundary.
package validation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	apperrors "resource-matcher/internal/common/errors"
	"resource-matcher/internal/models"
)

//go:embed match_request.schema.json
var matchRequestSchema string

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func loadSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(matchRequestSchema))
	})
	return schema, schemaErr
}

// FieldError is one schema violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateMatchRequest returns an INVALID_PROFILE error describing every
// violation, or nil.
func ValidateMatchRequest(raw []byte) error {
	s, err := loadSchema()
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("load match request schema: %w", err))
	}

	if !json.Valid(raw) {
		return apperrors.NewInvalidProfileError("request body is not valid JSON")
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return apperrors.NewInvalidProfileError(err.Error())
	}
	if result.Valid() {
		return nil
	}

	fieldErrs := make([]FieldError, 0, len(result.Errors()))
	parts := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		fieldErrs = append(fieldErrs, FieldError{Field: field, Message: desc.Description()})
		parts = append(parts, field+": "+desc.Description())
	}

	return apperrors.NewInvalidProfileError(strings.Join(parts, "; ")).
		WithMetadata("fields", fieldErrs)
}

// DecodeMatchRequest validates raw and decodes it.
func DecodeMatchRequest(raw []byte) (models.MatchRequest, error) {
	var req models.MatchRequest
	if err := ValidateMatchRequest(raw); err != nil {
		return req, err
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, apperrors.NewInvalidProfileError(err.Error())
	}
	return req, nil
}
