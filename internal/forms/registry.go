// internal/forms/registry.go
package forms

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	apperrors "hackathon-portal/internal/common/errors"
	"hackathon-portal/internal/models"

	"github.com/lib/pq"
	"github.com/xeipuuv/gojsonschema"
)

// Registry validates form_data against the per-form JSON Schema and answers
// open/closed policy questions from the forms table. Schemas are compiled
// once at startup; policy is read per request so flipping is_open needs no
// restart.
type Registry struct {
	db      *sql.DB
	schemas map[string]*gojsonschema.Schema
}

func NewRegistry(db *sql.DB) (*Registry, error) {
	compiled := make(map[string]*gojsonschema.Schema, len(formSchemas))
	for key, raw := range formSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("compile schema for form %s: %w", key, err)
		}
		compiled[key] = schema
	}

	return &Registry{db: db, schemas: compiled}, nil
}

// Known reports whether a schema exists for formKey.
func (r *Registry) Known(formKey string) bool {
	_, ok := r.schemas[formKey]
	return ok
}

// Validate checks data against the form's schema. Returns VALIDATION_FAILED
// with field-level detail, or NOT_FOUND for an unknown form.
func (r *Registry) Validate(formKey string, data map[string]interface{}) error {
	schema, ok := r.schemas[formKey]
	if !ok {
		return apperrors.NewNotFoundError("Form")
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return apperrors.NewBadRequestError(fmt.Sprintf("form data not validatable: %v", err))
	}
	if result.Valid() {
		return nil
	}

	fields := make([]apperrors.FieldError, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		field := verr.Field()
		if field == "(root)" {
			// Required-property errors report at the root; pull the
			// property name out of the error details instead.
			if prop, ok := verr.Details()["property"].(string); ok {
				field = prop
			}
		}
		fields = append(fields, apperrors.FieldError{
			Field:   field,
			Message: verr.Description(),
		})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })

	return apperrors.NewValidationFailedError(fields)
}

// Policy loads the form's open/closed flag and allow-list.
func (r *Registry) Policy(ctx context.Context, formKey string) (*models.Form, error) {
	var form models.Form
	var allowlist pq.StringArray
	err := r.db.QueryRowContext(ctx, `
		SELECT form_key, year, is_open, allowlist_emails
		FROM forms
		WHERE form_key = $1`, formKey).
		Scan(&form.FormKey, &form.Year, &form.IsOpen, &allowlist)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("Form")
	}
	if err != nil {
		return nil, apperrors.NewUpstreamFailureError("postgres", err)
	}
	form.AllowlistEmails = allowlist

	return &form, nil
}

// IsOpenFor applies the allow-list override: a closed form still reports
// open for emails on its allow-list (early-access policy).
func IsOpenFor(form *models.Form, email string) bool {
	if form.IsOpen {
		return true
	}
	if email == "" {
		return false
	}
	for _, allowed := range form.AllowlistEmails {
		if strings.EqualFold(allowed, email) {
			return true
		}
	}
	return false
}
