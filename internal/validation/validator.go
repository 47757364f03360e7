// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

// Package validation centralizes request validation for the HTTP API.
// All handler request types are validated through the shared validator
// instance so struct tags behave identically everywhere, and validator
// errors are translated into stable, client-readable messages.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the process-wide validator instance. The instance
// is built once and is safe for concurrent use.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidationError describes a single failed constraint on a request field.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the struct field that failed validation.
func (e *ValidationError) Field() string { return e.field }

// Tag returns the validator tag that failed (e.g. "required", "lte").
func (e *ValidationError) Tag() string { return e.tag }

// Param returns the tag parameter, if any (e.g. "1" for "lte=1").
func (e *ValidationError) Param() string { return e.param }

// Value returns the offending value as submitted.
func (e *ValidationError) Value() interface{} { return e.value }

// Message returns the translated, client-facing message.
func (e *ValidationError) Message() string { return e.message }

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.field, e.message)
}

// RequestValidationError aggregates every failed constraint for one request.
type RequestValidationError struct {
	errs []*ValidationError
}

// Errors returns the individual field errors in declaration order.
func (e *RequestValidationError) Errors() []*ValidationError { return e.errs }

func (e *RequestValidationError) Error() string {
	if len(e.errs) == 1 {
		return e.errs[0].Error()
	}
	parts := make([]string, len(e.errs))
	for i, fe := range e.errs {
		parts[i] = fe.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(e.errs), strings.Join(parts, "; "))
}

// APIError is the wire shape validation failures take in API responses.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ToAPIError converts the aggregate into the response envelope error.
// A single field error becomes a flat message; multiple errors carry a
// per-field details list.
func (e *RequestValidationError) ToAPIError() *APIError {
	if len(e.errs) == 1 {
		return &APIError{
			Code:    "VALIDATION_ERROR",
			Message: e.errs[0].Error(),
		}
	}
	details := make([]map[string]string, len(e.errs))
	for i, fe := range e.errs {
		details[i] = map[string]string{
			"field":   fe.Field(),
			"message": fe.Message(),
		}
	}
	return &APIError{
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("%d fields failed validation", len(e.errs)),
		Details: details,
	}
}

// ValidateStruct runs struct-tag validation on a request type and converts
// validator errors into a *RequestValidationError. A nil return means the
// request passed. Non-validation errors (e.g. passing a non-struct) are
// returned unchanged.
//
// Typical use from a handler:
//
//	var req FeedbackRequest
//	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { ... }
//	if err := validation.ValidateStruct(&req); err != nil { ... }
func ValidateStruct(s interface{}) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &RequestValidationError{errs: make([]*ValidationError, 0, len(verrs))}
	for _, fe := range verrs {
		out.errs = append(out.errs, &ValidationError{
			field:   fe.Field(),
			tag:     fe.Tag(),
			param:   fe.Param(),
			value:   fe.Value(),
			message: translateError(fe),
		})
	}
	return out
}

// errorMessageTemplates maps parameterless tags to client-facing messages.
var errorMessageTemplates = map[string]string{
	"required":           "is required",
	"uuid":               "must be a valid UUID",
	"email":              "must be a valid email address",
	"url":                "must be a valid URL",
	"bcp47_language_tag": "must be a valid BCP 47 language tag",
	"boolean":            "must be true or false",
	"numeric":            "must be numeric",
	"alphanum":           "must contain only letters and digits",
}

// errorMessageWithParam maps parameterized tags to format strings that
// receive the tag parameter.
var errorMessageWithParam = map[string]string{
	"gte":   "must be at least %s",
	"lte":   "must be at most %s",
	"gt":    "must be greater than %s",
	"lt":    "must be less than %s",
	"oneof": "must be one of: %s",
	"len":   "must have length %s",
}

func translateError(fe validator.FieldError) string {
	if msg, ok := errorMessageTemplates[fe.Tag()]; ok {
		return msg
	}
	if tmpl, ok := errorMessageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Param())
	}
	switch fe.Tag() {
	case "min", "max":
		return translateMinMax(fe)
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}

// translateMinMax phrases min/max by the field kind: length for strings,
// slices and maps, magnitude for numbers.
func translateMinMax(fe validator.FieldError) string {
	lengthy := false
	switch fe.Value().(type) {
	case string:
		lengthy = true
	}
	if !lengthy {
		switch fe.Kind().String() {
		case "slice", "map", "array":
			lengthy = true
		}
	}
	if lengthy {
		if fe.Tag() == "min" {
			return fmt.Sprintf("must have at least %s items or characters", fe.Param())
		}
		return fmt.Sprintf("must have at most %s items or characters", fe.Param())
	}
	if fe.Tag() == "min" {
		return fmt.Sprintf("must be at least %s", fe.Param())
	}
	return fmt.Sprintf("must be at most %s", fe.Param())
}
