// Package binding decodes and validates HTTP request bodies.
package binding

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	validatorV10 "github.com/go-playground/validator/v10"

	apperrors "github.com/leeforge/monitor/errors"
)

// MaxBodyBytes caps request bodies read by JSON.
const MaxBodyBytes = 1 << 20

// BindError describes one decoding or validation failure.
type BindError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e BindError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field '%s' %s", e.Type, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

type ValidationErrors []BindError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", ve[0].Error())
}

// JSON decodes the request body into v and validates it. Failures are
// configuration errors carrying the bind errors under the "errors" detail.
func JSON(r *http.Request, v any, opts ...Option) error {
	if r == nil || r.Body == nil {
		return bindFailure(BindError{Type: "bind_error", Message: "request body is empty"})
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return bindFailure(BindError{Type: "bind_error", Message: "failed to read request body: " + err.Error()})
	}
	if len(body) == 0 {
		return bindFailure(BindError{Type: "bind_error", Message: "request body is empty"})
	}
	if len(body) > MaxBodyBytes {
		return bindFailure(BindError{Type: "bind_error", Message: "request body too large"})
	}

	if err := decode(body, v, opts...); err != nil {
		return bindFailure(BindError{Type: "json_error", Message: "failed to unmarshal JSON: " + err.Error()})
	}

	if err := validator.Struct(v); err != nil {
		var validationErrors validatorV10.ValidationErrors
		if errors.As(err, &validationErrors) {
			bindErrors := make(ValidationErrors, 0, len(validationErrors))
			for _, ve := range validationErrors {
				bindErrors = append(bindErrors, BindError{
					Type:    "validation_error",
					Field:   ve.Field(),
					Message: getValidationMessage(ve),
				})
			}
			return bindFailure(bindErrors...)
		}
		return bindFailure(BindError{Type: "validation_error", Message: err.Error()})
	}
	return nil
}

func bindFailure(errs ...BindError) error {
	return apperrors.WrapWithType(ValidationErrors(errs), apperrors.ErrorTypeConfiguration, "invalid request body").
		WithDetail("errors", errs).
		WithHTTPStatus(http.StatusBadRequest)
}
