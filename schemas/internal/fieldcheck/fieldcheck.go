// Package fieldcheck runs struct-tag field validation for ledger schemas and
// turns the first failure into a client-facing rejection message.
package fieldcheck

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidField is wrapped by every field domain failure.
var ErrInvalidField = errors.New("invalid field")

// FieldError reports the first field that failed validation. Its message
// names the field by its JSON name.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("Input %s is invalid", e.Field)
}

// Unwrap returns ErrInvalidField.
func (e *FieldError) Unwrap() error {
	return ErrInvalidField
}

// New returns a validator that reports fields by their JSON names.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Check validates s and returns a *FieldError for the first failing field
// in declaration order.
func Check(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &FieldError{Field: verrs[0].Field()}
	}
	return fmt.Errorf("validating fields: %w", err)
}
