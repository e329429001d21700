// Package validator converts ozzo-validation failures into layered errors
package validator

import (
	"errors"
	"net/http"

	"github.com/KOMKZ/go-yogan-cache/errcode"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrValidation is used when the caller supplies no module-specific error
var ErrValidation = errcode.Register(errcode.New(
	10, 1010, "common", "error.common.validation_failed", "参数校验失败", http.StatusBadRequest,
))

// Validatable is implemented by configs, rules, tasks and request bodies
type Validatable interface {
	Validate() error
}

// Validate runs v.Validate. Field errors are returned as base (or ErrValidation)
// carrying a "fields" map; other errors are wrapped with base.
func Validate(v Validatable, base *errcode.LayeredError) error {
	if base == nil {
		base = ErrValidation
	}
	err := v.Validate()
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		return ConvertValidationError(fieldErrs, base)
	}
	return base.Wrap(err)
}

// ConvertValidationError flattens ozzo field errors into base's data.
// Nested validation.Errors become dotted keys.
func ConvertValidationError(fieldErrs validation.Errors, base *errcode.LayeredError) *errcode.LayeredError {
	if base == nil {
		base = ErrValidation
	}
	fields := make(map[string]string)
	flatten("", fieldErrs, fields)
	return base.WithData("fields", fields).Wrap(fieldErrs)
}

func flatten(prefix string, errs validation.Errors, out map[string]string) {
	for field, err := range errs {
		if err == nil {
			continue
		}
		key := field
		if prefix != "" {
			key = prefix + "." + field
		}
		var nested validation.Errors
		if errors.As(err, &nested) {
			flatten(key, nested, out)
			continue
		}
		out[key] = err.Error()
	}
}
