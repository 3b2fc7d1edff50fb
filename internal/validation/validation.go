// Package validation checks request payloads with struct tags and reports
// failures as field errors keyed by their JSON names.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/monocle-dev/planboard/internal/apperr"
	"github.com/monocle-dev/planboard/internal/store"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})

	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = validate.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		return store.ValidID(fl.Field().String())
	})
	_ = validate.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
}

var messages = map[string]string{
	"required": "The field '%s' is required.",
	"notblank": "The field '%s' must not be blank.",
	"email":    "The field '%s' must be a valid email address.",
	"min":      "The field '%s' must be at least %s characters long.",
	"max":      "The field '%s' must be no longer than %s characters.",
	"gte":      "The field '%s' must be greater than or equal to %s.",
	"lte":      "The field '%s' must be less than or equal to %s.",
	"oneof":    "The field '%s' must be one of: %s.",
	"objectid": "The field '%s' must be a valid id.",
	"isodate":  "The field '%s' must be an ISO 8601 date.",
	"dive":     "The field '%s' contains an invalid value.",
}

func message(field string, e validator.FieldError) string {
	msg, ok := messages[e.Tag()]
	if !ok {
		return fmt.Sprintf("The field '%s' is invalid: %s.", field, e.Tag())
	}

	switch strings.Count(msg, "%s") {
	case 2:
		param := e.Param()
		if e.Tag() == "oneof" {
			param = strings.ReplaceAll(param, " ", ", ")
		}
		return fmt.Sprintf(msg, field, param)
	default:
		return fmt.Sprintf(msg, field)
	}
}

// fieldName strips the struct name and collapses slice indexes, so
// "CreateTaskInput.members[1]" becomes "members".
func fieldName(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if i := strings.Index(ns, "["); i >= 0 {
		ns = ns[:i]
	}
	return ns
}

// Struct validates s and returns one field error per failing field, in
// declaration order. It returns nil when s is valid.
func Struct(s any) []apperr.FieldError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return []apperr.FieldError{{Field: "body", Message: err.Error()}}
	}

	seen := make(map[string]bool, len(validationErrs))
	fields := make([]apperr.FieldError, 0, len(validationErrs))

	for _, e := range validationErrs {
		name := fieldName(e)
		if seen[name] {
			continue
		}
		seen[name] = true
		fields = append(fields, apperr.FieldError{Field: name, Message: message(name, e)})
	}

	return fields
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate accepts ISO 8601 timestamps with or without a zone, and plain
// calendar dates. Values without a zone are taken as UTC.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO 8601 date: %q", value)
}
