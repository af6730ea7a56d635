package docmap

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// TypeError reports a malformed schema declaration, such as a nil field
// definition or a reserved field name.
type TypeError struct {
	Schema string
	Field  string
	Reason string
}

func (e *TypeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Field == "" {
		return fmt.Sprintf("docmap: schema %s: %s", e.Schema, e.Reason)
	}
	return fmt.Sprintf("docmap: schema %s field %q: %s", e.Schema, e.Field, e.Reason)
}

// ConfigurationError reports incomplete or invalid storage configuration,
// discovered either when binding a schema or when resolving its collection.
type ConfigurationError struct {
	Schema string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("docmap: schema %s: %s", e.Schema, e.Reason)
}

// ExtraFieldError reports a value supplied for a field the schema does not
// declare.
type ExtraFieldError struct {
	Schema string
	Field  string
}

func (e *ExtraFieldError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("docmap: schema %s does not declare field %q", e.Schema, e.Field)
}

// ValidationError reports a declared field rejected by its validator, a
// required field absent at full validation, or an unsafe document key.
type ValidationError struct {
	Schema string
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var msg string
	switch {
	case e.Schema == "" && e.Field != "":
		msg = fmt.Sprintf("docmap: field %q: %s", e.Field, e.Reason)
	case e.Field == "":
		msg = fmt.Sprintf("docmap: schema %s: %s", e.Schema, e.Reason)
	default:
		msg = fmt.Sprintf("docmap: schema %s field %q: %s", e.Schema, e.Field, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UnknownFieldError reports a schema lookup for a field that does not exist.
type UnknownFieldError struct {
	Schema string
	Field  string
}

func (e *UnknownFieldError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("docmap: schema %s has no field %q", e.Schema, e.Field)
}

// wrapValidationError normalizes validator failures into *ValidationError,
// filling schema and field metadata when the validator left them blank.
func wrapValidationError(schema, field string, err error) error {
	if err == nil {
		return nil
	}

	var validErr *ValidationError
	if errors.As(err, &validErr) {
		if validErr.Schema == "" {
			validErr.Schema = schema
		}
		if validErr.Field == "" {
			validErr.Field = field
		}
		return validErr
	}

	if strings.HasPrefix(err.Error(), "docmap:") {
		return err
	}
	return &ValidationError{Schema: schema, Field: field, Reason: "invalid value", Err: err}
}

func missingRequiredError(schema string, fields []string) error {
	sort.Strings(fields)
	return &ValidationError{
		Schema: schema,
		Field:  fields[0],
		Reason: fmt.Sprintf("required field missing (missing: %s)", strings.Join(fields, ", ")),
	}
}
