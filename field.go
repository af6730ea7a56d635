package docmap

import (
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// Validator checks a candidate value for field and returns the value to
// store, possibly coerced. Implementations must not retain value.
type Validator func(value any, field string) (any, error)

// Field declares a single document field: the validator guarding it, whether
// it must be present before a save, and an optional default. A Field is
// immutable once declared and safe to share between schemas.
type Field struct {
	validator   Validator
	required    bool
	defaultVal  any
	defaultFunc func() any
	hasDefault  bool
	kind        Kind
}

// Kind names the shape a field stores. It annotates declarations for schema
// exporters; validation never consults it.
type Kind string

const (
	KindAny    Kind = "any"
	KindString Kind = "string"
	KindBool   Kind = "bool"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindTime   Kind = "time"
	KindList   Kind = "list"
	KindMap    Kind = "map"
)

// FieldOption configures a field declaration.
type FieldOption func(*Field)

// Required marks the field mandatory at full validation time. Construction
// does not demand it; saving does.
func Required() FieldOption {
	return func(f *Field) {
		f.required = true
	}
}

// WithDefault seeds new documents with value when the field is not supplied.
func WithDefault(value any) FieldOption {
	return func(f *Field) {
		f.defaultVal = value
		f.defaultFunc = nil
		f.hasDefault = true
	}
}

// WithDefaultFunc seeds new documents by invoking fn once per instance.
func WithDefaultFunc(fn func() any) FieldOption {
	return func(f *Field) {
		f.defaultVal = nil
		f.defaultFunc = fn
		f.hasDefault = fn != nil
	}
}

// WithKind annotates the field with the shape it stores.
func WithKind(kind Kind) FieldOption {
	return func(f *Field) {
		f.kind = kind
	}
}

// NewField declares a field backed by validator.
func NewField(validator Validator, opts ...FieldOption) *Field {
	f := &Field{validator: validator}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// IsRequired reports whether the field must be present at full validation.
func (f *Field) IsRequired() bool {
	return f != nil && f.required
}

// HasDefault reports whether the field declares a default value or provider.
func (f *Field) HasDefault() bool {
	return f != nil && f.hasDefault
}

// Kind reports the declared shape annotation, empty when none was declared.
func (f *Field) Kind() Kind {
	if f == nil {
		return ""
	}
	return f.kind
}

// Default materializes the declared default, invoking the provider when one
// was declared.
func (f *Field) Default() any {
	if f == nil || !f.hasDefault {
		return nil
	}
	if f.defaultFunc != nil {
		return f.defaultFunc()
	}
	return f.defaultVal
}

// Validate runs the declared validator against value.
func (f *Field) Validate(value any, field string) (any, error) {
	if f == nil || f.validator == nil {
		return nil, &TypeError{Field: field, Reason: "field has no validator"}
	}
	return f.validator(value, field)
}

// Any accepts every value unchanged, including nil.
func Any(value any, _ string) (any, error) {
	return value, nil
}

// String accepts string values.
func String(value any, _ string) (any, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	return nil, fmt.Errorf("expected string, got %T", value)
}

// Bool accepts boolean values.
func Bool(value any, _ string) (any, error) {
	if b, ok := value.(bool); ok {
		return b, nil
	}
	return nil, fmt.Errorf("expected bool, got %T", value)
}

// Int accepts integral values, including the float64 and json.Number shapes
// JSON decoding produces, and stores them as int64.
func Int(value any, _ string) (any, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return nil, fmt.Errorf("expected integer, got fractional %v", v)
		}
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("expected integer, got %q", string(v))
		}
		return n, nil
	}
	return nil, fmt.Errorf("expected integer, got %T", value)
}

// Float accepts numeric values and stores them as float64.
func Float(value any, _ string) (any, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("expected number, got %q", string(v))
		}
		return n, nil
	}
	return nil, fmt.Errorf("expected number, got %T", value)
}

// Time accepts time.Time values or RFC 3339 strings.
func Time(value any, _ string) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("expected RFC 3339 timestamp: %w", err)
		}
		return t, nil
	}
	return nil, fmt.Errorf("expected timestamp, got %T", value)
}

// List accepts []any values.
func List(value any, _ string) (any, error) {
	if l, ok := value.([]any); ok {
		return l, nil
	}
	return nil, fmt.Errorf("expected list, got %T", value)
}

// Map accepts map[string]any values.
func Map(value any, _ string) (any, error) {
	if m, ok := value.(map[string]any); ok {
		return m, nil
	}
	return nil, fmt.Errorf("expected map, got %T", value)
}

// RuleValidator builds a Validator from a rule expression. The expression
// sees the candidate as value together with the field name; a boolean result
// accepts or rejects, any other result replaces the stored value. The rule
// compiles on first use against the configured engine.
func RuleValidator(expr string, opts ...RuleOption) Validator {
	cfg := applyRuleOptions(opts)
	var (
		once       sync.Once
		engine     RuleEvaluator
		rule       CompiledRule
		compileErr error
	)
	return func(value any, field string) (any, error) {
		once.Do(func() {
			engine, compileErr = cfg.resolveEngine()
			if compileErr != nil {
				return
			}
			rule, compileErr = engine.Compile(expr)
		})
		if compileErr != nil {
			return nil, compileErr
		}
		ctx := cfg.contextFor(value, field, nil)
		result, err := cfg.runRule(rule, engine, expr, ctx)
		if err != nil {
			return nil, err
		}
		if outcome, ok := result.(bool); ok {
			if !outcome {
				reason := cfg.message
				if reason == "" {
					reason = fmt.Sprintf("rejected by rule %q", expr)
				}
				return nil, &ValidationError{Field: field, Reason: reason}
			}
			return value, nil
		}
		return result, nil
	}
}
