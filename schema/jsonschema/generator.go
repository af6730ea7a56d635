// Package jsonschema renders a docmap schema as a JSON Schema document, one
// property per declared field.
package jsonschema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	docmap "github.com/goliatone/go-docmap"
)

// Generate builds a JSON Schema object document for s. Kind annotations
// drive property types; fields without one fall back to the shape of their
// default value, or to an unconstrained schema. Undeclared properties are
// rejected, matching how documents treat undeclared fields.
func Generate(s *docmap.Schema) (map[string]any, error) {
	if s == nil {
		return nil, fmt.Errorf("jsonschema: schema must not be nil")
	}

	properties := make(map[string]any)
	var required []string
	for _, name := range s.Fields() {
		field, _ := s.Field(name)
		property, err := propertyFor(field)
		if err != nil {
			return nil, fmt.Errorf("jsonschema: field %s: %w", name, err)
		}
		if field.HasDefault() {
			property["default"] = field.Default()
		}
		properties[name] = property
		if field.IsRequired() {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	doc := map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"title":                s.Name(),
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc, nil
}

func propertyFor(field *docmap.Field) (map[string]any, error) {
	if kind := field.Kind(); kind != "" {
		return schemaForKind(kind)
	}
	if field.HasDefault() {
		return buildSchema(reflect.ValueOf(field.Default()))
	}
	return map[string]any{}, nil
}

func schemaForKind(kind docmap.Kind) (map[string]any, error) {
	switch kind {
	case docmap.KindAny:
		return map[string]any{}, nil
	case docmap.KindString:
		return map[string]any{"type": "string"}, nil
	case docmap.KindBool:
		return map[string]any{"type": "boolean"}, nil
	case docmap.KindInt:
		return map[string]any{"type": "integer"}, nil
	case docmap.KindFloat:
		return map[string]any{"type": "number"}, nil
	case docmap.KindTime:
		return map[string]any{"type": "string", "format": "date-time"}, nil
	case docmap.KindList:
		return map[string]any{"type": "array"}, nil
	case docmap.KindMap:
		return map[string]any{"type": "object"}, nil
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}

// buildSchema infers a schema from a concrete value, used for fields that
// only declare a default.
func buildSchema(rv reflect.Value) (map[string]any, error) {
	if !rv.IsValid() {
		return map[string]any{"type": "null"}, nil
	}

	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return map[string]any{"type": "null"}, nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return map[string]any{"type": "null"}, nil
		}
		return buildSchema(rv.Elem())
	case reflect.Bool:
		return map[string]any{"type": "boolean"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return map[string]any{"type": "integer"}, nil
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}, nil
	case reflect.String:
		return map[string]any{"type": "string"}, nil
	case reflect.Struct:
		if rv.Type() == reflect.TypeOf(time.Time{}) {
			return map[string]any{
				"type":   "string",
				"format": "date-time",
			}, nil
		}
		return schemaForStruct(rv)
	case reflect.Map:
		return schemaForMap(rv)
	case reflect.Slice, reflect.Array:
		return schemaForSlice(rv)
	default:
		return map[string]any{
			"type":   "string",
			"format": fmt.Sprintf("go:%s", rv.Type().String()),
		}, nil
	}
}

func schemaForMap(rv reflect.Value) (map[string]any, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("map key type %s unsupported", rv.Type().Key())
	}

	keys := rv.MapKeys()
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, key.String())
	}
	sort.Strings(names)

	properties := make(map[string]any, len(names))
	for _, name := range names {
		child, err := buildSchema(rv.MapIndex(reflect.ValueOf(name)))
		if err != nil {
			return nil, err
		}
		properties[name] = child
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}, nil
}

func schemaForStruct(rv reflect.Value) (map[string]any, error) {
	rt := rv.Type()
	properties := map[string]any{}

	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		if tag := field.Tag.Get("json"); tag != "" {
			tagName := strings.Split(tag, ",")[0]
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		if name == "" {
			continue
		}

		child, err := buildSchema(rv.Field(i))
		if err != nil {
			return nil, err
		}
		properties[name] = child
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
	}, nil
}

func schemaForSlice(rv reflect.Value) (map[string]any, error) {
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return map[string]any{
			"type":   "string",
			"format": "byte",
		}, nil
	}

	length := rv.Len()
	var itemSchema map[string]any
	var err error
	if length > 0 {
		itemSchema, err = buildSchema(rv.Index(0))
		if err != nil {
			return nil, err
		}
	} else {
		itemSchema = map[string]any{}
	}
	return map[string]any{
		"type":  "array",
		"items": itemSchema,
	}, nil
}
