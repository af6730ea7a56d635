// Package filter implements the equality matching shared by the provided
// document stores. Only equality clauses are understood, including dotted
// paths into nested sub-documents. Operator keys never match.
package filter

import (
	"reflect"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Match reports whether doc satisfies every clause in filter.
func Match(doc, filter map[string]any) bool {
	for key, want := range filter {
		if strings.HasPrefix(key, "$") {
			return false
		}
		got, ok := LookupPath(doc, key)
		if !ok {
			return false
		}
		if !equalValues(got, want) {
			return false
		}
	}
	return true
}

// LookupPath resolves a possibly dotted path against nested sub-documents.
func LookupPath(doc map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	current := any(doc)
	for _, segment := range segments {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// equalValues compares two values, treating numeric types by value so a
// filter built with native ints matches documents decoded from JSON.
func equalValues(got, want any) bool {
	if reflect.DeepEqual(got, want) {
		return true
	}
	gf, gok := numeric(got)
	wf, wok := numeric(want)
	return gok && wok && gf == wf
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
