// Package deepcopy clones arbitrary document values. Snapshots and stores
// rely on it to guarantee no aliasing between a live document and its
// last-synced state.
package deepcopy

import (
	"reflect"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// Value returns a deep clone of v. Unexported struct fields are left at
// their zero value.
func Value[T any](v T) T {
	clone := cloneValue(reflect.ValueOf(v))
	if !clone.IsValid() {
		var zero T
		return zero
	}
	return clone.Interface().(T)
}

// Map deep-clones a document map. A nil map stays nil.
func Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	clone := make(map[string]any, len(m))
	for key, value := range m {
		clone[key] = Any(value)
	}
	return clone
}

// Any deep-clones a value of unknown shape.
func Any(v any) any {
	if v == nil {
		return nil
	}
	clone := cloneValue(reflect.ValueOf(v))
	if !clone.IsValid() {
		return nil
	}
	return clone.Interface()
}

func cloneValue(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.New(v.Type().Elem())
		clone.Elem().Set(cloneValue(v.Elem()))
		return clone
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := cloneValue(v.Elem())
		if !elem.IsValid() {
			return reflect.Zero(v.Type())
		}
		return elem.Convert(v.Type())
	case reflect.Struct:
		// time.Time is immutable; copying it field-by-field would drop its
		// unexported wall clock.
		if v.Type() == timeType {
			return v
		}
		clone := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			field := clone.Field(i)
			if !field.CanSet() {
				continue
			}
			field.Set(cloneValue(v.Field(i)))
		}
		return clone
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			clone.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return clone
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	case reflect.Array:
		clone := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	default:
		return reflect.ValueOf(v.Interface())
	}
}
