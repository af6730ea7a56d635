package docmap

import (
	"strings"

	"github.com/goliatone/go-docmap/deepcopy"
)

// Path resolves a dotted path over nested maps, requiring the dot-notation
// trait. The second result reports presence.
func (d *Document) Path(path string) (any, bool, error) {
	if err := d.requireDotNotation(); err != nil {
		return nil, false, err
	}
	segments := strings.Split(path, ".")
	var current any = d.fields[segments[0]]
	if _, ok := d.fields[segments[0]]; !ok {
		return nil, false, nil
	}
	for _, segment := range segments[1:] {
		nested, ok := current.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		current, ok = nested[segment]
		if !ok {
			return nil, false, nil
		}
	}
	return current, true, nil
}

// SetPath writes value at a dotted path, creating intermediate maps as
// needed. The head segment must be a declared field; the updated top-level
// value re-runs its declared validator before the write lands, so a failed
// validation leaves the document unchanged.
func (d *Document) SetPath(path string, value any) error {
	if err := d.requireDotNotation(); err != nil {
		return err
	}
	segments, err := d.splitPath(path)
	if err != nil {
		return err
	}
	head := segments[0]
	if !d.schema.HasField(head) {
		return &ExtraFieldError{Schema: d.schema.name, Field: head}
	}
	if len(segments) == 1 {
		return d.Set(head, value)
	}

	var top map[string]any
	if existing, present := d.fields[head]; present {
		nested, ok := existing.(map[string]any)
		if !ok {
			return &ValidationError{Schema: d.schema.name, Field: head, Reason: "path segment is not a map"}
		}
		top = deepcopy.Map(nested)
	} else {
		top = map[string]any{}
	}
	current := top
	for _, segment := range segments[1 : len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			if _, present := current[segment]; present {
				return &ValidationError{Schema: d.schema.name, Field: path, Reason: "path segment is not a map"}
			}
			next = map[string]any{}
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value

	validated, err := d.schema.ValidateField(head, top)
	if err != nil {
		return err
	}
	d.fields[head] = validated
	return nil
}

// UnsetPath removes the value at a dotted path. Removing a missing path is a
// no-op; removing a single-segment path unsets the whole field.
func (d *Document) UnsetPath(path string) error {
	if err := d.requireDotNotation(); err != nil {
		return err
	}
	segments, err := d.splitPath(path)
	if err != nil {
		return err
	}
	if len(segments) == 1 {
		d.Unset(segments[0])
		return nil
	}
	current, ok := d.fields[segments[0]].(map[string]any)
	if !ok {
		return nil
	}
	for _, segment := range segments[1 : len(segments)-1] {
		current, ok = current[segment].(map[string]any)
		if !ok {
			return nil
		}
	}
	delete(current, segments[len(segments)-1])
	return nil
}

func (d *Document) requireDotNotation() error {
	if d.schema.HasTrait(DotNotation.TraitName()) {
		return nil
	}
	return &ConfigurationError{Schema: d.schema.name, Reason: "dot-notation trait not enabled"}
}

func (d *Document) splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, &ValidationError{Schema: d.schema.name, Reason: "path must not be empty"}
	}
	segments := strings.Split(path, ".")
	for _, segment := range segments {
		if segment == "" {
			return nil, &ValidationError{Schema: d.schema.name, Field: path, Reason: "path segment must not be empty"}
		}
		if strings.HasPrefix(segment, "$") {
			return nil, &ValidationError{Schema: d.schema.name, Field: path, Reason: "path segment must not start with '$'"}
		}
	}
	return segments, nil
}
