package docmap

import (
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

// UpdateOps is one atomic set/unset batch derived from a document diff.
// Collection.Update applies the whole batch as a single request.
type UpdateOps struct {
	Set   map[string]any
	Unset []string
}

// Empty reports whether the batch carries no operations.
func (o UpdateOps) Empty() bool {
	return len(o.Set) == 0 && len(o.Unset) == 0
}

// Paths returns every touched path, set and unset, sorted.
func (o UpdateOps) Paths() []string {
	paths := make([]string, 0, len(o.Set)+len(o.Unset))
	for path := range o.Set {
		paths = append(paths, path)
	}
	paths = append(paths, o.Unset...)
	sort.Strings(paths)
	return paths
}

// Clone returns a copy sharing no mutable state at the top level.
func (o UpdateOps) Clone() UpdateOps {
	clone := UpdateOps{}
	if o.Set != nil {
		clone.Set = make(map[string]any, len(o.Set))
		for path, value := range o.Set {
			clone.Set[path] = value
		}
	}
	if o.Unset != nil {
		clone.Unset = append([]string{}, o.Unset...)
	}
	return clone
}

// Apply writes the batch into doc in place: set paths assign, creating
// intermediate maps along dotted paths, and unset paths delete. Stores use
// it to honor a batch against a stored document.
func (o UpdateOps) Apply(doc map[string]any) {
	for path, value := range o.Set {
		setAtPath(doc, path, value)
	}
	for _, path := range o.Unset {
		deleteAtPath(doc, path)
	}
}

func setAtPath(doc map[string]any, path string, value any) {
	segments := strings.Split(path, ".")
	current := doc
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}

func deleteAtPath(doc map[string]any, path string) {
	segments := strings.Split(path, ".")
	current := doc
	for _, segment := range segments[:len(segments)-1] {
		var ok bool
		current, ok = current[segment].(map[string]any)
		if !ok {
			return
		}
	}
	delete(current, segments[len(segments)-1])
}

// wireUpdate is the $set/$unset shape the batch takes on the wire.
type wireUpdate struct {
	Set   map[string]any `json:"$set,omitempty"`
	Unset map[string]int `json:"$unset,omitempty"`
}

// ToJSON serialises the batch into its wire shape.
func (o UpdateOps) ToJSON() ([]byte, error) {
	wire := wireUpdate{Set: o.Set}
	if len(o.Unset) > 0 {
		wire.Unset = make(map[string]int, len(o.Unset))
		for _, path := range o.Unset {
			wire.Unset[path] = 1
		}
	}
	return json.Marshal(wire)
}

// UpdateOpsFromJSON deserialises a payload previously generated via ToJSON.
func UpdateOpsFromJSON(payload []byte) (UpdateOps, error) {
	var wire wireUpdate
	if err := json.Unmarshal(payload, &wire); err != nil {
		return UpdateOps{}, err
	}
	ops := UpdateOps{Set: wire.Set}
	if len(wire.Unset) > 0 {
		ops.Unset = make([]string, 0, len(wire.Unset))
		for path := range wire.Unset {
			ops.Unset = append(ops.Unset, path)
		}
		sort.Strings(ops.Unset)
	}
	return ops, nil
}
