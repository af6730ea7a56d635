package docmap

import (
	"reflect"
	"sort"
)

// Diff computes the set/unset batch that transforms snapshot into current.
// Maps present on both sides diff recursively into dotted paths, so sibling
// keys inside a nested map survive an atomic update untouched. Equal values
// produce no operation.
func Diff(current, snapshot map[string]any) UpdateOps {
	ops := UpdateOps{Set: map[string]any{}}
	diffInto("", current, snapshot, &ops)
	if len(ops.Set) == 0 {
		ops.Set = nil
	}
	sort.Strings(ops.Unset)
	return ops
}

func diffInto(prefix string, current, snapshot map[string]any, ops *UpdateOps) {
	for key, value := range current {
		path := prefix + key
		old, existed := snapshot[key]
		if !existed {
			ops.Set[path] = value
			continue
		}
		if curMap, ok := value.(map[string]any); ok {
			if oldMap, ok := old.(map[string]any); ok {
				diffInto(path+".", curMap, oldMap, ops)
				continue
			}
		}
		if !reflect.DeepEqual(value, old) {
			ops.Set[path] = value
		}
	}
	for key := range snapshot {
		if _, present := current[key]; !present {
			ops.Unset = append(ops.Unset, prefix+key)
		}
	}
}
