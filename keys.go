package docmap

import "strings"

// CheckKeys rejects document keys the update protocol reserves, dotted names
// and '$'-prefixed names, recursing into nested maps. Run against every
// document before a full write reaches the store.
func CheckKeys(doc map[string]any) error {
	return checkKeys(doc, "")
}

func checkKeys(doc map[string]any, prefix string) error {
	for key, value := range doc {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if strings.Contains(key, ".") {
			return &ValidationError{Field: path, Reason: "key must not contain '.'"}
		}
		if strings.HasPrefix(key, "$") {
			return &ValidationError{Field: path, Reason: "key must not start with '$'"}
		}
		if nested, ok := value.(map[string]any); ok {
			if err := checkKeys(nested, path); err != nil {
				return err
			}
		}
	}
	return nil
}
