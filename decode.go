package docmap

import (
	"errors"

	"github.com/goliatone/go-docmap/internal/hydrate"
)

// DecodeInto hydrates a typed struct from the document's current fields.
// Field names map to struct members through their JSON tags, so a schema
// field "first_name" lands in a struct member tagged `json:"first_name"`.
func DecodeInto[T any](doc *Document) (T, error) {
	var zero T
	if doc == nil {
		return zero, errors.New("docmap: document must not be nil")
	}
	decoder := hydrate.NewDecoder[T](hydrate.WithUseNumber[T]())
	return decoder.Decode(hydrate.Context{
		Schema:     doc.schema.name,
		Collection: doc.schema.collection,
	}, doc.fields)
}
