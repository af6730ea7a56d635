// Package storesink persists lifecycle events as documents, producing an
// audit trail in the same store as the data it describes.
package storesink

import (
	"context"

	docmap "github.com/goliatone/go-docmap"
	"github.com/goliatone/go-docmap/pkg/lifecycle"
	"github.com/google/uuid"
)

// Inserter is the single store capability the hook needs. Any
// docmap.Collection satisfies it.
type Inserter interface {
	Insert(ctx context.Context, doc map[string]any) (any, error)
}

// Hook adapts lifecycle events to a store collection.
type Hook struct {
	Collection Inserter
}

// Notify maps the event into a document and inserts it. Events missing a
// verb, collection or document id are dropped silently.
func (h Hook) Notify(ctx context.Context, event lifecycle.Event) error {
	if h.Collection == nil {
		return nil
	}

	normalized := lifecycle.NormalizeEvent(event)
	if normalized.Verb == "" || normalized.Collection == "" || normalized.DocumentID == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	record := map[string]any{
		docmap.IDField: uuid.NewString(),
		"verb":         normalized.Verb,
		"database":     normalized.Database,
		"collection":   normalized.Collection,
		"document_id":  normalized.DocumentID,
		"occurred_at":  normalized.OccurredAt,
	}
	if normalized.Source != "" {
		record["source"] = normalized.Source
	}
	if len(normalized.Fields) > 0 {
		record["fields"] = append([]string{}, normalized.Fields...)
	}
	if len(normalized.Metadata) > 0 {
		record["metadata"] = cloneMap(normalized.Metadata)
	}

	_, err := h.Collection.Insert(ctx, record)
	return err
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
