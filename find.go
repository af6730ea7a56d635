package docmap

import (
	"context"
	"strings"
)

// Find forwards filter verbatim and returns a cursor that materializes each
// result against the schema. Suspect filter entries are reported to the
// query logger, never rejected.
func (s *Schema) Find(ctx context.Context, filter map[string]any) (*DocumentCursor, error) {
	cursor, err := s.FindRaw(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &DocumentCursor{schema: s, cursor: cursor}, nil
}

// FindOne forwards filter verbatim and materializes the single result.
// ErrNoDocuments propagates from the store when nothing matches.
func (s *Schema) FindOne(ctx context.Context, filter map[string]any) (*Document, error) {
	raw, err := s.FindOneRaw(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.materialize(raw)
}

// FindRaw is Find without materialization; results are plain maps.
func (s *Schema) FindRaw(ctx context.Context, filter map[string]any) (Cursor, error) {
	collection, err := s.Collection()
	if err != nil {
		return nil, err
	}
	s.checkFilter(filter)
	return collection.Find(ctx, filter)
}

// FindOneRaw is FindOne without materialization.
func (s *Schema) FindOneRaw(ctx context.Context, filter map[string]any) (map[string]any, error) {
	collection, err := s.Collection()
	if err != nil {
		return nil, err
	}
	s.checkFilter(filter)
	return collection.FindOne(ctx, filter)
}

// checkFilter reports filter entries that cannot match a valid document:
// undeclared fields and values the declared validator rejects. The filter is
// still forwarded untouched.
func (s *Schema) checkFilter(filter map[string]any) {
	logger := s.queryWarnLogger()
	for key, value := range filter {
		if strings.HasPrefix(key, "$") {
			continue
		}
		name, dotted := key, false
		if i := strings.IndexByte(key, '.'); i >= 0 {
			name, dotted = key[:i], true
		}
		if !s.HasField(name) {
			logger.LogQueryWarning(QueryWarning{
				Schema: s.name,
				Key:    key,
				Reason: "field not declared",
			})
			continue
		}
		if dotted {
			continue
		}
		if _, isOperator := value.(map[string]any); isOperator {
			continue
		}
		if _, err := s.ValidateField(name, value); err != nil {
			logger.LogQueryWarning(QueryWarning{
				Schema: s.name,
				Key:    key,
				Reason: "value fails declared validator",
				Err:    err,
			})
		}
	}
}

// DocumentCursor wraps a store cursor and materializes rows on demand.
type DocumentCursor struct {
	schema *Schema
	cursor Cursor
}

// Next advances to the next result.
func (c *DocumentCursor) Next(ctx context.Context) bool {
	return c.cursor.Next(ctx)
}

// Document materializes the current result against the schema.
func (c *DocumentCursor) Document() (*Document, error) {
	return c.schema.materialize(c.cursor.Document())
}

// Raw returns the current result as the store produced it.
func (c *DocumentCursor) Raw() map[string]any {
	return c.cursor.Document()
}

// Err returns the first error the underlying cursor hit.
func (c *DocumentCursor) Err() error {
	return c.cursor.Err()
}

// Close releases the underlying cursor.
func (c *DocumentCursor) Close(ctx context.Context) error {
	return c.cursor.Close(ctx)
}

// All drains the cursor into materialized documents and closes it.
func (c *DocumentCursor) All(ctx context.Context) ([]*Document, error) {
	defer c.cursor.Close(ctx)
	var docs []*Document
	for c.cursor.Next(ctx) {
		doc, err := c.Document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := c.cursor.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
