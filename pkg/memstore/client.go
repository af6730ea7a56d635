// Package memstore is a minimal in-memory document store client intended for
// tests and examples. Documents are deep-copied in and out, so stored state
// never aliases caller maps.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	docmap "github.com/goliatone/go-docmap"
	"github.com/goliatone/go-docmap/deepcopy"
	"github.com/goliatone/go-docmap/internal/filter"
)

func init() {
	docmap.AllowClient(&Client{})
}

// Client is an in-memory docmap.Client. Databases and collections
// materialize on first use.
type Client struct {
	mu   sync.RWMutex
	data map[string]map[string]map[string]map[string]any
}

// New constructs an empty client.
func New() *Client {
	return &Client{data: map[string]map[string]map[string]map[string]any{}}
}

// Database returns a handle scoped to name.
func (c *Client) Database(name string) docmap.Database {
	return &database{client: c, name: name}
}

type database struct {
	client *Client
	name   string
}

func (d *database) Collection(name string) docmap.Collection {
	return &collection{client: d.client, database: d.name, name: name}
}

type collection struct {
	client   *Client
	database string
	name     string
}

// bucket returns the id-keyed documents of this collection, creating the
// path when asked. Callers must hold the client lock.
func (c *collection) bucket(create bool) map[string]map[string]any {
	databases := c.client.data
	if databases == nil {
		if !create {
			return nil
		}
		databases = map[string]map[string]map[string]map[string]any{}
		c.client.data = databases
	}
	collections, ok := databases[c.database]
	if !ok {
		if !create {
			return nil
		}
		collections = map[string]map[string]map[string]any{}
		databases[c.database] = collections
	}
	docs, ok := collections[c.name]
	if !ok {
		if !create {
			return nil
		}
		docs = map[string]map[string]any{}
		collections[c.name] = docs
	}
	return docs
}

func (c *collection) Insert(_ context.Context, doc map[string]any) (any, error) {
	stored := deepcopy.Map(doc)
	if stored == nil {
		stored = map[string]any{}
	}
	id, ok := stored[docmap.IDField]
	if !ok || id == nil {
		id = uuid.NewString()
		stored[docmap.IDField] = id
	}
	key := idKey(id)

	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	docs := c.bucket(true)
	if _, exists := docs[key]; exists {
		return nil, fmt.Errorf("memstore: duplicate id %v in %s.%s", id, c.database, c.name)
	}
	docs[key] = stored
	return id, nil
}

func (c *collection) Replace(_ context.Context, id any, doc map[string]any) error {
	key := idKey(id)

	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	docs := c.bucket(false)
	if docs == nil {
		return docmap.ErrNoDocuments
	}
	if _, exists := docs[key]; !exists {
		return docmap.ErrNoDocuments
	}
	stored := deepcopy.Map(doc)
	if stored == nil {
		stored = map[string]any{}
	}
	stored[docmap.IDField] = id
	docs[key] = stored
	return nil
}

func (c *collection) Update(_ context.Context, id any, ops docmap.UpdateOps) error {
	key := idKey(id)

	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	docs := c.bucket(false)
	if docs == nil {
		return docmap.ErrNoDocuments
	}
	stored, exists := docs[key]
	if !exists {
		return docmap.ErrNoDocuments
	}
	updated := deepcopy.Map(stored)
	applied := docmap.UpdateOps{Unset: ops.Unset}
	if len(ops.Set) > 0 {
		applied.Set = make(map[string]any, len(ops.Set))
		for path, value := range ops.Set {
			applied.Set[path] = deepcopy.Any(value)
		}
	}
	applied.Apply(updated)
	docs[key] = updated
	return nil
}

func (c *collection) Delete(_ context.Context, id any) error {
	key := idKey(id)

	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	docs := c.bucket(false)
	if docs == nil {
		return docmap.ErrNoDocuments
	}
	if _, exists := docs[key]; !exists {
		return docmap.ErrNoDocuments
	}
	delete(docs, key)
	return nil
}

func (c *collection) FindOne(_ context.Context, query map[string]any) (map[string]any, error) {
	c.client.mu.RLock()
	defer c.client.mu.RUnlock()
	docs := c.bucket(false)
	for _, key := range sortedDocKeys(docs) {
		if filter.Match(docs[key], query) {
			return deepcopy.Map(docs[key]), nil
		}
	}
	return nil, docmap.ErrNoDocuments
}

func (c *collection) Find(_ context.Context, query map[string]any) (docmap.Cursor, error) {
	c.client.mu.RLock()
	defer c.client.mu.RUnlock()
	docs := c.bucket(false)
	var matched []map[string]any
	for _, key := range sortedDocKeys(docs) {
		if filter.Match(docs[key], query) {
			matched = append(matched, deepcopy.Map(docs[key]))
		}
	}
	return &cursor{docs: matched, index: -1}, nil
}

type cursor struct {
	docs  []map[string]any
	index int
}

func (c *cursor) Next(_ context.Context) bool {
	if c.index+1 >= len(c.docs) {
		return false
	}
	c.index++
	return true
}

func (c *cursor) Document() map[string]any {
	if c.index < 0 || c.index >= len(c.docs) {
		return nil
	}
	return c.docs[c.index]
}

func (c *cursor) Err() error { return nil }

func (c *cursor) Close(_ context.Context) error {
	c.docs = nil
	return nil
}

func sortedDocKeys(docs map[string]map[string]any) []string {
	keys := make([]string, 0, len(docs))
	for key := range docs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func idKey(id any) string {
	return fmt.Sprintf("%v", id)
}
