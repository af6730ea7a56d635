package docmap

import (
	"context"
	"errors"
	"reflect"
	"sync"
)

// ErrNoDocuments is returned by FindOne when the filter matches nothing.
var ErrNoDocuments = errors.New("docmap: no documents in result")

// Client is the document-store capability the mapping layer consumes. The
// wire protocol behind it is out of scope; pkg/memstore and pkg/sqlitestore
// ship embedded implementations.
type Client interface {
	Database(name string) Database
}

// Database scopes collections under one database name.
type Database interface {
	Collection(name string) Collection
}

// Collection is the operation surface persistence is built on. Filters are
// plain maps forwarded verbatim; stored documents are keyed by the
// identifier field. Implementations must apply an Update batch atomically
// and must not retain the maps they receive.
type Collection interface {
	Insert(ctx context.Context, doc map[string]any) (id any, err error)
	Replace(ctx context.Context, id any, doc map[string]any) error
	Update(ctx context.Context, id any, ops UpdateOps) error
	Delete(ctx context.Context, id any) error
	FindOne(ctx context.Context, filter map[string]any) (map[string]any, error)
	Find(ctx context.Context, filter map[string]any) (Cursor, error)
}

// Cursor iterates raw documents returned by Find. Callers must Close it.
type Cursor interface {
	Next(ctx context.Context) bool
	Document() map[string]any
	Err() error
	Close(ctx context.Context) error
}

var clientRegistry = struct {
	mu    sync.RWMutex
	types map[reflect.Type]struct{}
}{types: map[reflect.Type]struct{}{}}

// AllowClient registers the concrete type of prototype as a recognized
// client provider. Binding a schema to an unrecognized client type fails;
// the in-tree providers register themselves.
func AllowClient(prototype Client) {
	if prototype == nil {
		return
	}
	t := reflect.TypeOf(prototype)
	if t == nil {
		return
	}
	clientRegistry.mu.Lock()
	clientRegistry.types[t] = struct{}{}
	clientRegistry.mu.Unlock()
}

// ValidClient reports whether c is of a registered provider type.
func ValidClient(c Client) bool {
	if c == nil {
		return false
	}
	t := reflect.TypeOf(c)
	if t == nil {
		return false
	}
	clientRegistry.mu.RLock()
	_, ok := clientRegistry.types[t]
	clientRegistry.mu.RUnlock()
	return ok
}
