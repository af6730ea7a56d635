// Package sqlitestore persists documents in an embedded SQLite database, one
// row per document with the body stored as JSON. It registers itself as a
// docmap client provider, so schemas bind to it the same way they bind to any
// other store.
package sqlitestore

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	docmap "github.com/goliatone/go-docmap"
	"github.com/goliatone/go-docmap/internal/filter"
)

func init() {
	docmap.AllowClient(&Client{})
}

const tableDDL = `
CREATE TABLE IF NOT EXISTS documents (
	database_name   TEXT NOT NULL,
	collection_name TEXT NOT NULL,
	id              TEXT NOT NULL,
	doc             TEXT NOT NULL,
	PRIMARY KEY (database_name, collection_name, id)
)`

// Client is a docmap.Client backed by a single SQLite file. All databases and
// collections share one documents table keyed by (database, collection, id).
type Client struct {
	db *sql.DB
}

// Open opens or creates the store at path. Pass ":memory:" for an ephemeral
// store. The pool is pinned to a single connection, so in-memory stores keep
// their state and updates never interleave mid-transaction.
func Open(path string) (*Client, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(tableDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: create documents table: %w", err)
	}
	return &Client{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Client) Close() error {
	return c.db.Close()
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

// Insert stores doc as a new row. A missing or nil identifier is assigned a
// fresh UUID. The input map is never mutated or retained.
func (c *collection) Insert(ctx context.Context, doc map[string]any) (any, error) {
	stored := make(map[string]any, len(doc)+1)
	for key, value := range doc {
		stored[key] = value
	}
	id, ok := stored[docmap.IDField]
	if !ok || id == nil {
		id = uuid.NewString()
		stored[docmap.IDField] = id
	}
	body, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: encode document: %w", err)
	}
	_, err = c.client.db.ExecContext(ctx,
		`INSERT INTO documents (database_name, collection_name, id, doc) VALUES (?, ?, ?, ?)`,
		c.database, c.name, idKey(id), string(body))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: insert into %s.%s: %w", c.database, c.name, err)
	}
	return id, nil
}

func (c *collection) Replace(ctx context.Context, id any, doc map[string]any) error {
	stored := make(map[string]any, len(doc)+1)
	for key, value := range doc {
		stored[key] = value
	}
	stored[docmap.IDField] = id
	body, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("sqlitestore: encode document: %w", err)
	}
	result, err := c.client.db.ExecContext(ctx,
		`UPDATE documents SET doc = ? WHERE database_name = ? AND collection_name = ? AND id = ?`,
		string(body), c.database, c.name, idKey(id))
	if err != nil {
		return fmt.Errorf("sqlitestore: replace in %s.%s: %w", c.database, c.name, err)
	}
	return c.requireRow(result)
}

// Update applies ops to the stored body inside a transaction, so the
// read-modify-write cycle observes and produces a consistent document.
func (c *collection) Update(ctx context.Context, id any, ops docmap.UpdateOps) error {
	tx, err := c.client.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin update: %w", err)
	}
	defer tx.Rollback()

	var body string
	err = tx.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE database_name = ? AND collection_name = ? AND id = ?`,
		c.database, c.name, idKey(id)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return docmap.ErrNoDocuments
	}
	if err != nil {
		return fmt.Errorf("sqlitestore: load document: %w", err)
	}

	doc, err := decodeDocument([]byte(body))
	if err != nil {
		return err
	}
	ops.Apply(doc)
	updated, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("sqlitestore: encode document: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET doc = ? WHERE database_name = ? AND collection_name = ? AND id = ?`,
		string(updated), c.database, c.name, idKey(id)); err != nil {
		return fmt.Errorf("sqlitestore: apply update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitestore: commit update: %w", err)
	}
	return nil
}

func (c *collection) Delete(ctx context.Context, id any) error {
	result, err := c.client.db.ExecContext(ctx,
		`DELETE FROM documents WHERE database_name = ? AND collection_name = ? AND id = ?`,
		c.database, c.name, idKey(id))
	if err != nil {
		return fmt.Errorf("sqlitestore: delete from %s.%s: %w", c.database, c.name, err)
	}
	return c.requireRow(result)
}

func (c *collection) FindOne(ctx context.Context, query map[string]any) (map[string]any, error) {
	if id, ok := identifierOnly(query); ok {
		var body string
		err := c.client.db.QueryRowContext(ctx,
			`SELECT doc FROM documents WHERE database_name = ? AND collection_name = ? AND id = ?`,
			c.database, c.name, id).Scan(&body)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docmap.ErrNoDocuments
		}
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: find in %s.%s: %w", c.database, c.name, err)
		}
		return decodeDocument([]byte(body))
	}

	docs, err := c.scan(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, docmap.ErrNoDocuments
	}
	return docs[0], nil
}

func (c *collection) Find(ctx context.Context, query map[string]any) (docmap.Cursor, error) {
	docs, err := c.scan(ctx, query, 0)
	if err != nil {
		return nil, err
	}
	return &cursor{docs: docs, index: -1}, nil
}

// scan walks the collection in id order and keeps rows matching query. A
// limit of zero means no limit.
func (c *collection) scan(ctx context.Context, query map[string]any, limit int) ([]map[string]any, error) {
	rows, err := c.client.db.QueryContext(ctx,
		`SELECT doc FROM documents WHERE database_name = ? AND collection_name = ? ORDER BY id`,
		c.database, c.name)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: query %s.%s: %w", c.database, c.name, err)
	}
	defer rows.Close()

	var matched []map[string]any
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan row: %w", err)
		}
		doc, err := decodeDocument([]byte(body))
		if err != nil {
			return nil, err
		}
		if !filter.Match(doc, query) {
			continue
		}
		matched = append(matched, doc)
		if limit > 0 && len(matched) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: iterate rows: %w", err)
	}
	return matched, nil
}

func (c *collection) requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlitestore: rows affected: %w", err)
	}
	if affected == 0 {
		return docmap.ErrNoDocuments
	}
	return nil
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

// decodeDocument decodes a stored body. Numbers decode as json.Number so
// integral values survive the round-trip without losing precision.
func decodeDocument(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("sqlitestore: decode document: %w", err)
	}
	return doc, nil
}

// identifierOnly reports whether query is a bare identifier equality lookup,
// which the primary key answers without scanning the collection.
func identifierOnly(query map[string]any) (string, bool) {
	if len(query) != 1 {
		return "", false
	}
	id, ok := query[docmap.IDField]
	if !ok || id == nil {
		return "", false
	}
	if _, isMap := id.(map[string]any); isMap {
		return "", false
	}
	return idKey(id), true
}

func idKey(id any) string {
	return fmt.Sprintf("%v", id)
}
