package docmap

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-docmap/pkg/lifecycle"
)

var (
	// ErrAlreadyStored marks an Insert attempted on a synced document.
	ErrAlreadyStored = errors.New("docmap: document already stored")
	// ErrNotStored marks a Refresh attempted on a document never saved.
	ErrNotStored = errors.New("docmap: document not stored")
)

// SaveOption overrides persistence behaviour for one call.
type SaveOption func(*saveConfig)

type saveConfig struct {
	mode    SaveMode
	modeSet bool
}

// Atomic makes this save write only the fields that changed since the last
// sync, as one set/unset batch.
func Atomic() SaveOption {
	return func(cfg *saveConfig) {
		cfg.mode = SaveAtomic
		cfg.modeSet = true
	}
}

// FullReplace makes this save write the whole document.
func FullReplace() SaveOption {
	return func(cfg *saveConfig) {
		cfg.mode = SaveReplace
		cfg.modeSet = true
	}
}

// Insert validates the document fully and writes it as a new record. The
// store-assigned identifier is recorded and the document becomes Clean.
func (d *Document) Insert(ctx context.Context) error {
	if !d.IsNew() {
		return ErrAlreadyStored
	}
	return d.insert(ctx)
}

// Save validates the document fully and persists it: a New document inserts,
// a synced one either replaces the stored copy or issues the diff as one
// atomic update, per the schema's save mode or a per-call override. On
// failure the snapshot is untouched, so a retry reproduces the identical
// operation.
func (d *Document) Save(ctx context.Context, opts ...SaveOption) error {
	cfg := saveConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if d.IsNew() {
		return d.insert(ctx)
	}

	mode := d.schema.saveMode
	if cfg.modeSet {
		mode = cfg.mode
	}

	if err := d.ValidateAll(); err != nil {
		return err
	}
	storedID, err := d.storedIdentifier()
	if err != nil {
		return err
	}
	collection, err := d.schema.Collection()
	if err != nil {
		return err
	}

	if mode == SaveAtomic {
		return d.saveAtomic(ctx, collection, storedID)
	}
	return d.saveReplace(ctx, collection, storedID)
}

// Refresh re-fetches the stored copy by identifier and resets both fields
// and snapshot to it.
func (d *Document) Refresh(ctx context.Context) error {
	if d.IsNew() {
		return ErrNotStored
	}
	storedID, err := d.storedIdentifier()
	if err != nil {
		return err
	}
	collection, err := d.schema.Collection()
	if err != nil {
		return err
	}
	raw, err := collection.FindOne(ctx, map[string]any{IDField: storedID})
	if err != nil {
		return err
	}
	fresh, err := d.schema.materialize(raw)
	if err != nil {
		return err
	}
	d.fields = fresh.fields
	d.snapshot = fresh.snapshot

	d.schema.emit(ctx, lifecycle.BuildRefreshedEvent(d.eventInput(nil)))
	return nil
}

// Delete removes the stored copy and returns the document to the New state.
func (d *Document) Delete(ctx context.Context) error {
	if d.IsNew() {
		return ErrNotStored
	}
	storedID, err := d.storedIdentifier()
	if err != nil {
		return err
	}
	collection, err := d.schema.Collection()
	if err != nil {
		return err
	}
	if err := collection.Delete(ctx, storedID); err != nil {
		return err
	}
	d.snapshot = nil

	d.schema.emit(ctx, lifecycle.BuildDeletedEvent(d.eventInputWithID(storedID, nil)))
	return nil
}

func (d *Document) insert(ctx context.Context) error {
	if err := d.ValidateAll(); err != nil {
		return err
	}
	if err := CheckKeys(d.fields); err != nil {
		return err
	}
	collection, err := d.schema.Collection()
	if err != nil {
		return err
	}
	id, err := collection.Insert(ctx, d.fields)
	if err != nil {
		return err
	}
	if id != nil {
		d.fields[IDField] = id
	}
	d.markSynced()

	d.schema.emit(ctx, lifecycle.BuildInsertedEvent(d.eventInput(d.Fields())))
	return nil
}

func (d *Document) saveReplace(ctx context.Context, collection Collection, storedID any) error {
	if err := CheckKeys(d.fields); err != nil {
		return err
	}
	if err := collection.Replace(ctx, storedID, d.fields); err != nil {
		return err
	}
	d.markSynced()

	d.schema.emit(ctx, lifecycle.BuildSavedEvent(d.eventInput(d.Fields())))
	return nil
}

func (d *Document) saveAtomic(ctx context.Context, collection Collection, storedID any) error {
	ops := Diff(d.fields, d.snapshot)
	if ops.Empty() {
		return nil
	}
	for path, value := range ops.Set {
		if nested, ok := value.(map[string]any); ok {
			if err := checkKeys(nested, path); err != nil {
				return err
			}
		}
	}
	if err := collection.Update(ctx, storedID, ops); err != nil {
		return err
	}
	d.markSynced()

	d.schema.emit(ctx, lifecycle.BuildSavedEvent(d.eventInput(ops.Paths())))
	return nil
}

// storedIdentifier returns the identity the stored copy is keyed by. The
// identifier is immutable once synced.
func (d *Document) storedIdentifier() (any, error) {
	storedID, ok := d.snapshot[IDField]
	if !ok {
		return nil, &ValidationError{Schema: d.schema.name, Field: IDField, Reason: "stored document has no identifier"}
	}
	if current, present := d.fields[IDField]; !present || fmt.Sprintf("%v", current) != fmt.Sprintf("%v", storedID) {
		return nil, &ValidationError{Schema: d.schema.name, Field: IDField, Reason: "identifier is immutable once stored"}
	}
	return storedID, nil
}

func (d *Document) eventInput(fields []string) lifecycle.DocumentEventInput {
	return d.eventInputWithID(d.ID(), fields)
}

func (d *Document) eventInputWithID(id any, fields []string) lifecycle.DocumentEventInput {
	input := lifecycle.DocumentEventInput{
		Database:   d.schema.DatabaseName(),
		Collection: d.schema.CollectionName(),
		Fields:     fields,
	}
	if id != nil {
		input.DocumentID = fmt.Sprintf("%v", id)
	}
	return input
}
