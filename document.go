package docmap

import (
	"sort"

	"github.com/goliatone/go-docmap/deepcopy"
)

// Document is one record instance bound to a schema: its field values plus
// the snapshot of the last stored state that drives change tracking. A
// document belongs to one logical caller at a time.
type Document struct {
	schema   *Schema
	fields   map[string]any
	snapshot map[string]any
}

// DocumentOption seeds a document under construction.
type DocumentOption func(*documentConfig)

type documentConfig struct {
	seed   map[string]any
	values map[string]any
}

// WithSeed supplies an existing map of values. Seed entries merge under
// explicitly set values; on collision the explicit value wins.
func WithSeed(seed map[string]any) DocumentOption {
	return func(cfg *documentConfig) {
		cfg.seed = seed
	}
}

// WithValue sets one field explicitly. Later values win per name.
func WithValue(name string, value any) DocumentOption {
	return func(cfg *documentConfig) {
		if cfg.values == nil {
			cfg.values = map[string]any{}
		}
		cfg.values[name] = value
	}
}

// WithValues sets several fields explicitly.
func WithValues(values map[string]any) DocumentOption {
	return func(cfg *documentConfig) {
		if cfg.values == nil {
			cfg.values = make(map[string]any, len(values))
		}
		for name, value := range values {
			cfg.values[name] = value
		}
	}
}

// NewDocument constructs a document in the New state. Declared defaults
// materialize for fields not supplied, every supplied value runs through its
// validator, and an undeclared name fails with *ExtraFieldError.
func (s *Schema) NewDocument(opts ...DocumentOption) (*Document, error) {
	cfg := documentConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	merged := make(map[string]any, len(cfg.seed)+len(cfg.values))
	for name, value := range cfg.seed {
		merged[name] = value
	}
	for name, value := range cfg.values {
		merged[name] = value
	}

	doc := &Document{
		schema: s,
		fields: make(map[string]any, len(merged)+4),
	}
	for name, field := range s.fields {
		if _, supplied := merged[name]; supplied {
			continue
		}
		if field.HasDefault() {
			doc.fields[name] = field.Default()
		}
	}
	for _, name := range sortedKeys(merged) {
		if !s.HasField(name) {
			return nil, &ExtraFieldError{Schema: s.name, Field: name}
		}
		value, err := s.ValidateField(name, merged[name])
		if err != nil {
			return nil, err
		}
		doc.fields[name] = value
	}
	return doc, nil
}

// materialize builds a document from a stored map. Defaults fill fields the
// stored copy lacks, but the snapshot mirrors only what the store returned,
// so freshly materialized defaults count as dirty.
func (s *Schema) materialize(raw map[string]any) (*Document, error) {
	doc := &Document{
		schema: s,
		fields: make(map[string]any, len(raw)+4),
	}
	snapshot := make(map[string]any, len(raw))
	for _, name := range sortedKeys(raw) {
		if !s.HasField(name) {
			return nil, &ExtraFieldError{Schema: s.name, Field: name}
		}
		value, err := s.ValidateField(name, raw[name])
		if err != nil {
			return nil, err
		}
		doc.fields[name] = value
		snapshot[name] = value
	}
	for name, field := range s.fields {
		if _, ok := doc.fields[name]; ok {
			continue
		}
		if field.HasDefault() {
			doc.fields[name] = field.Default()
		}
	}
	doc.snapshot = deepcopy.Map(snapshot)
	return doc, nil
}

// Schema returns the schema the document is bound to.
func (d *Document) Schema() *Schema {
	return d.schema
}

// Get returns the value stored under name.
func (d *Document) Get(name string) (any, bool) {
	value, ok := d.fields[name]
	return value, ok
}

// Set validates value against the declared field and stores it. Undeclared
// names fail with *ExtraFieldError.
func (d *Document) Set(name string, value any) error {
	if !d.schema.HasField(name) {
		return &ExtraFieldError{Schema: d.schema.name, Field: name}
	}
	out, err := d.schema.ValidateField(name, value)
	if err != nil {
		return err
	}
	d.fields[name] = out
	return nil
}

// SetRaw stores value without running the validator, mirroring raw map
// assignment. Undeclared names are allowed here and surface as a
// *ValidationError from ValidateAll.
func (d *Document) SetRaw(name string, value any) {
	d.fields[name] = value
}

// Unset removes name from the document. An unset field is distinguishable
// from one set to nil and produces an unset op on atomic save.
func (d *Document) Unset(name string) {
	delete(d.fields, name)
}

// Has reports whether name is present.
func (d *Document) Has(name string) bool {
	_, ok := d.fields[name]
	return ok
}

// Len returns the number of present fields.
func (d *Document) Len() int {
	return len(d.fields)
}

// Fields returns the present field names sorted alphabetically.
func (d *Document) Fields() []string {
	return sortedKeys(d.fields)
}

// ID returns the identifier value, nil when unassigned.
func (d *Document) ID() any {
	return d.fields[IDField]
}

// Values returns a deep copy of the current field values.
func (d *Document) Values() map[string]any {
	return deepcopy.Map(d.fields)
}

// Snapshot returns a deep copy of the last-synced state, nil for a New
// document.
func (d *Document) Snapshot() map[string]any {
	return deepcopy.Map(d.snapshot)
}

// IsNew reports whether the document has never been synced with the store.
func (d *Document) IsNew() bool {
	return d.snapshot == nil
}

// Dirty reports whether the document differs from its last-synced state.
func (d *Document) Dirty() bool {
	if d.IsNew() {
		return true
	}
	ops := Diff(d.fields, d.snapshot)
	return !ops.Empty()
}

// ValidateAll performs full validation: an undeclared-key scan, the declared
// validators over every present field, the required-presence check, then the
// document-level checks. Validators may coerce; coerced values are stored
// back. Always run before persistence.
func (d *Document) ValidateAll() error {
	s := d.schema
	names := sortedKeys(d.fields)
	for _, name := range names {
		if !s.HasField(name) {
			return &ValidationError{Schema: s.name, Field: name, Reason: "undeclared field present"}
		}
	}
	for _, name := range names {
		value, err := s.ValidateField(name, d.fields[name])
		if err != nil {
			return err
		}
		d.fields[name] = value
	}
	var missing []string
	for name, field := range s.fields {
		if !field.IsRequired() {
			continue
		}
		if _, ok := d.fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return missingRequiredError(s.name, missing)
	}
	for _, check := range s.checks {
		if err := check(d); err != nil {
			return wrapValidationError(s.name, "", err)
		}
	}
	if len(s.checkRules) > 0 {
		fields := d.Values()
		for _, rule := range s.checkRules {
			if err := rule.check(s.name, fields); err != nil {
				return err
			}
		}
	}
	return nil
}

// markSynced records the current state as the stored one.
func (d *Document) markSynced() {
	d.snapshot = deepcopy.Map(d.fields)
	if d.snapshot == nil {
		d.snapshot = map[string]any{}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
