package docmap

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-docmap/pkg/lifecycle"
)

// IDField is the identifier field every schema carries. The builder injects
// it, not required and without a default, when a declaration omits it.
const IDField = "_id"

// SaveMode selects how Save persists a document that already has a stored
// copy.
type SaveMode int

const (
	// SaveReplace writes the full document over the stored copy.
	SaveReplace SaveMode = iota
	// SaveAtomic writes only the fields that changed since the last sync,
	// as one set/unset batch.
	SaveAtomic
)

func (m SaveMode) String() string {
	if m == SaveAtomic {
		return "atomic"
	}
	return "replace"
}

// CheckFunc is a document-level validation hook run during ValidateAll after
// the per-field validators pass.
type CheckFunc func(doc *Document) error

// Schema holds the composed field declarations and storage binding for one
// document type. Build one per type with NewSchema or Extend. A built schema
// is immutable apart from late storage binding and is safe to share across
// goroutines.
type Schema struct {
	name     string
	fields   map[string]*Field
	traits   []Trait
	saveMode SaveMode

	checks     []CheckFunc
	checkRules []*documentRule

	queryLogger QueryLogger
	emitter     *lifecycle.Emitter
	onEmitErr   func(error)

	mu         sync.RWMutex
	client     Client
	database   string
	collection string
}

// Name returns the declared type name.
func (s *Schema) Name() string {
	return s.name
}

// Fields returns the declared field names sorted alphabetically.
func (s *Schema) Fields() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Field returns the declaration registered under name.
func (s *Schema) Field(name string) (*Field, bool) {
	field, ok := s.fields[name]
	return field, ok
}

// HasField reports whether name is declared.
func (s *Schema) HasField(name string) bool {
	_, ok := s.fields[name]
	return ok
}

// ValidateField runs the declared validator for name against value and
// returns the value to store. Looking up an undeclared name yields
// *UnknownFieldError.
func (s *Schema) ValidateField(name string, value any) (any, error) {
	field, ok := s.fields[name]
	if !ok {
		return nil, &UnknownFieldError{Schema: s.name, Field: name}
	}
	out, err := field.Validate(value, name)
	if err != nil {
		return nil, wrapValidationError(s.name, name, err)
	}
	return out, nil
}

// Traits returns the linearized trait names in resolution order.
func (s *Schema) Traits() []string {
	names := make([]string, 0, len(s.traits))
	for _, t := range s.traits {
		names = append(names, t.TraitName())
	}
	return names
}

// HasTrait reports whether the linearized set contains name.
func (s *Schema) HasTrait(name string) bool {
	return containsTrait(s.traits, name)
}

// SaveMode returns the configured default persistence mode.
func (s *Schema) SaveMode() SaveMode {
	return s.saveMode
}

// Bind attaches storage coordinates after declaration. The client must be a
// registered provider type, database must not be empty, and an empty
// collection keeps the current one (the lower-cased type name by default).
func (s *Schema) Bind(client Client, database, collection string) error {
	if client == nil {
		return &ConfigurationError{Schema: s.name, Reason: "client must not be nil"}
	}
	if !ValidClient(client) {
		return &ConfigurationError{Schema: s.name, Reason: fmt.Sprintf("client type %T is not a registered provider", client)}
	}
	if strings.TrimSpace(database) == "" {
		return &ConfigurationError{Schema: s.name, Reason: "database must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = client
	s.database = database
	if strings.TrimSpace(collection) != "" {
		s.collection = collection
	}
	return nil
}

// Bound reports whether the schema can resolve a collection.
func (s *Schema) Bound() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil && s.database != "" && s.collection != ""
}

// Collection resolves the bound collection handle. Missing coordinates are
// reported in client, database, collection order.
func (s *Schema) Collection() (Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, &ConfigurationError{Schema: s.name, Reason: "client not configured"}
	}
	if s.database == "" {
		return nil, &ConfigurationError{Schema: s.name, Reason: "database not configured"}
	}
	if s.collection == "" {
		return nil, &ConfigurationError{Schema: s.name, Reason: "collection not configured"}
	}
	return s.client.Database(s.database).Collection(s.collection), nil
}

// DatabaseName returns the bound database name, empty when unbound.
func (s *Schema) DatabaseName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.database
}

// CollectionName returns the collection the schema persists to.
func (s *Schema) CollectionName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection
}

func (s *Schema) queryWarnLogger() QueryLogger {
	if s.queryLogger != nil {
		return s.queryLogger
	}
	return noopQueryLogger{}
}

// emit forwards a lifecycle event. Hook failures never fail persistence;
// they reach the configured error callback instead.
func (s *Schema) emit(ctx context.Context, event lifecycle.Event) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.Emit(ctx, event); err != nil && s.onEmitErr != nil {
		s.onEmitErr(err)
	}
}

// documentRule is a lazily compiled document-level check rule. The rule sees
// the document fields flattened into scope plus the doc binding and must
// yield a boolean verdict.
type documentRule struct {
	expr string
	cfg  ruleConfig

	once   sync.Once
	engine RuleEvaluator
	rule   CompiledRule
	err    error
}

func newDocumentRule(expr string, opts []RuleOption) *documentRule {
	return &documentRule{expr: expr, cfg: applyRuleOptions(opts)}
}

func (r *documentRule) check(schemaName string, fields map[string]any) error {
	r.once.Do(func() {
		r.engine, r.err = r.cfg.resolveEngine()
		if r.err != nil {
			return
		}
		r.rule, r.err = r.engine.Compile(r.expr)
	})
	if r.err != nil {
		return r.err
	}
	ctx := r.cfg.contextFor(nil, "", fields)
	result, err := r.cfg.runRule(r.rule, r.engine, r.expr, ctx)
	if err != nil {
		return err
	}
	verdict, ok := result.(bool)
	if !ok {
		return wrapRuleError(ruleEngineName(r.engine), r.expr, "document",
			fmt.Errorf("document check must return bool, got %T", result))
	}
	if !verdict {
		reason := r.cfg.message
		if reason == "" {
			reason = fmt.Sprintf("rejected by document check %q", r.expr)
		}
		return &ValidationError{Schema: schemaName, Reason: reason}
	}
	return nil
}
