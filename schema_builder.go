package docmap

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-docmap/pkg/lifecycle"
)

// SchemaOption configures schema composition.
type SchemaOption func(*schemaConfig)

type schemaConfig struct {
	traits      []Trait
	dotNotation bool

	client     Client
	database   string
	collection string

	saveMode    SaveMode
	saveModeSet bool

	checks     []CheckFunc
	checkRules []*documentRule

	hooks     lifecycle.Hooks
	source    string
	onEmitErr func(error)

	queryLogger QueryLogger
}

func applySchemaOptions(opts []SchemaOption) schemaConfig {
	cfg := schemaConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithTraits declares traits for the schema, ahead of inherited ones.
func WithTraits(traits ...Trait) SchemaOption {
	return func(cfg *schemaConfig) {
		cfg.traits = append(cfg.traits, traits...)
	}
}

// WithDotNotation enables dotted-path access. The dot-notation trait is
// prepended to the declared traits when not already present.
func WithDotNotation() SchemaOption {
	return func(cfg *schemaConfig) {
		cfg.dotNotation = true
	}
}

// WithClient binds the store client at declaration time. Late binding via
// Bind is equally valid.
func WithClient(client Client) SchemaOption {
	return func(cfg *schemaConfig) {
		cfg.client = client
	}
}

// WithDatabase binds the database name at declaration time.
func WithDatabase(name string) SchemaOption {
	return func(cfg *schemaConfig) {
		cfg.database = name
	}
}

// WithCollection overrides the collection name. The default is the
// lower-cased type name.
func WithCollection(name string) SchemaOption {
	return func(cfg *schemaConfig) {
		cfg.collection = name
	}
}

// WithSaveMode sets the default persistence mode for Save. Callers can still
// override per call with Atomic or FullReplace.
func WithSaveMode(mode SaveMode) SchemaOption {
	return func(cfg *schemaConfig) {
		cfg.saveMode = mode
		cfg.saveModeSet = true
	}
}

// WithCheck adds a document-level validation hook to ValidateAll.
func WithCheck(check CheckFunc) SchemaOption {
	return func(cfg *schemaConfig) {
		if check != nil {
			cfg.checks = append(cfg.checks, check)
		}
	}
}

// WithCheckRule adds a rule-expression document check to ValidateAll. The
// expression sees the document fields and must yield a boolean verdict.
func WithCheckRule(expr string, opts ...RuleOption) SchemaOption {
	return func(cfg *schemaConfig) {
		cfg.checkRules = append(cfg.checkRules, newDocumentRule(expr, opts))
	}
}

// WithLifecycleHooks registers hooks notified after insert, save, and
// refresh. Hook failures never fail persistence.
func WithLifecycleHooks(hooks ...lifecycle.Hook) SchemaOption {
	return func(cfg *schemaConfig) {
		for _, hook := range hooks {
			if hook != nil {
				cfg.hooks = append(cfg.hooks, hook)
			}
		}
	}
}

// WithLifecycleSource sets the source tag stamped on emitted events.
func WithLifecycleSource(source string) SchemaOption {
	return func(cfg *schemaConfig) {
		cfg.source = source
	}
}

// WithLifecycleErrorFunc receives hook failures, which are otherwise
// discarded.
func WithLifecycleErrorFunc(fn func(error)) SchemaOption {
	return func(cfg *schemaConfig) {
		cfg.onEmitErr = fn
	}
}

// WithQueryLogger attaches a logger receiving filter-spec warnings from Find
// and FindOne.
func WithQueryLogger(logger QueryLogger) SchemaOption {
	return func(cfg *schemaConfig) {
		if logger == nil {
			cfg.queryLogger = noopQueryLogger{}
			return
		}
		cfg.queryLogger = logger
	}
}

// NewSchema composes a schema for one document type from its field
// declarations. The declaration map is copied; the identifier field is
// injected when absent.
func NewSchema(name string, fields map[string]*Field, opts ...SchemaOption) (*Schema, error) {
	return buildSchema(name, fields, nil, opts)
}

// Extend composes a subtype schema: the parent's fields merge under the own
// declarations, with own winning per name, and the parent's traits follow the
// own ones during linearization. The parent is never mutated.
func (s *Schema) Extend(name string, fields map[string]*Field, opts ...SchemaOption) (*Schema, error) {
	if s == nil {
		return nil, &TypeError{Schema: name, Reason: "parent schema must not be nil"}
	}
	return buildSchema(name, fields, s, opts)
}

func buildSchema(name string, declared map[string]*Field, parent *Schema, options []SchemaOption) (*Schema, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &TypeError{Schema: name, Reason: "schema name must not be empty"}
	}
	cfg := applySchemaOptions(options)

	for fieldName, field := range declared {
		if err := checkFieldName(name, fieldName); err != nil {
			return nil, err
		}
		if field == nil || field.validator == nil {
			return nil, &TypeError{Schema: name, Field: fieldName, Reason: "field declaration must not be nil"}
		}
	}

	declaredTraits := cfg.traits
	if cfg.dotNotation {
		already := containsTrait(cfg.traits, DotNotation.TraitName())
		if !already && parent != nil {
			already = containsTrait(parent.traits, DotNotation.TraitName())
		}
		if !already {
			declaredTraits = append([]Trait{DotNotation}, declaredTraits...)
		}
	}
	if parent != nil {
		declaredTraits = append(append([]Trait{}, declaredTraits...), parent.traits...)
	}
	traits := linearizeTraits(declaredTraits)

	fields := make(map[string]*Field, len(declared)+4)
	if parent != nil {
		for fieldName, field := range parent.fields {
			fields[fieldName] = field
		}
	}
	for fieldName, field := range declared {
		fields[fieldName] = field
	}
	if _, ok := fields[IDField]; !ok {
		fields[IDField] = NewField(Any)
	}

	s := &Schema{
		name:   name,
		fields: fields,
		traits: traits,
	}

	if parent != nil {
		s.saveMode = parent.saveMode
		s.checks = append(s.checks, parent.checks...)
		s.checkRules = append(s.checkRules, parent.checkRules...)
		s.queryLogger = parent.queryLogger
		s.emitter = parent.emitter
		s.onEmitErr = parent.onEmitErr
		parent.mu.RLock()
		s.client = parent.client
		s.database = parent.database
		parent.mu.RUnlock()
	}

	if cfg.saveModeSet {
		s.saveMode = cfg.saveMode
	}
	s.checks = append(s.checks, cfg.checks...)
	s.checkRules = append(s.checkRules, cfg.checkRules...)
	if cfg.queryLogger != nil {
		s.queryLogger = cfg.queryLogger
	}
	if len(cfg.hooks) > 0 {
		source := cfg.source
		s.emitter = lifecycle.NewEmitter(cfg.hooks, lifecycle.Config{Enabled: true, Source: source})
	}
	if cfg.onEmitErr != nil {
		s.onEmitErr = cfg.onEmitErr
	}

	if cfg.client != nil {
		if !ValidClient(cfg.client) {
			return nil, &ConfigurationError{Schema: name, Reason: fmt.Sprintf("client type %T is not a registered provider", cfg.client)}
		}
		s.client = cfg.client
	}
	if cfg.database != "" {
		s.database = cfg.database
	}
	s.collection = strings.ToLower(name)
	if cfg.collection != "" {
		s.collection = cfg.collection
	}

	return s, nil
}

// checkFieldName rejects names the update protocol reserves.
func checkFieldName(schema, field string) error {
	if field == "" {
		return &TypeError{Schema: schema, Reason: "field name must not be empty"}
	}
	if strings.Contains(field, ".") {
		return &TypeError{Schema: schema, Field: field, Reason: "field name must not contain '.'"}
	}
	if strings.HasPrefix(field, "$") {
		return &TypeError{Schema: schema, Field: field, Reason: "field name must not start with '$'"}
	}
	return nil
}
