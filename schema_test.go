package docmap

import (
	"errors"
	"slices"
	"testing"
)

func TestNewSchemaDefaults(t *testing.T) {
	schema, err := NewSchema("Person", map[string]*Field{
		"name": NewField(String, Required()),
		"age":  NewField(Int),
	})
	if err != nil {
		t.Fatalf("unexpected error from NewSchema: %v", err)
	}

	if schema.Name() != "Person" {
		t.Fatalf("expected name Person, got %q", schema.Name())
	}
	if schema.CollectionName() != "person" {
		t.Fatalf("expected collection to default to lower-cased name, got %q", schema.CollectionName())
	}
	if schema.SaveMode() != SaveReplace {
		t.Fatalf("expected SaveReplace default, got %v", schema.SaveMode())
	}

	want := []string{IDField, "age", "name"}
	if got := schema.Fields(); !slices.Equal(got, want) {
		t.Fatalf("expected fields %v, got %v", want, got)
	}

	idField, ok := schema.Field(IDField)
	if !ok {
		t.Fatalf("expected identifier field to be injected")
	}
	if idField.IsRequired() {
		t.Fatalf("expected injected identifier to not be required")
	}
}

func TestNewSchemaCopiesDeclarations(t *testing.T) {
	declared := map[string]*Field{"name": NewField(String)}
	schema, err := NewSchema("Person", declared)
	if err != nil {
		t.Fatalf("unexpected error from NewSchema: %v", err)
	}

	declared["sneaky"] = NewField(String)
	if schema.HasField("sneaky") {
		t.Fatalf("expected declarations to be copied at build time")
	}
}

func TestNewSchemaKeepsDeclaredIdentifier(t *testing.T) {
	schema, err := NewSchema("Person", map[string]*Field{
		IDField: NewField(String, Required()),
	})
	if err != nil {
		t.Fatalf("unexpected error from NewSchema: %v", err)
	}

	idField, _ := schema.Field(IDField)
	if !idField.IsRequired() {
		t.Fatalf("expected declared identifier to win over injection")
	}
}

func TestNewSchemaRejectsInvalidDeclarations(t *testing.T) {
	cases := []struct {
		name   string
		schema string
		fields map[string]*Field
	}{
		{"empty schema name", "  ", nil},
		{"empty field name", "Person", map[string]*Field{"": NewField(String)}},
		{"dotted field name", "Person", map[string]*Field{"a.b": NewField(String)}},
		{"operator field name", "Person", map[string]*Field{"$set": NewField(String)}},
		{"nil field", "Person", map[string]*Field{"name": nil}},
		{"nil validator", "Person", map[string]*Field{"name": NewField(nil)}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSchema(tc.schema, tc.fields)
			var typeErr *TypeError
			if !errors.As(err, &typeErr) {
				t.Fatalf("expected *TypeError, got %v", err)
			}
		})
	}
}

func TestExtendMergesParentUnderOwn(t *testing.T) {
	parent, err := NewSchema("Person", map[string]*Field{
		"name":  NewField(String, Required()),
		"email": NewField(String),
	})
	if err != nil {
		t.Fatalf("unexpected error from NewSchema: %v", err)
	}

	child, err := parent.Extend("Employee", map[string]*Field{
		"email": NewField(String, Required()),
		"badge": NewField(Int),
	})
	if err != nil {
		t.Fatalf("unexpected error from Extend: %v", err)
	}

	if child.CollectionName() != "employee" {
		t.Fatalf("expected subtype collection to default to its own name, got %q", child.CollectionName())
	}

	want := []string{IDField, "badge", "email", "name"}
	if got := child.Fields(); !slices.Equal(got, want) {
		t.Fatalf("expected fields %v, got %v", want, got)
	}

	emailField, _ := child.Field("email")
	if !emailField.IsRequired() {
		t.Fatalf("expected own email declaration to win over the parent's")
	}

	if parent.HasField("badge") {
		t.Fatalf("expected parent to stay untouched by Extend")
	}
	parentEmail, _ := parent.Field("email")
	if parentEmail.IsRequired() {
		t.Fatalf("expected parent email declaration to stay optional")
	}
}

func TestExtendNilParent(t *testing.T) {
	var parent *Schema
	_, err := parent.Extend("Employee", nil)
	var typeErr *TypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("expected *TypeError, got %v", err)
	}
}

func TestExtendLinearizesTraits(t *testing.T) {
	audit := NewTrait("audit")
	billing := NewTrait("billing", audit)
	contact := NewTrait("contact", audit)

	parent, err := NewSchema("Person", nil, WithTraits(billing))
	if err != nil {
		t.Fatalf("unexpected error from NewSchema: %v", err)
	}
	child, err := parent.Extend("Employee", nil, WithTraits(contact))
	if err != nil {
		t.Fatalf("unexpected error from Extend: %v", err)
	}

	want := []string{"contact", "audit", "billing"}
	if got := child.Traits(); !slices.Equal(got, want) {
		t.Fatalf("expected traits %v, got %v", want, got)
	}
	if !child.HasTrait("audit") {
		t.Fatalf("expected shared ancestor to be visible")
	}
}

func TestWithDotNotationPrependsTrait(t *testing.T) {
	audit := NewTrait("audit")
	schema, err := NewSchema("Person", nil, WithDotNotation(), WithTraits(audit))
	if err != nil {
		t.Fatalf("unexpected error from NewSchema: %v", err)
	}

	want := []string{"dot_notation", "audit"}
	if got := schema.Traits(); !slices.Equal(got, want) {
		t.Fatalf("expected traits %v, got %v", want, got)
	}

	child, err := schema.Extend("Employee", nil, WithDotNotation())
	if err != nil {
		t.Fatalf("unexpected error from Extend: %v", err)
	}
	count := 0
	for _, name := range child.Traits() {
		if name == DotNotation.TraitName() {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected dot_notation to appear once, got traits %v", child.Traits())
	}
}

func TestSchemaSaveModeInheritance(t *testing.T) {
	parent, err := NewSchema("Person", nil, WithSaveMode(SaveAtomic))
	if err != nil {
		t.Fatalf("unexpected error from NewSchema: %v", err)
	}
	if parent.SaveMode() != SaveAtomic {
		t.Fatalf("expected SaveAtomic, got %v", parent.SaveMode())
	}

	child, err := parent.Extend("Employee", nil)
	if err != nil {
		t.Fatalf("unexpected error from Extend: %v", err)
	}
	if child.SaveMode() != SaveAtomic {
		t.Fatalf("expected subtype to inherit SaveAtomic, got %v", child.SaveMode())
	}

	grandchild, err := child.Extend("Manager", nil, WithSaveMode(SaveReplace))
	if err != nil {
		t.Fatalf("unexpected error from Extend: %v", err)
	}
	if grandchild.SaveMode() != SaveReplace {
		t.Fatalf("expected override to SaveReplace, got %v", grandchild.SaveMode())
	}
}

func TestSchemaBindValidatesCoordinates(t *testing.T) {
	schema, err := NewSchema("Person", nil)
	if err != nil {
		t.Fatalf("unexpected error from NewSchema: %v", err)
	}

	var cfgErr *ConfigurationError
	if err := schema.Bind(nil, "app", ""); !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError for nil client, got %v", err)
	}
	if err := schema.Bind(&strayClient{}, "app", ""); !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError for unregistered client, got %v", err)
	}

	client := newStubClient()
	if err := schema.Bind(client, "  ", ""); !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError for empty database, got %v", err)
	}

	if err := schema.Bind(client, "app", ""); err != nil {
		t.Fatalf("unexpected error from Bind: %v", err)
	}
	if !schema.Bound() {
		t.Fatalf("expected schema to be bound")
	}
	if schema.DatabaseName() != "app" {
		t.Fatalf("expected database app, got %q", schema.DatabaseName())
	}
	if schema.CollectionName() != "person" {
		t.Fatalf("expected empty collection to keep the default, got %q", schema.CollectionName())
	}

	if err := schema.Bind(client, "app", "people"); err != nil {
		t.Fatalf("unexpected error from Bind: %v", err)
	}
	if schema.CollectionName() != "people" {
		t.Fatalf("expected collection override, got %q", schema.CollectionName())
	}
}

func TestNewSchemaRejectsUnregisteredClient(t *testing.T) {
	_, err := NewSchema("Person", nil, WithClient(&strayClient{}))
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
}

func TestSchemaCollectionResolutionOrder(t *testing.T) {
	schema, err := NewSchema("Person", nil)
	if err != nil {
		t.Fatalf("unexpected error from NewSchema: %v", err)
	}

	var cfgErr *ConfigurationError
	if _, err := schema.Collection(); !errors.As(err, &cfgErr) || cfgErr.Reason != "client not configured" {
		t.Fatalf("expected missing client to be reported first, got %v", err)
	}

	withClient, err := NewSchema("Person", nil, WithClient(newStubClient()))
	if err != nil {
		t.Fatalf("unexpected error from NewSchema: %v", err)
	}
	if _, err := withClient.Collection(); !errors.As(err, &cfgErr) || cfgErr.Reason != "database not configured" {
		t.Fatalf("expected missing database to be reported next, got %v", err)
	}
}

func TestExtendInheritsBinding(t *testing.T) {
	client := newStubClient()
	parent, err := NewSchema("Person", nil, WithClient(client), WithDatabase("app"))
	if err != nil {
		t.Fatalf("unexpected error from NewSchema: %v", err)
	}

	child, err := parent.Extend("Employee", nil)
	if err != nil {
		t.Fatalf("unexpected error from Extend: %v", err)
	}
	if !child.Bound() {
		t.Fatalf("expected subtype to inherit the binding")
	}
	if child.DatabaseName() != "app" {
		t.Fatalf("expected database app, got %q", child.DatabaseName())
	}
	if child.CollectionName() != "employee" {
		t.Fatalf("expected subtype collection employee, got %q", child.CollectionName())
	}
}
