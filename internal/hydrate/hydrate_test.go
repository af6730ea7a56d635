package hydrate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

type contact struct {
	ID    string         `json:"_id"`
	Name  string         `json:"name"`
	Age   int            `json:"age"`
	Prefs map[string]any `json:"prefs,omitempty"`
}

func TestDecodeMapsFieldsThroughTags(t *testing.T) {
	decoder := NewDecoder[contact]()
	ctx := Context{Schema: "Contact", Collection: "contact"}

	fields := map[string]any{
		"_id":  "c-1",
		"name": "Ada",
		"age":  int64(36),
	}
	result, err := decoder.Decode(ctx, fields)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	want := contact{ID: "c-1", Name: "Ada", Age: 36}
	if !reflect.DeepEqual(result, want) {
		t.Fatalf("decoded snapshot mismatch:\nwant: %#v\n got: %#v", want, result)
	}
}

func TestDecodeNilFields(t *testing.T) {
	decoder := NewDecoder[contact]()
	_, err := decoder.Decode(Context{Schema: "Contact"}, nil)
	if err == nil || !strings.Contains(err.Error(), `schema "Contact"`) {
		t.Fatalf("expected a schema-scoped error, got %v", err)
	}
}

func TestDecodeDisallowUnknownFields(t *testing.T) {
	decoder := NewDecoder[contact](WithDisallowUnknownFields[contact]())
	fields := map[string]any{"name": "Ada", "legacy": true}

	_, err := decoder.Decode(Context{Schema: "Contact"}, fields)
	if err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
}

func TestDecodeUseNumberKeepsPrecision(t *testing.T) {
	decoder := NewDecoder[contact](WithUseNumber[contact]())
	fields := map[string]any{
		"name":  "Ada",
		"prefs": map[string]any{"max_items": int64(9007199254740993)},
	}

	result, err := decoder.Decode(Context{Schema: "Contact"}, fields)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	number, ok := result.Prefs["max_items"].(json.Number)
	if !ok {
		t.Fatalf("expected json.Number, got %T", result.Prefs["max_items"])
	}
	if number.String() != "9007199254740993" {
		t.Fatalf("expected full precision, got %s", number)
	}
}

func TestDecodePreHookRewritesFields(t *testing.T) {
	renameLegacy := func(_ Context, fields map[string]any) (map[string]any, error) {
		if value, ok := fields["full_name"]; ok {
			fields["name"] = value
			delete(fields, "full_name")
		}
		return fields, nil
	}
	decoder := NewDecoder[contact](
		WithPreHook[contact](renameLegacy),
		WithDisallowUnknownFields[contact](),
	)

	fields := map[string]any{"full_name": "Ada"}
	result, err := decoder.Decode(Context{Schema: "Contact"}, fields)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if result.Name != "Ada" {
		t.Fatalf("expected pre-hook rename, got %#v", result)
	}
	// The caller's map is cloned before hooks run.
	if _, ok := fields["name"]; ok {
		t.Fatalf("expected input map untouched, got %v", fields)
	}
}

func TestDecodePreHookErrorCarriesSchema(t *testing.T) {
	boom := errors.New("boom")
	decoder := NewDecoder[contact](
		WithPreHook[contact](func(Context, map[string]any) (map[string]any, error) {
			return nil, boom
		}),
	)

	_, err := decoder.Decode(Context{Schema: "Contact"}, map[string]any{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped hook error, got %v", err)
	}
	if !strings.Contains(err.Error(), `pre-hook for schema "Contact"`) {
		t.Fatalf("expected schema context in error, got %v", err)
	}
}

func TestDecodePostHookValidates(t *testing.T) {
	requireName := func(ctx Context, result *contact) error {
		if result.Name == "" {
			return fmt.Errorf("name missing in %s", ctx.Collection)
		}
		result.Name = strings.ToUpper(result.Name)
		return nil
	}
	decoder := NewDecoder[contact](WithPostHook[contact](requireName))

	result, err := decoder.Decode(Context{Schema: "Contact", Collection: "contact"}, map[string]any{"name": "Ada"})
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if result.Name != "ADA" {
		t.Fatalf("expected post-hook rewrite, got %q", result.Name)
	}

	_, err = decoder.Decode(Context{Schema: "Contact", Collection: "contact"}, map[string]any{})
	if err == nil || !strings.Contains(err.Error(), "name missing in contact") {
		t.Fatalf("expected post-hook failure, got %v", err)
	}
}

func TestDecodeCustomDecoder(t *testing.T) {
	decoder := NewDecoder[contact](
		WithCustomDecoder[contact](func(_ Context, fields map[string]any) (contact, error) {
			name, _ := fields["name"].(string)
			return contact{Name: name + "!"}, nil
		}),
	)

	result, err := decoder.Decode(Context{Schema: "Contact"}, map[string]any{"name": "Ada"})
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if result.Name != "Ada!" {
		t.Fatalf("expected custom decoder output, got %q", result.Name)
	}
}
