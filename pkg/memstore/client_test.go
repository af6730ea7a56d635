package memstore_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"

	docmap "github.com/goliatone/go-docmap"
	"github.com/goliatone/go-docmap/pkg/memstore"
)

func testCollection(t *testing.T) docmap.Collection {
	t.Helper()
	return memstore.New().Database("app").Collection("person")
}

func TestInsertAssignsIdentifier(t *testing.T) {
	coll := testCollection(t)

	id, err := coll.Insert(context.Background(), map[string]any{"name": "Ada"})
	if err != nil {
		t.Fatalf("unexpected error from Insert: %v", err)
	}
	raw, ok := id.(string)
	if !ok {
		t.Fatalf("expected generated string id, got %T", id)
	}
	if _, err := uuid.Parse(raw); err != nil {
		t.Fatalf("expected uuid id, got %q: %v", raw, err)
	}

	stored, err := coll.FindOne(context.Background(), map[string]any{"name": "Ada"})
	if err != nil {
		t.Fatalf("unexpected error from FindOne: %v", err)
	}
	if stored[docmap.IDField] != raw {
		t.Fatalf("expected stored id %q, got %v", raw, stored[docmap.IDField])
	}
}

func TestInsertKeepsProvidedIdentifier(t *testing.T) {
	coll := testCollection(t)

	id, err := coll.Insert(context.Background(), map[string]any{docmap.IDField: "u1", "name": "Ada"})
	if err != nil {
		t.Fatalf("unexpected error from Insert: %v", err)
	}
	if id != "u1" {
		t.Fatalf("expected id u1, got %v", id)
	}
}

func TestInsertRejectsDuplicateIdentifier(t *testing.T) {
	coll := testCollection(t)

	if _, err := coll.Insert(context.Background(), map[string]any{docmap.IDField: "u1"}); err != nil {
		t.Fatalf("unexpected error from first Insert: %v", err)
	}
	_, err := coll.Insert(context.Background(), map[string]any{docmap.IDField: "u1"})
	if err == nil || !strings.Contains(err.Error(), "duplicate id") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestInsertCopiesDocument(t *testing.T) {
	coll := testCollection(t)

	doc := map[string]any{docmap.IDField: "u1", "prefs": map[string]any{"theme": "light"}}
	if _, err := coll.Insert(context.Background(), doc); err != nil {
		t.Fatalf("unexpected error from Insert: %v", err)
	}
	doc["prefs"].(map[string]any)["theme"] = "dark"

	stored, err := coll.FindOne(context.Background(), map[string]any{docmap.IDField: "u1"})
	if err != nil {
		t.Fatalf("unexpected error from FindOne: %v", err)
	}
	if theme := stored["prefs"].(map[string]any)["theme"]; theme != "light" {
		t.Fatalf("expected stored copy untouched, got theme %v", theme)
	}

	// Results are copies too.
	stored["prefs"].(map[string]any)["theme"] = "dark"
	again, err := coll.FindOne(context.Background(), map[string]any{docmap.IDField: "u1"})
	if err != nil {
		t.Fatalf("unexpected error from FindOne: %v", err)
	}
	if theme := again["prefs"].(map[string]any)["theme"]; theme != "light" {
		t.Fatalf("expected store isolated from result mutation, got theme %v", theme)
	}
}

func TestReplaceSwapsWholeDocument(t *testing.T) {
	coll := testCollection(t)

	if _, err := coll.Insert(context.Background(), map[string]any{docmap.IDField: "u1", "name": "Ada", "age": int64(36)}); err != nil {
		t.Fatalf("unexpected error from Insert: %v", err)
	}
	if err := coll.Replace(context.Background(), "u1", map[string]any{"name": "Lovelace"}); err != nil {
		t.Fatalf("unexpected error from Replace: %v", err)
	}

	stored, err := coll.FindOne(context.Background(), map[string]any{docmap.IDField: "u1"})
	if err != nil {
		t.Fatalf("unexpected error from FindOne: %v", err)
	}
	want := map[string]any{docmap.IDField: "u1", "name": "Lovelace"}
	if !reflect.DeepEqual(stored, want) {
		t.Fatalf("expected %v, got %v", want, stored)
	}
}

func TestReplaceMissingDocument(t *testing.T) {
	coll := testCollection(t)
	err := coll.Replace(context.Background(), "ghost", map[string]any{"name": "Ada"})
	if !errors.Is(err, docmap.ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
}

func TestUpdateAppliesBatch(t *testing.T) {
	coll := testCollection(t)

	seed := map[string]any{
		docmap.IDField: "u1",
		"name":         "Ada",
		"legacy":       true,
		"prefs":        map[string]any{"theme": "light", "lang": "en"},
	}
	if _, err := coll.Insert(context.Background(), seed); err != nil {
		t.Fatalf("unexpected error from Insert: %v", err)
	}

	ops := docmap.UpdateOps{
		Set:   map[string]any{"prefs.theme": "dark", "city": "London"},
		Unset: []string{"legacy"},
	}
	if err := coll.Update(context.Background(), "u1", ops); err != nil {
		t.Fatalf("unexpected error from Update: %v", err)
	}

	stored, err := coll.FindOne(context.Background(), map[string]any{docmap.IDField: "u1"})
	if err != nil {
		t.Fatalf("unexpected error from FindOne: %v", err)
	}
	want := map[string]any{
		docmap.IDField: "u1",
		"name":         "Ada",
		"city":         "London",
		"prefs":        map[string]any{"theme": "dark", "lang": "en"},
	}
	if !reflect.DeepEqual(stored, want) {
		t.Fatalf("expected %v, got %v", want, stored)
	}
}

func TestUpdateCopiesSetValues(t *testing.T) {
	coll := testCollection(t)

	if _, err := coll.Insert(context.Background(), map[string]any{docmap.IDField: "u1"}); err != nil {
		t.Fatalf("unexpected error from Insert: %v", err)
	}

	prefs := map[string]any{"theme": "light"}
	ops := docmap.UpdateOps{Set: map[string]any{"prefs": prefs}}
	if err := coll.Update(context.Background(), "u1", ops); err != nil {
		t.Fatalf("unexpected error from Update: %v", err)
	}
	prefs["theme"] = "dark"

	stored, err := coll.FindOne(context.Background(), map[string]any{docmap.IDField: "u1"})
	if err != nil {
		t.Fatalf("unexpected error from FindOne: %v", err)
	}
	if theme := stored["prefs"].(map[string]any)["theme"]; theme != "light" {
		t.Fatalf("expected stored copy untouched, got theme %v", theme)
	}
}

func TestUpdateMissingDocument(t *testing.T) {
	coll := testCollection(t)
	err := coll.Update(context.Background(), "ghost", docmap.UpdateOps{Set: map[string]any{"name": "Ada"}})
	if !errors.Is(err, docmap.ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
}

func TestDeleteRemovesDocument(t *testing.T) {
	coll := testCollection(t)

	if _, err := coll.Insert(context.Background(), map[string]any{docmap.IDField: "u1"}); err != nil {
		t.Fatalf("unexpected error from Insert: %v", err)
	}
	if err := coll.Delete(context.Background(), "u1"); err != nil {
		t.Fatalf("unexpected error from Delete: %v", err)
	}
	if _, err := coll.FindOne(context.Background(), map[string]any{docmap.IDField: "u1"}); !errors.Is(err, docmap.ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments after delete, got %v", err)
	}
	if err := coll.Delete(context.Background(), "u1"); !errors.Is(err, docmap.ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments on second delete, got %v", err)
	}
}

func TestFindOneReturnsFirstMatchByIdentifier(t *testing.T) {
	coll := testCollection(t)

	for _, doc := range []map[string]any{
		{docmap.IDField: "u3", "city": "London"},
		{docmap.IDField: "u1", "city": "London"},
		{docmap.IDField: "u2", "city": "Paris"},
	} {
		if _, err := coll.Insert(context.Background(), doc); err != nil {
			t.Fatalf("unexpected error from Insert: %v", err)
		}
	}

	stored, err := coll.FindOne(context.Background(), map[string]any{"city": "London"})
	if err != nil {
		t.Fatalf("unexpected error from FindOne: %v", err)
	}
	if stored[docmap.IDField] != "u1" {
		t.Fatalf("expected lowest id first, got %v", stored[docmap.IDField])
	}
}

func TestFindDrainsMatchesInOrder(t *testing.T) {
	coll := testCollection(t)

	for _, doc := range []map[string]any{
		{docmap.IDField: "u2", "city": "London"},
		{docmap.IDField: "u1", "city": "London"},
		{docmap.IDField: "u3", "city": "Paris"},
	} {
		if _, err := coll.Insert(context.Background(), doc); err != nil {
			t.Fatalf("unexpected error from Insert: %v", err)
		}
	}

	cursor, err := coll.Find(context.Background(), map[string]any{"city": "London"})
	if err != nil {
		t.Fatalf("unexpected error from Find: %v", err)
	}

	var ids []string
	for cursor.Next(context.Background()) {
		ids = append(ids, cursor.Document()[docmap.IDField].(string))
	}
	if err := cursor.Err(); err != nil {
		t.Fatalf("unexpected cursor error: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"u1", "u2"}) {
		t.Fatalf("expected [u1 u2], got %v", ids)
	}
	if err := cursor.Close(context.Background()); err != nil {
		t.Fatalf("unexpected error from Close: %v", err)
	}
	if cursor.Document() != nil {
		t.Fatalf("expected nil document after close")
	}
}

func TestFindEmptyCollection(t *testing.T) {
	coll := testCollection(t)

	cursor, err := coll.Find(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error from Find: %v", err)
	}
	if cursor.Next(context.Background()) {
		t.Fatalf("expected no results")
	}
	if err := cursor.Close(context.Background()); err != nil {
		t.Fatalf("unexpected error from Close: %v", err)
	}
}

func TestCollectionsAreIsolated(t *testing.T) {
	client := memstore.New()
	people := client.Database("app").Collection("person")
	tasks := client.Database("app").Collection("task")
	reporting := client.Database("reporting").Collection("person")

	for _, coll := range []docmap.Collection{people, tasks, reporting} {
		if _, err := coll.Insert(context.Background(), map[string]any{docmap.IDField: "u1", "name": "Ada"}); err != nil {
			t.Fatalf("unexpected error from Insert: %v", err)
		}
	}

	if err := people.Delete(context.Background(), "u1"); err != nil {
		t.Fatalf("unexpected error from Delete: %v", err)
	}
	if _, err := tasks.FindOne(context.Background(), map[string]any{docmap.IDField: "u1"}); err != nil {
		t.Fatalf("expected sibling collection untouched: %v", err)
	}
	if _, err := reporting.FindOne(context.Background(), map[string]any{docmap.IDField: "u1"}); err != nil {
		t.Fatalf("expected sibling database untouched: %v", err)
	}
}
