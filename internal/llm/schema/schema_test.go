package schema

import (
	"reflect"
	"strings"
	"testing"
)

func sceneSchema() *Node {
	return Object(
		Field("title", String()),
		Field("duration", Number()),
		Field("order", Integer()),
		Field("approved", Bool()),
		Field("tags", ArrayOf(String())),
		Field("environment", Enum("interior", "exterior")),
		Field("note", Optional(String())),
		Field("endFrame", Nullable(String())),
	)
}

func TestValidateAccepts(t *testing.T) {
	v := map[string]any{
		"title":       "Opening",
		"duration":    4.5,
		"order":       float64(3),
		"approved":    true,
		"tags":        []any{"cold", "open"},
		"environment": "interior",
		"endFrame":    nil,
		"extraneous":  "ignored",
	}
	if err := sceneSchema().Validate(v); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	base := func() map[string]any {
		return map[string]any{
			"title":       "Opening",
			"duration":    4.5,
			"order":       float64(3),
			"approved":    true,
			"tags":        []any{},
			"environment": "interior",
			"endFrame":    nil,
		}
	}
	cases := []struct {
		name    string
		mutate  func(map[string]any)
		wantSub string
	}{
		{"missing required", func(m map[string]any) { delete(m, "title") }, "required field missing"},
		{"wrong type", func(m map[string]any) { m["duration"] = "4.5" }, "expected number"},
		{"fractional integer", func(m map[string]any) { m["order"] = 3.5 }, "expected integer"},
		{"bad enum", func(m map[string]any) { m["environment"] = "underwater" }, "is not one of"},
		{"null where not allowed", func(m map[string]any) { m["title"] = nil }, "unexpected null"},
		{"element type", func(m map[string]any) { m["tags"] = []any{"ok", 7.0} }, "expected string"},
	}
	for _, c := range cases {
		m := base()
		c.mutate(m)
		err := sceneSchema().Validate(m)
		if err == nil {
			t.Fatalf("%s: expected error", c.name)
		}
		if !strings.Contains(err.Error(), c.wantSub) {
			t.Fatalf("%s: error %q does not mention %q", c.name, err, c.wantSub)
		}
	}
}

func TestValidateOptionalMayBeAbsent(t *testing.T) {
	v := map[string]any{
		"title":       "x",
		"duration":    1.0,
		"order":       float64(0),
		"approved":    false,
		"tags":        []any{},
		"environment": "exterior",
		"endFrame":    "frame.png",
	}
	if err := sceneSchema().Validate(v); err != nil {
		t.Fatalf("optional field absence should be fine: %v", err)
	}
}

func TestStripRemovesUnknownKeysRecursively(t *testing.T) {
	node := Object(
		Field("name", String()),
		Field("items", ArrayOf(Object(Field("id", String())))),
	)
	v := map[string]any{
		"name":  "a",
		"junk":  true,
		"items": []any{map[string]any{"id": "1", "debug": "x"}},
	}
	want := map[string]any{
		"name":  "a",
		"items": []any{map[string]any{"id": "1"}},
	}
	if got := Strip(node, v); !reflect.DeepEqual(got, want) {
		t.Fatalf("Strip = %#v, want %#v", got, want)
	}
}

func TestDefaultValues(t *testing.T) {
	node := Object(
		Field("name", String()),
		Field("count", Number()),
		Field("live", Bool()),
		Field("tags", ArrayOf(String())),
		Field("level", Enum("green", "moderate")),
		Field("skip", Optional(String())),
		Field("frame", Nullable(String())),
	)
	got := Default(node).(map[string]any)
	if got["name"] != "" || got["count"] != float64(0) || got["live"] != false {
		t.Fatalf("scalar defaults wrong: %#v", got)
	}
	if arr := got["tags"].([]any); len(arr) != 0 {
		t.Fatalf("array default should be empty, got %#v", arr)
	}
	if got["level"] != "green" {
		t.Fatalf("enum default should be first value, got %v", got["level"])
	}
	if _, ok := got["skip"]; ok {
		t.Fatalf("optional field should be absent from defaults")
	}
	if got["frame"] != nil {
		t.Fatalf("nullable default should be nil, got %v", got["frame"])
	}
}

func TestJSONSchemaShape(t *testing.T) {
	node := Object(
		Field("title", Describe(String(), "display title")),
		Field("order", Integer()),
		Field("note", Optional(String())),
		Field("environment", Nullable(Enum("interior", "exterior"))),
		Field("scenes", ArrayOf(Object(Field("id", String())))),
	)
	got := node.JSONSchema()

	if got["type"] != "object" {
		t.Fatalf("type = %v", got["type"])
	}
	if got["additionalProperties"] != false {
		t.Fatalf("additionalProperties should be false")
	}
	required := got["required"].([]string)
	if !reflect.DeepEqual(required, []string{"title", "order", "environment", "scenes"}) {
		t.Fatalf("required = %v", required)
	}

	props := got["properties"].(map[string]any)
	title := props["title"].(map[string]any)
	if title["description"] != "display title" {
		t.Fatalf("description not carried: %#v", title)
	}

	env := props["environment"].(map[string]any)
	if !reflect.DeepEqual(env["type"], []string{"string", "null"}) {
		t.Fatalf("nullable enum type = %#v", env["type"])
	}
	if !reflect.DeepEqual(env["enum"], []any{"interior", "exterior", nil}) {
		t.Fatalf("nullable enum values = %#v", env["enum"])
	}

	scenes := props["scenes"].(map[string]any)
	items := scenes["items"].(map[string]any)
	if items["type"] != "object" {
		t.Fatalf("array items not exported: %#v", items)
	}
}

func TestLookup(t *testing.T) {
	node := sceneSchema()
	if node.Lookup("duration") == nil {
		t.Fatal("expected duration field")
	}
	if node.Lookup("missing") != nil {
		t.Fatal("expected nil for unknown field")
	}
}
