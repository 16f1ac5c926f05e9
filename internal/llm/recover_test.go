package llm

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/nightreel/narrative-backend/internal/llm/schema"
)

func personSchema() *schema.Node {
	return schema.Object(
		schema.Field("name", schema.String()),
		schema.Field("age", schema.Number()),
		schema.Field("tags", schema.ArrayOf(schema.String())),
		schema.Field("status", schema.Enum("active", "archived")),
	)
}

func TestRecoverDirectParse(t *testing.T) {
	raw := `{"name":"Ada","age":36,"tags":["x"],"status":"active"}`
	got, err := Recover(raw, personSchema(), RecoverOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := got.(map[string]any)
	if m["name"] != "Ada" || m["age"] != float64(36) {
		t.Fatalf("unexpected result: %#v", m)
	}
}

func TestRecoverStripsUnknownKeys(t *testing.T) {
	raw := `{"name":"Ada","age":36,"tags":[],"status":"active","extra":"junk"}`
	got, err := Recover(raw, personSchema(), RecoverOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got.(map[string]any)["extra"]; ok {
		t.Fatalf("unknown key survived recovery")
	}
}

func TestRecoverUnwrapsSingleKeyWrappers(t *testing.T) {
	raw := `{"data":{"result":{"name":"Ada","age":36,"tags":[],"status":"active"}}}`
	got, err := Recover(raw, personSchema(), RecoverOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.(map[string]any)["name"] != "Ada" {
		t.Fatalf("wrapper not unwrapped: %#v", got)
	}
}

func TestRecoverUnwrapDepthBounded(t *testing.T) {
	// seven wrappers: deeper than the bound, so the payload is out of
	// reach and defaults take over instead
	raw := `{"a":{"b":{"c":{"d":{"e":{"f":{"g":{"name":"Ada","age":36,"tags":[],"status":"active"}}}}}}}}`
	got, err := Recover(raw, personSchema(), RecoverOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.(map[string]any)["name"] != "" {
		t.Fatalf("expected default name for over-nested payload, got %#v", got)
	}
}

func TestRecoverAliasesAndDefaults(t *testing.T) {
	raw := `{"fullName":"Ada","age":36}`
	got, err := Recover(raw, personSchema(), RecoverOptions{
		Aliases: map[string]string{"fullName": "name"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := got.(map[string]any)
	if m["name"] != "Ada" {
		t.Fatalf("alias not applied: %#v", m)
	}
	if tags, ok := m["tags"].([]any); !ok || len(tags) != 0 {
		t.Fatalf("missing field not defaulted: %#v", m)
	}
	if m["status"] != "active" {
		t.Fatalf("enum default should be first value, got %v", m["status"])
	}
}

func TestRecoverFlattensSubObjects(t *testing.T) {
	raw := `{"profile":{"displayName":"Ada"},"age":36,"tags":[],"status":"active"}`
	got, err := Recover(raw, personSchema(), RecoverOptions{
		Flatten: map[string]map[string]string{
			"profile": {"displayName": "name"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.(map[string]any)["name"] != "Ada" {
		t.Fatalf("flatten not applied: %#v", got)
	}
}

func TestRecoverCoercesTypes(t *testing.T) {
	raw := `{"name":42,"age":"500k","tags":"solo","status":"ACTIVE"}`
	got, err := Recover(raw, personSchema(), RecoverOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := got.(map[string]any)
	if m["name"] != "42" {
		t.Fatalf("number not stringified: %v", m["name"])
	}
	if m["age"] != float64(500000) {
		t.Fatalf("suffix number not parsed: %v", m["age"])
	}
	tags, ok := m["tags"].([]any)
	if !ok || len(tags) != 1 || tags[0] != "solo" {
		t.Fatalf("scalar not wrapped into array: %#v", m["tags"])
	}
	if m["status"] != "active" {
		t.Fatalf("enum not fuzzy-matched: %v", m["status"])
	}
}

func TestRecoverSanitizesBrokenText(t *testing.T) {
	raw := "```json\n{“name”: “Ada”, \"age\": 36, \"tags\": [\"x\",], \"status\": \"active\",}\n```"
	got, err := Recover(raw, personSchema(), RecoverOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.(map[string]any)["name"] != "Ada" {
		t.Fatalf("sanitation failed: %#v", got)
	}
}

func TestRecoverExtractsBalancedFragment(t *testing.T) {
	raw := `Sure! Here is the result you asked for: {"name":"Ada","age":36,"tags":[],"status":"active"} Hope that helps.`
	got, err := Recover(raw, personSchema(), RecoverOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.(map[string]any)["name"] != "Ada" {
		t.Fatalf("fragment extraction failed: %#v", got)
	}
}

func TestRecoverClosesTruncatedJSON(t *testing.T) {
	raw := `{"name":"Ada","age":36,"tags":["x"`
	got, err := Recover(raw, personSchema(), RecoverOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := got.(map[string]any)
	if m["name"] != "Ada" {
		t.Fatalf("truncated payload not recovered: %#v", m)
	}
}

func TestRecoverFailsOnHopelessInput(t *testing.T) {
	_, err := Recover("no structure here at all", personSchema(), RecoverOptions{})
	if err == nil {
		t.Fatalf("expected error for unrecoverable input")
	}
	var rerr *RecoveryError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RecoveryError, got %T", err)
	}
}

func TestRecoveryErrorTruncatesRaw(t *testing.T) {
	raw := strings.Repeat("x", 2000)
	_, err := Recover(raw, personSchema(), RecoverOptions{})
	var rerr *RecoveryError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RecoveryError, got %v", err)
	}
	if len(rerr.Raw) > 500 {
		t.Fatalf("raw not truncated: %d bytes", len(rerr.Raw))
	}
}

func TestRecoverIdempotent(t *testing.T) {
	raw := `{"fullName":"Ada","age":"1.2M"}`
	opts := RecoverOptions{Aliases: map[string]string{"fullName": "name"}}
	first, err := Recover(raw, personSchema(), opts)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	// feeding a recovered value back through must be a no-op
	encoded, _ := json.Marshal(first)
	second, err := Recover(string(encoded), personSchema(), opts)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("recovery not idempotent:\nfirst:  %#v\nsecond: %#v", first, second)
	}
	if first.(map[string]any)["age"] != float64(1200000) {
		t.Fatalf("suffix parse wrong: %v", first.(map[string]any)["age"])
	}
}
