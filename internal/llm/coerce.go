package llm

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/nightreel/narrative-backend/internal/llm/schema"
	"github.com/nightreel/narrative-backend/internal/logger"
)

// numberWithSuffix matches the leading numeric token of strings like
// "500k", "1.2M views", or "250k-500k" (ranges resolve to the first bound).
var numberWithSuffix = regexp.MustCompile(`([0-9][0-9.,]*)\s*([kKmMbB])?`)

// Coerce reshapes a decoded JSON value to fit the schema. It never fails:
// every mismatch resolves to a converted value or the schema default, so the
// result always validates. Enum fallbacks are logged because they are the
// one coercion that substitutes meaning rather than form.
func Coerce(n *schema.Node, v any, log *logger.Logger) any {
	if log == nil {
		log = logger.NewNop()
	}
	return coerce(n, v, log)
}

func coerce(n *schema.Node, v any, log *logger.Logger) any {
	if v == nil {
		if n.Nullable {
			return nil
		}
		return schema.Default(n)
	}
	switch n.Kind {
	case schema.KindObject:
		m, ok := v.(map[string]any)
		if !ok {
			return schema.Default(n)
		}
		out := make(map[string]any, len(n.Fields))
		for _, f := range n.Fields {
			fv, present := m[f.Name]
			if !present {
				if f.Node.Optional {
					continue
				}
				out[f.Name] = schema.Default(f.Node)
				continue
			}
			out[f.Name] = coerce(f.Node, fv, log)
		}
		return out
	case schema.KindString:
		return coerceString(v)
	case schema.KindNumber:
		return coerceNumber(v)
	case schema.KindInteger:
		return math.Round(coerceNumber(v))
	case schema.KindBool:
		return coerceBool(v)
	case schema.KindArray:
		arr, ok := v.([]any)
		if !ok {
			// scalar where an array belongs: wrap it
			arr = []any{v}
		}
		out := make([]any, len(arr))
		for i, item := range arr {
			out[i] = coerce(n.Elem, item, log)
		}
		return out
	case schema.KindEnum:
		return coerceEnum(n, v, log)
	}
	return schema.Default(n)
}

func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		// compound values stringify so no content is silently dropped
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func coerceNumber(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		m := numberWithSuffix.FindStringSubmatch(t)
		if m == nil {
			return 0
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			return 0
		}
		switch strings.ToLower(m[2]) {
		case "k":
			f *= 1_000
		case "m":
			f *= 1_000_000
		case "b":
			f *= 1_000_000_000
		}
		return f
	default:
		return 0
	}
}

func coerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			return true
		default:
			return false
		}
	case float64:
		return t != 0
	default:
		return false
	}
}

func coerceEnum(n *schema.Node, v any, log *logger.Logger) string {
	if len(n.Values) == 0 {
		return coerceString(v)
	}
	s := coerceString(v)

	// exact match first
	for _, allowed := range n.Values {
		if s == allowed {
			return allowed
		}
	}

	// fuzzy: case, accent, and punctuation insensitive
	want := normalizeEnumToken(s)
	for _, allowed := range n.Values {
		if normalizeEnumToken(allowed) == want {
			return allowed
		}
	}

	// partial containment in either direction
	if want != "" {
		for _, allowed := range n.Values {
			have := normalizeEnumToken(allowed)
			if strings.Contains(have, want) || strings.Contains(want, have) {
				return allowed
			}
		}
	}

	log.Warn("Enum value unmatched, falling back to first allowed value",
		"provided", s, "fallback", n.Values[0], "allowed", n.Values)
	return n.Values[0]
}

// normalizeEnumToken lowercases, strips diacritics, and collapses
// punctuation and whitespace to single hyphens.
func normalizeEnumToken(s string) string {
	decomposed := norm.NFD.String(strings.ToLower(strings.TrimSpace(s)))
	var b strings.Builder
	prevHyphen := false
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark from decomposition: drop
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen && b.Len() > 0 {
				b.WriteRune('-')
				prevHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
