package llm

import (
	"encoding/json"
	"fmt"

	"github.com/nightreel/narrative-backend/internal/llm/schema"
	"github.com/nightreel/narrative-backend/internal/logger"
)

// maxUnwrapDepth bounds wrapper peeling so a pathological nesting chain
// cannot loop.
const maxUnwrapDepth = 5

// rawErrorLimit caps how much of the offending payload a RecoveryError
// carries for diagnostics.
const rawErrorLimit = 500

// RecoverOptions carries the per-schema repair tables. The engine itself is
// schema-agnostic; callers that know their payload's dialect (alias names a
// model tends to emit, wrapper objects it nests fields under) supply them
// here.
type RecoverOptions struct {
	// Aliases renames top-level keys: emittedName -> schemaName. Applied
	// only when the schema name is not already present.
	Aliases map[string]string
	// Flatten lifts fields out of a wrapper sub-object: wrapperKey ->
	// (innerName -> schemaName). The wrapper is removed afterwards.
	Flatten map[string]map[string]string
	// Normalize is an optional schema-specific hook run after aliasing and
	// flattening, for repairs a rename table cannot express.
	Normalize func(map[string]any) map[string]any
	Log       *logger.Logger
}

// RecoveryError reports that every repair attempt failed. Raw holds the
// (truncated) offending payload; no partially guessed value is ever
// returned alongside it.
type RecoveryError struct {
	Raw string
	Err error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("structured output recovery failed: %v (raw: %s)", e.Err, e.Raw)
}

func (e *RecoveryError) Unwrap() error { return e.Err }

// Recover turns raw model text into a value conforming to the schema, or
// fails with a RecoveryError. Attempts, in order, first success wins:
//
//  1. direct parse and validate
//  2. single-key wrapper unwrap (bounded), revalidate
//  3. field normalization: flatten tables, alias renames, the custom hook,
//     then schema defaults for whatever required fields are still missing
//  4. schema-directed type coercion
//  5. text sanitation and balanced-fragment extraction, then the chain
//     again on the repaired text
//
// Successful results are stripped to the schema's declared keys.
func Recover(raw string, node *schema.Node, opts RecoverOptions) (any, error) {
	log := opts.Log
	if log == nil {
		log = logger.NewNop()
	}

	value, parseErr := decodeJSON(raw)
	if parseErr != nil {
		// attempt 5: the text itself is broken; repair it first
		cleaned, hits := SanitizeJSONText(raw)
		value, parseErr = decodeJSON(cleaned)
		if parseErr != nil {
			frag, ok := ExtractBalancedJSON(cleaned)
			if ok {
				value, parseErr = decodeJSON(frag)
			}
			if parseErr != nil {
				return nil, &RecoveryError{Raw: truncate(raw, rawErrorLimit), Err: parseErr}
			}
			hits = append(hits, "balanced_extraction")
		}
		log.Debug("Recovered parseable JSON from sanitized text", "repairs", hits)
	}

	out, err := recoverValue(value, node, opts, log)
	if err != nil {
		return nil, &RecoveryError{Raw: truncate(raw, rawErrorLimit), Err: err}
	}
	return out, nil
}

// RecoverValue runs the value-level repair chain (attempts 1-4) on an
// already decoded payload.
func RecoverValue(value any, node *schema.Node, opts RecoverOptions) (any, error) {
	log := opts.Log
	if log == nil {
		log = logger.NewNop()
	}
	out, err := recoverValue(value, node, opts, log)
	if err != nil {
		return nil, &RecoveryError{Raw: truncate(stringify(value), rawErrorLimit), Err: err}
	}
	return out, nil
}

func recoverValue(value any, node *schema.Node, opts RecoverOptions, log *logger.Logger) (any, error) {
	// attempt 1: direct
	if err := node.Validate(value); err == nil {
		return schema.Strip(node, value), nil
	}

	// attempt 2: unwrap single-key wrappers
	unwrapped := recursiveUnwrap(value)
	if err := node.Validate(unwrapped); err == nil {
		log.Debug("Structured output recovered by wrapper unwrap")
		return schema.Strip(node, unwrapped), nil
	}

	// attempt 3: field normalization
	normalized := normalizeFields(unwrapped, node, opts)
	if err := node.Validate(normalized); err == nil {
		log.Debug("Structured output recovered by field normalization")
		return schema.Strip(node, normalized), nil
	}

	// attempt 4: type coercion
	coerced := Coerce(node, normalized, log)
	if err := node.Validate(coerced); err != nil {
		return nil, err
	}
	log.Debug("Structured output recovered by schema coercion")
	return schema.Strip(node, coerced), nil
}

func decodeJSON(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// recursiveUnwrap peels single-key object wrappers ({"data": {...}}) down
// to the first multi-key object or non-object, at most maxUnwrapDepth deep.
func recursiveUnwrap(v any) any {
	for depth := 0; depth < maxUnwrapDepth; depth++ {
		m, ok := v.(map[string]any)
		if !ok || len(m) != 1 {
			return v
		}
		for _, inner := range m {
			if _, ok := inner.(map[string]any); !ok {
				return v
			}
			v = inner
		}
	}
	return v
}

// normalizeFields applies flatten tables, alias renames, the custom hook,
// and finally schema defaults for required fields still missing. Unknown
// keys survive here (Strip removes them after validation).
func normalizeFields(v any, node *schema.Node, opts RecoverOptions) any {
	m, ok := v.(map[string]any)
	if !ok || node.Kind != schema.KindObject {
		return v
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		out[k] = val
	}

	for wrapper, mapping := range opts.Flatten {
		sub, ok := out[wrapper].(map[string]any)
		if !ok {
			continue
		}
		for inner, target := range mapping {
			if _, exists := out[target]; exists {
				continue
			}
			if iv, ok := sub[inner]; ok {
				out[target] = iv
			}
		}
		delete(out, wrapper)
	}

	for alias, target := range opts.Aliases {
		av, ok := out[alias]
		if !ok {
			continue
		}
		if _, exists := out[target]; !exists {
			out[target] = av
		}
		delete(out, alias)
	}

	if opts.Normalize != nil {
		out = opts.Normalize(out)
	}

	for _, f := range node.Fields {
		if f.Node.Optional {
			continue
		}
		if _, present := out[f.Name]; !present {
			out[f.Name] = schema.Default(f.Node)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func stringify(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
