package narrative

import (
	"github.com/nightreel/narrative-backend/internal/llm"
	"github.com/nightreel/narrative-backend/internal/llm/schema"
	"github.com/nightreel/narrative-backend/internal/logger"
)

// OutlineSchema is the structural contract for the story architect's
// output.
func OutlineSchema() *schema.Node {
	hookVariant := schema.Object(
		schema.Field("level", schema.Enum(HookLevels...)),
		schema.Field("text", schema.String()),
	)
	beat := schema.Object(
		schema.Field("order", schema.Integer()),
		schema.Field("revelation", schema.String()),
		schema.Field("questionAnswered", schema.String()),
		schema.Field("newQuestion", schema.String()),
		schema.Field("sourceReference", schema.String()),
	)
	openLoop := schema.Object(
		schema.Field("question", schema.String()),
		schema.Field("openedAtBeat", schema.Integer()),
		schema.Field("closedAtBeat", schema.Nullable(schema.Integer())),
	)
	segments := schema.Object(
		schema.Field("hook", schema.Number()),
		schema.Field("context", schema.Number()),
		schema.Field("rising", schema.Number()),
		schema.Field("climax", schema.Number()),
		schema.Field("resolution", schema.Number()),
		schema.Field("cta", schema.Number()),
	)
	return schema.Object(
		schema.Field("hookStrategy", schema.String()),
		schema.Field("hookVariants", schema.ArrayOf(hookVariant)),
		schema.Field("promiseSetup", schema.String()),
		schema.Field("risingBeats", schema.ArrayOf(beat)),
		schema.Field("climaxMoment", schema.String()),
		schema.Field("climaxFormula", schema.String()),
		schema.Field("resolutionPoints", schema.ArrayOf(schema.String())),
		schema.Field("resolutionAngle", schema.String()),
		schema.Field("ctaApproach", schema.String()),
		schema.Field("emotionalArc", schema.String()),
		schema.Field("toneProgression", schema.String()),
		schema.Field("whatToReveal", schema.ArrayOf(schema.String())),
		schema.Field("whatToHold", schema.ArrayOf(schema.String())),
		schema.Field("whatToIgnore", schema.ArrayOf(schema.String())),
		schema.Field("segmentDistribution", segments),
		schema.Field("tensionCurve", schema.ArrayOf(schema.Enum(TensionLow, TensionMedium, TensionHigh, TensionPeak, TensionPause))),
		schema.Field("openLoops", schema.ArrayOf(openLoop)),
		schema.Field("resolutionLevel", schema.Enum(ResolutionNone, ResolutionPartial, ResolutionFull)),
	)
}

// outlineWrappers are object keys models like to nest the whole outline
// under, sometimes with sibling keys (so plain unwrapping misses them).
var outlineWrappers = []string{
	"narrativeStrategy", "narrative", "strategy", "storyOutline", "outline", "narrativePlan",
}

// outlineAliases renames keys models emit for outline fields.
var outlineAliases = map[string]string{
	"setupPromise": "promiseSetup",
	"ctaStrategy":  "ctaApproach",
	"cta":          "ctaApproach",
	"beats":        "risingBeats",
	"risingAction": "risingBeats",
	"variants":     "hookVariants",
	"hookLevels":   "hookVariants",
	"hooks":        "hookVariants",
}

var beatAliases = map[string]string{
	"reveal":   "revelation",
	"answered": "questionAnswered",
	"answer":   "questionAnswered",
	"opens":    "newQuestion",
	"question": "newQuestion",
	"source":   "sourceReference",
}

var defaultSegments = map[string]float64{
	"hook": 0.10, "context": 0.15, "rising": 0.40,
	"climax": 0.20, "resolution": 0.10, "cta": 0.05,
}

// OutlineRecoverOptions wires the outline's repair tables into the recovery
// engine.
func OutlineRecoverOptions(log *logger.Logger) llm.RecoverOptions {
	return llm.RecoverOptions{
		Flatten: map[string]map[string]string{
			"editorialDecisions": {
				"whatToReveal": "whatToReveal",
				"whatToHold":   "whatToHold",
				"whatToIgnore": "whatToIgnore",
			},
		},
		Aliases:   outlineAliases,
		Normalize: normalizeOutlineMap,
		Log:       log,
	}
}

// normalizeOutlineMap repairs outline payloads beyond what rename tables
// can express: wrapper spreading, climax/resolution splitting, beat item
// normalization, hook variant synthesis, and curve/segment defaults.
func normalizeOutlineMap(m map[string]any) map[string]any {
	out := m

	// wrappers with sibling keys: spread without clobbering
	for _, w := range outlineWrappers {
		sub, ok := out[w].(map[string]any)
		if !ok {
			continue
		}
		for k, v := range sub {
			if _, exists := out[k]; !exists {
				out[k] = v
			}
		}
		delete(out, w)
	}
	// aliases again, in case a wrapper carried aliased names
	for alias, target := range outlineAliases {
		if av, ok := out[alias]; ok {
			if _, exists := out[target]; !exists {
				out[target] = av
			}
			delete(out, alias)
		}
	}

	// climax as a string or a {moment, formula} object
	if c, ok := out["climax"]; ok {
		switch t := c.(type) {
		case string:
			setIfMissing(out, "climaxMoment", t)
		case map[string]any:
			if v, ok := t["moment"]; ok {
				setIfMissing(out, "climaxMoment", v)
			}
			if v, ok := t["formula"]; ok {
				setIfMissing(out, "climaxFormula", v)
			}
		}
		delete(out, "climax")
	}

	// resolution as a string or a {points, angle} object
	if r, ok := out["resolution"]; ok {
		switch t := r.(type) {
		case string:
			setIfMissing(out, "resolutionAngle", t)
		case map[string]any:
			if v, ok := t["points"]; ok {
				setIfMissing(out, "resolutionPoints", v)
			}
			if v, ok := t["angle"]; ok {
				setIfMissing(out, "resolutionAngle", v)
			}
		}
		delete(out, "resolution")
	}

	out["risingBeats"] = normalizeBeats(out["risingBeats"])
	out["hookVariants"] = normalizeHookVariants(out["hookVariants"], out["hookStrategy"])
	out["segmentDistribution"] = normalizeSegments(out["segmentDistribution"])

	beatCount := 0
	if beats, ok := out["risingBeats"].([]any); ok {
		beatCount = len(beats)
	}
	out["tensionCurve"] = normalizeTensionCurve(out["tensionCurve"], beatCount)

	if loops, ok := out["openLoops"].([]any); ok {
		out["openLoops"] = normalizeOpenLoops(loops)
	}
	if _, ok := out["resolutionLevel"]; !ok {
		out["resolutionLevel"] = ResolutionPartial
	}
	return out
}

func setIfMissing(m map[string]any, key string, v any) {
	if _, exists := m[key]; !exists {
		m[key] = v
	}
}

func normalizeBeats(v any) []any {
	arr, ok := v.([]any)
	if !ok {
		if v == nil {
			return []any{}
		}
		arr = []any{v}
	}
	out := make([]any, 0, len(arr))
	for i, item := range arr {
		var beat map[string]any
		switch t := item.(type) {
		case string:
			beat = map[string]any{"revelation": t}
		case map[string]any:
			beat = t
		default:
			continue
		}
		for alias, target := range beatAliases {
			if av, ok := beat[alias]; ok {
				if _, exists := beat[target]; !exists {
					beat[target] = av
				}
				delete(beat, alias)
			}
		}
		if _, ok := beat["order"]; !ok {
			beat["order"] = float64(i + 1)
		}
		out = append(out, beat)
	}
	return out
}

// normalizeHookVariants accepts strings or objects, assigns tonal levels
// positionally, and pads or trims to exactly one variant per level.
func normalizeHookVariants(v, hookStrategy any) []any {
	arr, _ := v.([]any)
	fallbackText := ""
	if s, ok := hookStrategy.(string); ok {
		fallbackText = s
	}

	texts := make([]string, 0, len(arr))
	for _, item := range arr {
		switch t := item.(type) {
		case string:
			texts = append(texts, t)
		case map[string]any:
			if txt, ok := t["text"].(string); ok {
				texts = append(texts, txt)
			} else if txt, ok := t["hook"].(string); ok {
				texts = append(texts, txt)
			} else {
				texts = append(texts, "")
			}
		}
	}

	out := make([]any, len(HookLevels))
	for i, level := range HookLevels {
		text := fallbackText
		if i < len(texts) && texts[i] != "" {
			text = texts[i]
		} else if len(texts) > 0 && texts[len(texts)-1] != "" {
			text = texts[len(texts)-1]
		}
		out[i] = map[string]any{"level": level, "text": text}
	}
	return out
}

func normalizeSegments(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		m = map[string]any{}
	}
	for k, def := range defaultSegments {
		if _, exists := m[k]; !exists {
			m[k] = def
		}
	}
	return m
}

// normalizeTensionCurve keeps a curve at least as long as the beat list,
// synthesizing a ramp that pauses right before its peak when the model
// omitted or under-filled it.
func normalizeTensionCurve(v any, beatCount int) []any {
	arr, _ := v.([]any)
	if len(arr) >= beatCount && len(arr) >= 2 {
		return arr
	}
	n := beatCount
	if n < 4 {
		n = 4
	}
	out := make([]any, 0, n)
	for i := 0; i < n-2; i++ {
		switch {
		case i < (n-2)/3:
			out = append(out, TensionLow)
		case i < 2*(n-2)/3:
			out = append(out, TensionMedium)
		default:
			out = append(out, TensionHigh)
		}
	}
	out = append(out, TensionPause, TensionPeak)
	return out
}

func normalizeOpenLoops(loops []any) []any {
	out := make([]any, 0, len(loops))
	for _, item := range loops {
		var loop map[string]any
		switch t := item.(type) {
		case string:
			loop = map[string]any{"question": t}
		case map[string]any:
			loop = t
		default:
			continue
		}
		if q, ok := loop["q"]; ok {
			setIfMissing(loop, "question", q)
			delete(loop, "q")
		}
		if _, ok := loop["openedAtBeat"]; !ok {
			loop["openedAtBeat"] = float64(0)
		}
		if _, ok := loop["closedAtBeat"]; !ok {
			loop["closedAtBeat"] = nil
		}
		out = append(out, loop)
	}
	return out
}
