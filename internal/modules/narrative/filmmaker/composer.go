package filmmaker

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nightreel/narrative-backend/internal/llm"
	"github.com/nightreel/narrative-backend/internal/llm/schema"
	"github.com/nightreel/narrative-backend/internal/logger"
)

// Temporal hint extraction. Scripts reference eras loosely; the composer
// pins every start frame to a period so wardrobe, vehicles, and signage
// stay consistent.
var (
	fourDigitYearRe = regexp.MustCompile(`\b(1[89][0-9]{2}|20[0-2][0-9]|2030)\b`)
	decadePhraseRe  = regexp.MustCompile(`\b((?:18|19|20)[0-9]0)s\b`)
	shortDecadeRe   = regexp.MustCompile(`'([0-9]0)s\b`)
)

// ExtractTemporalHints pulls era references out of narration text: explicit
// years 1800-2030, decade phrases ("the 1950s"), and two-digit decades
// ("the '50s", which read as 19xx for 50-90 and 20xx for 00-30).
func ExtractTemporalHints(text string) []string {
	seen := map[string]bool{}
	var hints []string
	add := func(h string) {
		if h != "" && !seen[h] {
			seen[h] = true
			hints = append(hints, h)
		}
	}
	for _, m := range fourDigitYearRe.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range decadePhraseRe.FindAllStringSubmatch(text, -1) {
		add(m[1] + "s")
	}
	for _, m := range shortDecadeRe.FindAllStringSubmatch(text, -1) {
		d, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if d >= 50 && d <= 90 {
			add(fmt.Sprintf("19%02ds", d))
		} else if d <= 30 {
			add(fmt.Sprintf("20%02ds", d))
		}
	}
	return hints
}

func composerSchema() *schema.Node {
	scene := schema.Object(
		schema.Field("order", schema.Integer()),
		schema.Field("visualDescription", schema.String()),
		schema.Field("sceneEnvironment", schema.String()),
	)
	return schema.Object(
		schema.Field("scenes", schema.ArrayOf(scene)),
	)
}

// Composer writes each scene's start frame: a concrete visual description
// plus an environment label used for continuity grouping.
type Composer struct {
	log    *logger.Logger
	client llm.Client
}

func NewComposer(log *logger.Logger, client llm.Client) *Composer {
	return &Composer{log: log.With("service", "Composer"), client: client}
}

// Refine returns the scenes with visual descriptions and environments
// attached, plus the usage of the call that produced them. Any failure
// degrades to the input scenes unchanged; the composer can only improve a
// batch, never lose it.
func (c *Composer) Refine(ctx context.Context, scenes []SceneInput, prod ProductionContext) ([]SceneInput, llm.CallUsage) {
	if len(scenes) == 0 {
		return scenes, llm.CallUsage{}
	}
	res, err := c.client.GenerateStructured(ctx, llm.TaskComposer,
		[]llm.Message{
			{Role: "system", Content: composerSystemPrompt},
			{Role: "user", Content: c.buildUserPrompt(scenes, prod)},
		},
		composerSchema(),
		&llm.Options{Recovery: llm.RecoverOptions{Log: c.log}},
	)
	if err != nil {
		c.log.Warn("Composer pass failed, keeping unrefined scenes", "error", err)
		return scenes, llm.CallUsage{}
	}
	call := llm.CallUsage{Provider: res.Provider, Model: res.Model, Usage: res.Usage}

	refined, ok := decodeAgentScenes(res.Parsed)
	if !ok || len(refined) != len(scenes) {
		c.log.Warn("Composer returned wrong scene count, keeping unrefined scenes",
			"expected", len(scenes), "got", len(refined))
		return scenes, call
	}

	out := make([]SceneInput, len(scenes))
	copy(out, scenes)
	for i := range out {
		desc := strings.TrimSpace(refined[i].VisualDescription)
		if desc != "" {
			out[i].VisualDescription = stripStyleTags(desc, prod.BaseStylePrompt)
		}
		if env := strings.TrimSpace(refined[i].SceneEnvironment); env != "" {
			out[i].SceneEnvironment = env
		}
	}
	return out, call
}

func (c *Composer) buildUserPrompt(scenes []SceneInput, prod ProductionContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Production: %s\n", prod.Title)

	var allNarration strings.Builder
	for _, s := range scenes {
		allNarration.WriteString(s.Narration)
		allNarration.WriteString(" ")
	}
	if hints := ExtractTemporalHints(allNarration.String()); len(hints) > 0 {
		fmt.Fprintf(&b, "Temporal setting referenced in narration: %s. Keep every frame period-accurate.\n", strings.Join(hints, ", "))
	}
	if cc := buildContinuityContext(scenes); cc != "" {
		b.WriteString(cc)
	}

	b.WriteString("\nSCENES:\n")
	total := len(scenes)
	for i, s := range scenes {
		seg := segmentForIndex(i, total, prod.Shape.Segments)
		tension := tensionForIndex(i, total, prod.Shape.TensionCurve)
		fmt.Fprintf(&b, "[%d] (%s segment, %s tension", s.Order, seg, tension)
		if s.ReferenceImageURL != "" {
			b.WriteString(", has pinned reference image")
		}
		fmt.Fprintf(&b, ") %s\n", s.Narration)
	}
	b.WriteString("\nFor every scene in order, write the start frame: visualDescription and sceneEnvironment. Respond as JSON.")
	return b.String()
}

// buildContinuityContext tells the composer which scenes already share an
// environment so repeated locations stay visually identical.
func buildContinuityContext(scenes []SceneInput) string {
	groups := map[string][]int{}
	var order []string
	for _, s := range scenes {
		env := strings.TrimSpace(s.SceneEnvironment)
		if env == "" {
			continue
		}
		if _, seen := groups[env]; !seen {
			order = append(order, env)
		}
		groups[env] = append(groups[env], s.Order)
	}
	var shared []string
	for _, env := range order {
		if ids := groups[env]; len(ids) > 1 {
			parts := make([]string, len(ids))
			for i, id := range ids {
				parts[i] = strconv.Itoa(id)
			}
			shared = append(shared, fmt.Sprintf("%s (scenes %s)", env, strings.Join(parts, ", ")))
		}
	}
	if len(shared) == 0 {
		return ""
	}
	return fmt.Sprintf("Shared environments that must stay visually identical across their scenes: %s.\n", strings.Join(shared, "; "))
}

// stripStyleTags removes base style fragments an agent echoed back; the
// style layer is applied once downstream.
func stripStyleTags(desc, baseStyle string) string {
	if baseStyle == "" {
		return desc
	}
	for _, tag := range strings.Split(baseStyle, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		desc = strings.ReplaceAll(desc, tag, "")
	}
	return strings.TrimSpace(strings.Trim(desc, ", "))
}

func decodeAgentScenes(v any) ([]SceneInput, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	items, ok := m["scenes"].([]any)
	if !ok {
		return nil, false
	}
	out := make([]SceneInput, 0, len(items))
	for _, item := range items {
		sm, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		s := SceneInput{}
		if o, ok := sm["order"].(float64); ok {
			s.Order = int(o)
		}
		if d, ok := sm["visualDescription"].(string); ok {
			s.VisualDescription = d
		}
		if e, ok := sm["sceneEnvironment"].(string); ok {
			s.SceneEnvironment = e
		}
		if cm, ok := sm["cameraMotion"].(string); ok {
			s.CameraMotion = cm
		}
		if ef, ok := sm["endFrame"].(string); ok && ef != "" {
			s.EndFrame = &ef
		}
		if bw, ok := sm["blendWeight"].(float64); ok {
			s.BlendWeight = &bw
		}
		out = append(out, s)
	}
	return out, true
}

const composerSystemPrompt = `You are a visual composer for documentary-style video. For each scene, describe one concrete start frame: subject, setting, light, and framing, grounded in the narration. Name a short sceneEnvironment label and reuse the exact label whenever scenes share a location. Describe content only; never include style tags, render quality words, or aspect ratios. Scenes with a pinned reference image keep their subject; describe around it.`
