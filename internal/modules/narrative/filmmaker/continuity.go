package filmmaker

import (
	"context"
	"fmt"
	"strings"

	"github.com/nightreel/narrative-backend/internal/llm"
	"github.com/nightreel/narrative-backend/internal/llm/schema"
	"github.com/nightreel/narrative-backend/internal/logger"
)

// Keyword sets for the coherence checks. Start and end frames of one scene
// cannot disagree on these.
var (
	interiorWords = []string{"interior", "indoor", "inside", "room", "office", "hallway", "kitchen", "bedroom", "basement", "corridor"}
	exteriorWords = []string{"exterior", "outdoor", "outside", "street", "field", "forest", "rooftop", "parking", "alley"}
	dayWords      = []string{"daylight", "daytime", "noon", "morning", "afternoon", "sunlit", "sunny", "midday"}
	nightWords    = []string{"night", "midnight", "moonlit", "moonlight", "dark sky", "evening"}
)

// Blend weight floors by scene duration: the shorter the scene, the closer
// the end frame must stay to the start.
const (
	shortSceneMaxDuration = 4.0
	shortSceneMinWeight   = 0.85
	midSceneMaxDuration   = 6.0
	midSceneMinWeight     = 0.65
)

func continuitySchema() *schema.Node {
	scene := schema.Object(
		schema.Field("order", schema.Integer()),
		schema.Field("endFrame", schema.Nullable(schema.String())),
		schema.Field("blendWeight", schema.Nullable(schema.Number())),
	)
	return schema.Object(
		schema.Field("scenes", schema.ArrayOf(scene)),
	)
}

// ContinuityChecker derives each scene's end frame strictly from its start
// frame plus camera motion, then checks coherence between the two.
type ContinuityChecker struct {
	log    *logger.Logger
	client llm.Client
}

func NewContinuityChecker(log *logger.Logger, client llm.Client) *ContinuityChecker {
	return &ContinuityChecker{log: log.With("service", "ContinuityChecker"), client: client}
}

// Refine attaches end frames and blend weights and reports the usage of
// the call that derived them. Static and breathing frames keep their end
// null regardless of what the model answered; any failure degrades to null
// ends.
func (c *ContinuityChecker) Refine(ctx context.Context, scenes []SceneInput) ([]SceneInput, llm.CallUsage) {
	if len(scenes) == 0 {
		return scenes, llm.CallUsage{}
	}
	res, err := c.client.GenerateStructured(ctx, llm.TaskContinuity,
		[]llm.Message{
			{Role: "system", Content: continuitySystemPrompt},
			{Role: "user", Content: c.buildUserPrompt(scenes)},
		},
		continuitySchema(),
		&llm.Options{Recovery: llm.RecoverOptions{Log: c.log}},
	)
	if err != nil {
		c.log.Warn("Continuity pass failed, leaving end frames null", "error", err)
		return scenes, llm.CallUsage{}
	}
	call := llm.CallUsage{Provider: res.Provider, Model: res.Model, Usage: res.Usage}

	refined, ok := decodeAgentScenes(res.Parsed)
	if !ok || len(refined) != len(scenes) {
		c.log.Warn("Continuity checker returned wrong scene count, leaving end frames null",
			"expected", len(scenes), "got", len(refined))
		return scenes, call
	}

	out := make([]SceneInput, len(scenes))
	copy(out, scenes)
	for i := range out {
		mv := ExtractPrimaryMovement(out[i].CameraMotion)
		if mv == "static" || mv == "breathing" {
			if refined[i].EndFrame != nil {
				c.log.Warn("Model produced an end frame for a static scene, discarding",
					"scene", out[i].Order)
			}
			continue
		}
		out[i].EndFrame = refined[i].EndFrame
		out[i].BlendWeight = refined[i].BlendWeight
	}

	if issues := ValidateCoherence(out); len(issues) > 0 {
		c.log.Warn("Frame coherence issues (advisory)", "issues", issues)
	}
	return out, call
}

func (c *ContinuityChecker) buildUserPrompt(scenes []SceneInput) string {
	var b strings.Builder
	b.WriteString("SCENES:\n")
	for _, s := range scenes {
		fmt.Fprintf(&b, "[%d] (%.1fs) start: %s | motion: %s\n",
			s.Order, s.Duration, s.VisualDescription, s.CameraMotion)
	}
	b.WriteString("\nFor each scene, derive endFrame and blendWeight, or null for both when the frame barely changes. Respond as JSON.")
	return b.String()
}

// ValidateCoherence flags start/end pairs that disagree on interior vs
// exterior or day vs night, and blend weights too low for the scene's
// duration.
func ValidateCoherence(scenes []SceneInput) []string {
	var issues []string
	for _, s := range scenes {
		if s.EndFrame == nil {
			continue
		}
		start := strings.ToLower(s.VisualDescription)
		end := strings.ToLower(*s.EndFrame)

		if containsAny(start, interiorWords) && containsAny(end, exteriorWords) ||
			containsAny(start, exteriorWords) && containsAny(end, interiorWords) {
			issues = append(issues, fmt.Sprintf("scene %d: start and end disagree on interior/exterior", s.Order))
		}
		if containsAny(start, dayWords) && containsAny(end, nightWords) ||
			containsAny(start, nightWords) && containsAny(end, dayWords) {
			issues = append(issues, fmt.Sprintf("scene %d: start and end disagree on day/night", s.Order))
		}

		if s.BlendWeight != nil {
			w := *s.BlendWeight
			switch {
			case s.Duration <= shortSceneMaxDuration && w < shortSceneMinWeight:
				issues = append(issues, fmt.Sprintf("scene %d: blend weight %.2f below %.2f for a %.1fs scene",
					s.Order, w, shortSceneMinWeight, s.Duration))
			case s.Duration > shortSceneMaxDuration && s.Duration <= midSceneMaxDuration && w < midSceneMinWeight:
				issues = append(issues, fmt.Sprintf("scene %d: blend weight %.2f below %.2f for a %.1fs scene",
					s.Order, w, midSceneMinWeight, s.Duration))
			}
		}
	}
	return issues
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

const continuitySystemPrompt = `You are a continuity checker. For each scene you receive a start frame and a camera motion. Derive the end frame strictly from those two: where does the described motion leave the camera after the scene's duration? Never introduce subjects, locations, lighting, or times of day absent from the start frame. blendWeight expresses how much of the start frame survives into the end frame, 0 to 1; short scenes stay close to 1. When the motion is static or breathing, answer null for both fields.`
