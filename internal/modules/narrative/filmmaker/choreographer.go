package filmmaker

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/nightreel/narrative-backend/internal/llm"
	"github.com/nightreel/narrative-backend/internal/llm/schema"
	"github.com/nightreel/narrative-backend/internal/logger"
)

// Motion vocabulary forbidden in camera directions: words that read as
// instability or speed on a 5-second slot.
var forbiddenMotionWords = []string{
	"zoom", "handheld", "wobble", "shake", "tremor", "truck",
	"fast", "quick", "rapid", "swift",
}

// primaryMovements, checked in order, classify a motion direction for the
// monotony and push-in ratio checks.
var primaryMovements = []string{
	"push-in", "push in", "pull-back", "pull back", "dolly",
	"pan", "tilt", "orbit", "crane", "track", "static", "breathing",
}

var numeralRe = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

// Choreographer motion validator thresholds.
const (
	maxConsecutiveSameMovement = 2
	maxPushInRatio             = 0.40
	minUniqueMotionRatio       = 0.70
	minCountedMotionLength     = 20
)

func choreographerSchema() *schema.Node {
	scene := schema.Object(
		schema.Field("order", schema.Integer()),
		schema.Field("cameraMotion", schema.String()),
	)
	return schema.Object(
		schema.Field("scenes", schema.ArrayOf(scene)),
	)
}

// Choreographer writes one camera motion per scene, calibrated to the
// scene's duration.
type Choreographer struct {
	log    *logger.Logger
	client llm.Client
}

func NewChoreographer(log *logger.Logger, client llm.Client) *Choreographer {
	return &Choreographer{log: log.With("service", "Choreographer"), client: client}
}

// Refine attaches camera motions and reports the usage of the call that
// wrote them. The motion validator is advisory: its findings are logged,
// never enforced, because a flawed motion still beats a dropped batch.
func (c *Choreographer) Refine(ctx context.Context, scenes []SceneInput) ([]SceneInput, llm.CallUsage) {
	if len(scenes) == 0 {
		return scenes, llm.CallUsage{}
	}
	res, err := c.client.GenerateStructured(ctx, llm.TaskChoreographer,
		[]llm.Message{
			{Role: "system", Content: choreographerSystemPrompt},
			{Role: "user", Content: c.buildUserPrompt(scenes)},
		},
		choreographerSchema(),
		&llm.Options{Recovery: llm.RecoverOptions{Log: c.log}},
	)
	if err != nil {
		c.log.Warn("Choreographer pass failed, keeping scenes without motion", "error", err)
		return scenes, llm.CallUsage{}
	}
	call := llm.CallUsage{Provider: res.Provider, Model: res.Model, Usage: res.Usage}

	refined, ok := decodeAgentScenes(res.Parsed)
	if !ok || len(refined) != len(scenes) {
		c.log.Warn("Choreographer returned wrong scene count, keeping scenes without motion",
			"expected", len(scenes), "got", len(refined))
		return scenes, call
	}

	out := make([]SceneInput, len(scenes))
	copy(out, scenes)
	for i := range out {
		if motion := strings.TrimSpace(refined[i].CameraMotion); motion != "" {
			out[i].CameraMotion = motion
		}
	}

	if issues := ValidateMotions(out); len(issues) > 0 {
		c.log.Warn("Camera motion issues (advisory)", "issues", issues)
	}
	return out, call
}

func (c *Choreographer) buildUserPrompt(scenes []SceneInput) string {
	var b strings.Builder
	b.WriteString("SCENES:\n")
	for _, s := range scenes {
		fmt.Fprintf(&b, "[%d] (%.1fs) %s\n", s.Order, s.Duration, s.VisualDescription)
	}
	b.WriteString("\nWrite one cameraMotion per scene, in order. Respond as JSON.")
	return b.String()
}

// ExtractPrimaryMovement classifies a motion direction by its first
// matching movement keyword; empty when none match.
func ExtractPrimaryMovement(motion string) string {
	lower := strings.ToLower(motion)
	for _, mv := range primaryMovements {
		if strings.Contains(lower, mv) {
			return strings.ReplaceAll(mv, " ", "-")
		}
	}
	return ""
}

// ValidateMotions runs the advisory motion checks and returns the issues
// found: forbidden vocabulary, movement monotony, push-in overuse, and
// low variety.
func ValidateMotions(scenes []SceneInput) []string {
	var issues []string

	for _, s := range scenes {
		lower := strings.ToLower(s.CameraMotion)
		for _, w := range forbiddenMotionWords {
			if strings.Contains(lower, w) {
				issues = append(issues, fmt.Sprintf("scene %d: forbidden motion word %q", s.Order, w))
			}
		}
	}

	// monotony: more than maxConsecutive of the same primary movement
	run := 0
	prev := ""
	for _, s := range scenes {
		mv := ExtractPrimaryMovement(s.CameraMotion)
		if mv != "" && mv == prev {
			run++
			if run == maxConsecutiveSameMovement {
				issues = append(issues, fmt.Sprintf("more than %d consecutive %q movements ending at scene %d",
					maxConsecutiveSameMovement, mv, s.Order))
			}
		} else {
			run = 0
		}
		prev = mv
	}

	// push-in ratio
	if len(scenes) > 0 {
		pushIns := 0
		for _, s := range scenes {
			if ExtractPrimaryMovement(s.CameraMotion) == "push-in" {
				pushIns++
			}
		}
		if ratio := float64(pushIns) / float64(len(scenes)); ratio > maxPushInRatio {
			issues = append(issues, fmt.Sprintf("push-in used in %.0f%% of scenes (max %.0f%%)",
				ratio*100, maxPushInRatio*100))
		}
	}

	// variety: unique motions after numeral normalization, counting only
	// directions long enough to be real
	counted := 0
	unique := map[string]bool{}
	for _, s := range scenes {
		motion := strings.TrimSpace(s.CameraMotion)
		if len(motion) <= minCountedMotionLength {
			continue
		}
		counted++
		unique[numeralRe.ReplaceAllString(strings.ToLower(motion), "N")] = true
	}
	if counted > 0 {
		if ratio := float64(len(unique)) / float64(counted); ratio < minUniqueMotionRatio {
			issues = append(issues, fmt.Sprintf("only %.0f%% of motions are unique (min %.0f%%)",
				ratio*100, minUniqueMotionRatio*100))
		}
	}

	return issues
}

const choreographerSystemPrompt = `You are a camera choreographer. For each scene write one smooth, slow camera motion matched to its duration: 3-4 seconds gets a static or breathing frame, 5-6 seconds a short slow push or drift, 7 seconds and up a full slow dolly or orbit. Every motion must read calm and deliberate. Never use zooms, handheld looks, shakes, trucks, or any fast movement. Vary movements across the scene list.`
