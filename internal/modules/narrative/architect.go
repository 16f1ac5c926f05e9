package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/nightreel/narrative-backend/internal/llm"
	"github.com/nightreel/narrative-backend/internal/logger"
)

// sceneSlotSeconds is the nominal length of one scene slot; target duration
// divides into scene count by it.
const sceneSlotSeconds = 5

// OutlineRequest carries everything the architect needs to plan a story.
type OutlineRequest struct {
	Title              string
	Format             string
	Brief              string
	UserNotes          string
	EditorialObjective string
	ScriptStyle        string
	TargetDuration     int
	AvoidPatterns      []string
	// DedupNotes lists prior-episode hooks and angles the new outline must
	// not repeat.
	DedupNotes string
}

// SceneCount converts a target duration to the number of scene slots.
func SceneCount(targetDurationSec int) int {
	if targetDurationSec <= 0 {
		return 0
	}
	return (targetDurationSec + sceneSlotSeconds - 1) / sceneSlotSeconds
}

// Architect plans the narrative blueprint for an output.
type Architect struct {
	log    *logger.Logger
	client llm.Client
}

func NewArchitect(log *logger.Logger, client llm.Client) *Architect {
	return &Architect{log: log.With("service", "Architect"), client: client}
}

// GenerateOutline produces a validated StoryOutline plus the usage of the
// call that planned it. Structural invariants are enforced after recovery;
// an outline that still breaks them is an error, never silently patched
// here.
func (a *Architect) GenerateOutline(ctx context.Context, req OutlineRequest) (*StoryOutline, llm.CallUsage, error) {
	msgs := []llm.Message{
		{Role: "system", Content: architectSystemPrompt},
		{Role: "user", Content: a.buildUserPrompt(req)},
	}
	res, err := a.client.GenerateStructured(ctx, llm.TaskStoryArchitect, msgs, OutlineSchema(), &llm.Options{
		Recovery: OutlineRecoverOptions(a.log),
	})
	if err != nil {
		return nil, llm.CallUsage{}, fmt.Errorf("architect generation: %w", err)
	}
	call := llm.CallUsage{Provider: res.Provider, Model: res.Model, Usage: res.Usage}

	outline, err := OutlineFromValue(res.Parsed)
	if err != nil {
		return nil, call, err
	}
	if err := outline.CheckInvariants(); err != nil {
		return nil, call, fmt.Errorf("architect produced invalid outline: %w", err)
	}

	a.log.Info("Story outline generated",
		"beats", len(outline.RisingBeats),
		"open_loops", len(outline.PlannedOpenLoops()),
		"resolution_level", outline.ResolutionLevel,
	)
	return outline, call, nil
}

func (a *Architect) buildUserPrompt(req OutlineRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan the narrative for a %s titled %q.\n", req.Format, req.Title)
	fmt.Fprintf(&b, "Target duration: %d seconds (%d scene slots of %d seconds).\n",
		req.TargetDuration, SceneCount(req.TargetDuration), sceneSlotSeconds)
	if req.Brief != "" {
		fmt.Fprintf(&b, "\nCURATED BRIEF:\n%s\n", req.Brief)
	}
	if req.EditorialObjective != "" {
		fmt.Fprintf(&b, "\nEditorial objective: %s\n", req.EditorialObjective)
	}
	if req.ScriptStyle != "" {
		fmt.Fprintf(&b, "Script style: %s\n", req.ScriptStyle)
	}
	if req.UserNotes != "" {
		fmt.Fprintf(&b, "\nUser notes:\n%s\n", req.UserNotes)
	}
	if req.DedupNotes != "" {
		fmt.Fprintf(&b, "\nDO NOT REPEAT these hooks and angles from earlier episodes:\n%s\n", req.DedupNotes)
	}
	if len(req.AvoidPatterns) > 0 {
		fmt.Fprintf(&b, "\nAvoid these patterns: %s\n", strings.Join(req.AvoidPatterns, "; "))
	}
	return b.String()
}

const architectSystemPrompt = `You are a story architect for investigative video narratives. Plan the full arc before any prose exists: a hook strategy with one variant per tonal level (green, moderate, aggressive, lawless), a promise to the viewer, numbered rising beats that each reveal something and open a new question, a climax with its formula, resolution points and angle, a CTA approach, the emotional arc and tone progression, editorial decisions on what to reveal, hold back, and ignore, a runtime distribution across segments, a tension curve (one value per beat at minimum, pausing before the peak), and which open loops deliberately stay open. Respond with the outline as JSON only.`
