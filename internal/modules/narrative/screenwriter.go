package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/nightreel/narrative-backend/internal/llm"
	"github.com/nightreel/narrative-backend/internal/llm/schema"
	"github.com/nightreel/narrative-backend/internal/logger"
)

// DraftScene is one segmented scene before visual direction runs.
type DraftScene struct {
	Order     int     `json:"order"`
	Narration string  `json:"narration"`
	Duration  float64 `json:"duration"`
}

// ScreenplayResult is the screenwriter's segmentation of the draft.
// Provider and Model identify which assignment served the call, for cost
// attribution.
type ScreenplayResult struct {
	Title    string
	Scenes   []DraftScene
	Usage    llm.Usage
	Provider string
	Model    string
}

// ScreenwriterInput drives segmentation. For hook-only outputs Prose is a
// micro-brief rather than a full draft and HookOnly selects the stricter
// task configuration.
type ScreenwriterInput struct {
	Title            string
	Prose            string
	OutlineText      string
	TargetSceneCount int
	HookOnly         bool
	// FormatType and AvoidPatterns come from the planner's monetization
	// payload and steer segmentation without changing the narration.
	FormatType    string
	AvoidPatterns []string
	// Feedback carries accumulated validation history on retries.
	Feedback string
}

func screenplaySchema() *schema.Node {
	scene := schema.Object(
		schema.Field("order", schema.Integer()),
		schema.Field("narration", schema.String()),
		schema.Field("duration", schema.Number()),
	)
	return schema.Object(
		schema.Field("title", schema.String()),
		schema.Field("scenes", schema.ArrayOf(scene)),
	)
}

// Screenwriter segments prose into timed scenes.
type Screenwriter struct {
	log    *logger.Logger
	client llm.Client
}

func NewScreenwriter(log *logger.Logger, client llm.Client) *Screenwriter {
	return &Screenwriter{log: log.With("service", "Screenwriter"), client: client}
}

func (s *Screenwriter) Segment(ctx context.Context, in ScreenwriterInput) (*ScreenplayResult, error) {
	task := llm.TaskScreenwriter
	if in.HookOnly {
		task = llm.TaskScreenwriterHook
	}
	msgs := []llm.Message{
		{Role: "system", Content: screenwriterSystemPrompt},
		{Role: "user", Content: s.buildUserPrompt(in)},
	}
	res, err := s.client.GenerateStructured(ctx, task, msgs, screenplaySchema(), &llm.Options{
		Recovery: llm.RecoverOptions{
			Aliases: map[string]string{"sceneList": "scenes", "segments": "scenes"},
			Log:     s.log,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("screenwriter generation: %w", err)
	}

	out, err := decodeScreenplay(res.Parsed)
	if err != nil {
		return nil, err
	}
	out.Usage = res.Usage
	out.Provider = res.Provider
	out.Model = res.Model
	if len(out.Scenes) == 0 {
		return nil, fmt.Errorf("screenwriter returned no scenes")
	}

	// reassert dense zero-based order regardless of what the model numbered
	for i := range out.Scenes {
		out.Scenes[i].Order = i
	}
	// scene count target is advisory; log the drift, keep the result
	if in.TargetSceneCount > 0 && len(out.Scenes) != in.TargetSceneCount {
		s.log.Warn("Scene count differs from target",
			"target", in.TargetSceneCount, "actual", len(out.Scenes))
	}
	return out, nil
}

func decodeScreenplay(v any) (*ScreenplayResult, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("screenplay payload is not an object")
	}
	out := &ScreenplayResult{}
	if title, ok := m["title"].(string); ok {
		// models love to quote their titles
		out.Title = strings.Trim(strings.TrimSpace(title), `"'`)
	}
	scenes, _ := m["scenes"].([]any)
	for _, item := range scenes {
		sm, ok := item.(map[string]any)
		if !ok {
			continue
		}
		scene := DraftScene{}
		if o, ok := sm["order"].(float64); ok {
			scene.Order = int(o)
		}
		if n, ok := sm["narration"].(string); ok {
			scene.Narration = n
		}
		if d, ok := sm["duration"].(float64); ok {
			scene.Duration = d
		}
		out.Scenes = append(out.Scenes, scene)
	}
	return out, nil
}

func (s *Screenwriter) buildUserPrompt(in ScreenwriterInput) string {
	var b strings.Builder
	if in.Feedback != "" {
		b.WriteString(in.Feedback)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Segment the narration for %q into scenes.\n", in.Title)
	if in.TargetSceneCount > 0 {
		fmt.Fprintf(&b, "Aim for about %d scenes of roughly %d seconds each.\n", in.TargetSceneCount, sceneSlotSeconds)
	}
	if in.HookOnly {
		b.WriteString("This is a hook-only teaser: open hard, give nothing away, and end the final scene with the channel sign-off narration, exactly: " + HookOnlySignoff + "\n")
	}
	if in.FormatType != "" {
		fmt.Fprintf(&b, "Format type: %s.\n", in.FormatType)
	}
	if len(in.AvoidPatterns) > 0 {
		fmt.Fprintf(&b, "Avoid these patterns: %s\n", strings.Join(in.AvoidPatterns, "; "))
	}
	if in.OutlineText != "" {
		fmt.Fprintf(&b, "\n%s\n", in.OutlineText)
	}
	fmt.Fprintf(&b, "\nNARRATION:\n%s\n", in.Prose)
	return b.String()
}

const screenwriterSystemPrompt = `You are a screenwriter. Split narration into ordered scenes for a 5-second-slot video. Each scene gets the narration spoken over it and an estimated duration in seconds between 3 and 7.5. Never rewrite the narration's meaning; only segment and trim for speakability. Respond as JSON with a title and the scene list.`
