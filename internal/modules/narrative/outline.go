// Package narrative implements the story pipeline: outline architecture,
// long-form writing, scene segmentation, validation, and the visual
// direction handoff.
package narrative

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Hook tonal levels, mildest to most aggressive. Every outline carries one
// variant per level.
var HookLevels = []string{"green", "moderate", "aggressive", "lawless"}

// Tension curve values.
const (
	TensionLow    = "low"
	TensionMedium = "medium"
	TensionHigh   = "high"
	TensionPeak   = "peak"
	TensionPause  = "pause"
)

// Resolution levels: how much of the mystery the output gives away.
const (
	ResolutionNone    = "none"
	ResolutionPartial = "partial"
	ResolutionFull    = "full"
)

type HookVariant struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

type RisingBeat struct {
	Order            int    `json:"order"`
	Revelation       string `json:"revelation"`
	QuestionAnswered string `json:"questionAnswered"`
	NewQuestion      string `json:"newQuestion"`
	SourceReference  string `json:"sourceReference"`
}

// OpenLoop is a question the narrative deliberately opens. ClosedAtBeat nil
// means the loop stays open past the end on purpose.
type OpenLoop struct {
	Question     string `json:"question"`
	OpenedAtBeat int    `json:"openedAtBeat"`
	ClosedAtBeat *int   `json:"closedAtBeat"`
}

// SegmentDistribution apportions runtime across narrative segments; the
// fractions sum to roughly 1.
type SegmentDistribution struct {
	Hook       float64 `json:"hook"`
	Context    float64 `json:"context"`
	Rising     float64 `json:"rising"`
	Climax     float64 `json:"climax"`
	Resolution float64 `json:"resolution"`
	CTA        float64 `json:"cta"`
}

// StoryOutline is the approved narrative blueprint every downstream stage
// reads from.
type StoryOutline struct {
	HookStrategy string        `json:"hookStrategy"`
	HookVariants []HookVariant `json:"hookVariants"`

	PromiseSetup string       `json:"promiseSetup"`
	RisingBeats  []RisingBeat `json:"risingBeats"`

	ClimaxMoment  string `json:"climaxMoment"`
	ClimaxFormula string `json:"climaxFormula"`

	ResolutionPoints []string `json:"resolutionPoints"`
	ResolutionAngle  string   `json:"resolutionAngle"`
	CTAApproach      string   `json:"ctaApproach"`

	EmotionalArc    string `json:"emotionalArc"`
	ToneProgression string `json:"toneProgression"`

	WhatToReveal []string `json:"whatToReveal"`
	WhatToHold   []string `json:"whatToHold"`
	WhatToIgnore []string `json:"whatToIgnore"`

	SegmentDistribution SegmentDistribution `json:"segmentDistribution"`
	TensionCurve        []string            `json:"tensionCurve"`

	OpenLoops       []OpenLoop `json:"openLoops"`
	ResolutionLevel string     `json:"resolutionLevel"`
}

// OutlineFromValue decodes a recovered schema value into a StoryOutline.
func OutlineFromValue(v any) (*StoryOutline, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode outline value: %w", err)
	}
	var outline StoryOutline
	if err := json.Unmarshal(raw, &outline); err != nil {
		return nil, fmt.Errorf("decode outline: %w", err)
	}
	return &outline, nil
}

// CheckInvariants verifies the structural guarantees downstream stages
// depend on.
func (o *StoryOutline) CheckInvariants() error {
	if len(o.HookVariants) != len(HookLevels) {
		return fmt.Errorf("outline must carry exactly %d hook variants, got %d", len(HookLevels), len(o.HookVariants))
	}
	for i, v := range o.HookVariants {
		if v.Level != HookLevels[i] {
			return fmt.Errorf("hook variant %d: expected level %q, got %q", i, HookLevels[i], v.Level)
		}
	}
	if len(o.RisingBeats) < 2 {
		return fmt.Errorf("outline must carry at least 2 rising beats, got %d", len(o.RisingBeats))
	}
	if len(o.TensionCurve) < len(o.RisingBeats) {
		return fmt.Errorf("tension curve (%d) shorter than rising beats (%d)", len(o.TensionCurve), len(o.RisingBeats))
	}
	switch o.ResolutionLevel {
	case ResolutionNone, ResolutionPartial, ResolutionFull:
	default:
		return fmt.Errorf("invalid resolution level %q", o.ResolutionLevel)
	}
	return nil
}

// PlannedOpenLoops returns the loops the outline intends to leave open.
func (o *StoryOutline) PlannedOpenLoops() []OpenLoop {
	var open []OpenLoop
	for _, l := range o.OpenLoops {
		if l.ClosedAtBeat == nil {
			open = append(open, l)
		}
	}
	return open
}

// HookForLevel returns the variant text for a tonal level; empty when the
// level is unknown.
func (o *StoryOutline) HookForLevel(level string) string {
	for _, v := range o.HookVariants {
		if v.Level == level {
			return v.Text
		}
	}
	return ""
}

// FormatForPrompt renders the outline as the blueprint block injected into
// writer and screenwriter prompts.
func (o *StoryOutline) FormatForPrompt() string {
	var b strings.Builder
	b.WriteString("NARRATIVE BLUEPRINT\n")
	fmt.Fprintf(&b, "Hook strategy: %s\n", o.HookStrategy)
	for _, v := range o.HookVariants {
		fmt.Fprintf(&b, "  Hook (%s): %s\n", v.Level, v.Text)
	}
	fmt.Fprintf(&b, "Promise: %s\n", o.PromiseSetup)
	b.WriteString("Rising beats:\n")
	for _, beat := range o.RisingBeats {
		fmt.Fprintf(&b, "  %d. %s", beat.Order, beat.Revelation)
		if beat.QuestionAnswered != "" {
			fmt.Fprintf(&b, " (answers: %s)", beat.QuestionAnswered)
		}
		if beat.NewQuestion != "" {
			fmt.Fprintf(&b, " (opens: %s)", beat.NewQuestion)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Climax: %s\n", o.ClimaxMoment)
	if o.ClimaxFormula != "" {
		fmt.Fprintf(&b, "Climax formula: %s\n", o.ClimaxFormula)
	}
	if len(o.ResolutionPoints) > 0 {
		fmt.Fprintf(&b, "Resolution points: %s\n", strings.Join(o.ResolutionPoints, "; "))
	}
	fmt.Fprintf(&b, "Resolution angle: %s\n", o.ResolutionAngle)
	fmt.Fprintf(&b, "Resolution level: %s\n", o.ResolutionLevel)
	fmt.Fprintf(&b, "CTA approach: %s\n", o.CTAApproach)
	fmt.Fprintf(&b, "Emotional arc: %s\n", o.EmotionalArc)
	fmt.Fprintf(&b, "Tone progression: %s\n", o.ToneProgression)
	if len(o.WhatToReveal) > 0 {
		fmt.Fprintf(&b, "Reveal: %s\n", strings.Join(o.WhatToReveal, "; "))
	}
	if len(o.WhatToHold) > 0 {
		fmt.Fprintf(&b, "Hold back: %s\n", strings.Join(o.WhatToHold, "; "))
	}
	if len(o.WhatToIgnore) > 0 {
		fmt.Fprintf(&b, "Ignore: %s\n", strings.Join(o.WhatToIgnore, "; "))
	}
	fmt.Fprintf(&b, "Tension curve: %s\n", strings.Join(o.TensionCurve, " -> "))
	if loops := o.PlannedOpenLoops(); len(loops) > 0 {
		b.WriteString("Loops to leave open:\n")
		for _, l := range loops {
			fmt.Fprintf(&b, "  - %s (opened at beat %d)\n", l.Question, l.OpenedAtBeat)
		}
	}
	return b.String()
}

// MonetizationMeta is the planner's strategic payload attached to an
// output. Everything is optional; zero values mean "no override".
type MonetizationMeta struct {
	Role               string   `json:"role"`
	FormatType         string   `json:"formatType"`
	StrategicNotes     string   `json:"strategicNotes"`
	EpisodeNumber      int      `json:"episodeNumber"`
	ScriptStyle        string   `json:"scriptStyle"`
	EditorialObjective string   `json:"editorialObjective"`
	AvoidPatterns      []string `json:"avoidPatterns"`
}
