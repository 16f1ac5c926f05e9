// Package filmmaker is the visual direction pipeline: three agents that
// successively attach a start frame, a camera motion, and (when enabled)
// an end frame to each scene.
package filmmaker

import "github.com/nightreel/narrative-backend/internal/llm"

// AgentCall reports one model call an agent made during Process, so the
// caller can attribute the spend.
type AgentCall struct {
	Agent string
	llm.CallUsage
}

// SceneInput is one scene flowing through the agent chain. Agents add
// their fields and pass everything else through untouched.
type SceneInput struct {
	Order     int     `json:"order"`
	Narration string  `json:"narration"`
	Duration  float64 `json:"duration"`

	VisualDescription string `json:"visualDescription"`
	SceneEnvironment  string `json:"sceneEnvironment"`
	CameraMotion      string `json:"cameraMotion"`

	EndFrame    *string  `json:"endFrame"`
	BlendWeight *float64 `json:"blendWeight"`

	ReferenceImageURL string `json:"referenceImageUrl,omitempty"`
}

// SegmentShares apportions the scene list across narrative segments.
type SegmentShares struct {
	Hook       float64
	Context    float64
	Rising     float64
	Climax     float64
	Resolution float64
	CTA        float64
}

// NarrativeShape is the outline-derived context the composer uses to
// annotate each scene with its narrative position and tension.
type NarrativeShape struct {
	Segments     SegmentShares
	TensionCurve []string
}

// ProductionContext carries the production-wide constants the agents work
// within.
type ProductionContext struct {
	Title string
	// BaseStylePrompt is applied downstream by the image generator; agents
	// must describe content, never re-emit these style tags.
	BaseStylePrompt string
	Shape           NarrativeShape
}

// segmentForIndex names the narrative segment a scene index falls into
// given the share distribution.
func segmentForIndex(idx, total int, shares SegmentShares) string {
	if total <= 0 {
		return "rising"
	}
	pos := float64(idx) / float64(total)
	bounds := []struct {
		name  string
		share float64
	}{
		{"hook", shares.Hook},
		{"context", shares.Context},
		{"rising", shares.Rising},
		{"climax", shares.Climax},
		{"resolution", shares.Resolution},
		{"cta", shares.CTA},
	}
	acc := 0.0
	for _, b := range bounds {
		acc += b.share
		if pos < acc {
			return b.name
		}
	}
	return "cta"
}

// tensionForIndex interpolates the tension curve over the scene list.
func tensionForIndex(idx, total int, curve []string) string {
	if len(curve) == 0 || total <= 0 {
		return "medium"
	}
	ci := idx * len(curve) / total
	if ci >= len(curve) {
		ci = len(curve) - 1
	}
	return curve[ci]
}
