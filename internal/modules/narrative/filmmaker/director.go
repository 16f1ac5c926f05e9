package filmmaker

import (
	"context"

	"github.com/nightreel/narrative-backend/internal/llm"
	"github.com/nightreel/narrative-backend/internal/logger"
)

// batchSize caps how many scenes one agent call handles; long scripts run
// as sequential batches.
const batchSize = 50

// Director sequences the three agents over a scene list. Refinement is
// strictly additive: whatever an agent cannot improve passes through
// unrefined, and a batch can never come back smaller than it went in.
type Director struct {
	log           *logger.Logger
	composer      *Composer
	choreographer *Choreographer
	continuity    *ContinuityChecker

	// endFramesEnabled gates the continuity pass. Off by default: current
	// image backends drift too far on end frames, so scenes ship with null
	// ends until that's solved. The checker stays wired so enabling it is
	// a config change, not a code change.
	endFramesEnabled bool
}

func NewDirector(log *logger.Logger, composer *Composer, choreographer *Choreographer, continuity *ContinuityChecker, endFramesEnabled bool) *Director {
	return &Director{
		log:              log.With("service", "Director"),
		composer:         composer,
		choreographer:    choreographer,
		continuity:       continuity,
		endFramesEnabled: endFramesEnabled,
	}
}

// Process runs the visual direction pipeline over the full scene list and
// returns the refined scenes in the same order and count, plus one AgentCall
// per model call the agents made.
func (d *Director) Process(ctx context.Context, scenes []SceneInput, prod ProductionContext) ([]SceneInput, []AgentCall) {
	out := make([]SceneInput, 0, len(scenes))
	var calls []AgentCall
	record := func(agent string, cu llm.CallUsage) {
		if cu.Model != "" {
			calls = append(calls, AgentCall{Agent: agent, CallUsage: cu})
		}
	}
	for start := 0; start < len(scenes); start += batchSize {
		end := start + batchSize
		if end > len(scenes) {
			end = len(scenes)
		}
		batch := make([]SceneInput, end-start)
		copy(batch, scenes[start:end])

		var cu llm.CallUsage
		batch, cu = d.composer.Refine(ctx, batch, prod)
		record("composer", cu)
		batch, cu = d.choreographer.Refine(ctx, batch)
		record("choreographer", cu)
		if d.endFramesEnabled {
			batch, cu = d.continuity.Refine(ctx, batch)
			record("continuity-checker", cu)
		} else {
			for i := range batch {
				batch[i].EndFrame = nil
				batch[i].BlendWeight = nil
			}
		}
		out = append(out, batch...)
	}
	d.log.Info("Visual direction complete",
		"scenes", len(out),
		"batches", (len(scenes)+batchSize-1)/batchSize,
		"end_frames", d.endFramesEnabled,
	)
	return out, calls
}
