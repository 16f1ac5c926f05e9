package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	apperrors "github.com/nightreel/narrative-backend/internal/errors"
	"github.com/nightreel/narrative-backend/internal/logger"
	"github.com/nightreel/narrative-backend/internal/repos"
	"github.com/nightreel/narrative-backend/internal/types"
)

// OutlineStage runs outline generation end to end: preconditions, brief
// resolution, architecture, persistence, and gate transitions.
type OutlineStage struct {
	log      *logger.Logger
	db       *gorm.DB
	outputs  repos.OutputRepo
	sources  repos.SourceDocRepo
	outlines repos.OutlineProductRepo
	gates    repos.StageGateRepo

	architect *Architect
	costs     *CostNotifier
}

func NewOutlineStage(
	log *logger.Logger,
	db *gorm.DB,
	outputs repos.OutputRepo,
	sources repos.SourceDocRepo,
	outlines repos.OutlineProductRepo,
	gates repos.StageGateRepo,
	architect *Architect,
	costs *CostNotifier,
) *OutlineStage {
	return &OutlineStage{
		log:       log.With("stage", "OutlineStage"),
		db:        db,
		outputs:   outputs,
		sources:   sources,
		outlines:  outlines,
		gates:     gates,
		architect: architect,
		costs:     costs,
	}
}

// Run generates and persists the story outline for an output. The outline
// lands in PENDING_REVIEW and the script gate resets, since any script
// built on the previous outline is now stale.
func (s *OutlineStage) Run(ctx context.Context, outputID uuid.UUID) (*StoryOutline, error) {
	output, err := s.outputs.GetByID(ctx, nil, outputID)
	if err != nil {
		return nil, apperrors.NewStageError(apperrors.CategoryOutputMissing, "output %s: %v", outputID, err)
	}

	// narration timing drives scene math; without a configured narrator the
	// outline would be planned against nothing
	if output.VoiceID == "" || output.WordsPerMinute <= 0 {
		return nil, apperrors.NewStageError(apperrors.CategoryVoiceMissing,
			"output %s has no narrator voice or words-per-minute configured", outputID)
	}

	meta := decodeMonetizationMeta(output)
	applyMetaOverrides(output, meta)

	docs, err := s.sources.ListForOutput(ctx, nil, outputID)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	brief, err := ResolveBrief(output, docs)
	if err != nil {
		return nil, err
	}

	dedupNotes, err := s.buildDedupNotes(ctx, output)
	if err != nil {
		s.log.Warn("Could not load prior episodes for dedup notes", "error", err)
	}

	outline, call, err := s.architect.GenerateOutline(ctx, OutlineRequest{
		Title:              output.Title,
		Format:             output.Format,
		Brief:              brief,
		UserNotes:          output.UserNotes,
		EditorialObjective: output.EditorialObjective,
		ScriptStyle:        output.ScriptStyle,
		TargetDuration:     output.TargetDuration,
		AvoidPatterns:      meta.AvoidPatterns,
		DedupNotes:         dedupNotes,
	})
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, output, outline); err != nil {
		return nil, err
	}

	s.costs.Record(outputID, "story-architect", "generate", call.Provider, call.Model, call.Usage)
	s.log.Info("Outline stage complete", "output_id", outputID)
	return outline, nil
}

func (s *OutlineStage) persist(ctx context.Context, output *types.Output, outline *StoryOutline) error {
	payload, err := json.Marshal(outline)
	if err != nil {
		return fmt.Errorf("encode outline: %w", err)
	}
	monetization, err := json.Marshal(map[string]any{
		"hookVariants":    outline.HookVariants,
		"ctaApproach":     outline.CTAApproach,
		"resolutionLevel": outline.ResolutionLevel,
	})
	if err != nil {
		return fmt.Errorf("encode monetization payload: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.outlines.Upsert(ctx, tx, &types.StoryOutlineProduct{
			OutputID: output.ID,
			Payload:  datatypes.JSON(payload),
		}); err != nil {
			return fmt.Errorf("persist outline product: %w", err)
		}
		if err := s.outlines.UpsertMonetization(ctx, tx, &types.MonetizationProduct{
			OutputID: output.ID,
			Payload:  datatypes.JSON(monetization),
		}); err != nil {
			return fmt.Errorf("persist monetization product: %w", err)
		}
		if err := s.gates.Upsert(ctx, tx, output.ID, types.StageStoryOutline, types.GatePendingReview); err != nil {
			return err
		}
		// a new outline invalidates whatever script existed
		return s.gates.Upsert(ctx, tx, output.ID, types.StageScript, types.GateNotStarted)
	})
}

// buildDedupNotes collects prior episodes' titles and hook strategies so a
// later episode doesn't re-tease the same angles.
func (s *OutlineStage) buildDedupNotes(ctx context.Context, output *types.Output) (string, error) {
	if output.Format != types.FormatFullVideo || output.EpisodeNumber < 2 || output.ProjectID == nil {
		return "", nil
	}
	priors, err := s.outputs.ListPriorEpisodes(ctx, nil, *output.ProjectID, output.EpisodeNumber)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, prior := range priors {
		fmt.Fprintf(&b, "Episode %d (%q)", prior.EpisodeNumber, prior.Title)
		if product, err := s.outlines.GetByOutput(ctx, nil, prior.ID); err == nil && product != nil {
			var prev StoryOutline
			if json.Unmarshal(product.Payload, &prev) == nil && prev.HookStrategy != "" {
				fmt.Fprintf(&b, ": hook was %q, angle was %q", prev.HookStrategy, prev.ResolutionAngle)
			}
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// decodeMonetizationMeta reads the planner payload off the output; an
// absent or malformed payload is just empty meta.
func decodeMonetizationMeta(output *types.Output) MonetizationMeta {
	var meta MonetizationMeta
	if len(output.MonetizationMeta) > 0 {
		_ = json.Unmarshal(output.MonetizationMeta, &meta)
	}
	return meta
}

// applyMetaOverrides lets the planner payload override the output's
// defaults for this run, in memory only.
func applyMetaOverrides(output *types.Output, meta MonetizationMeta) {
	if meta.Role != "" {
		output.NarrativeRole = meta.Role
	}
	if meta.EpisodeNumber > 0 {
		output.EpisodeNumber = meta.EpisodeNumber
	}
	if meta.ScriptStyle != "" {
		output.ScriptStyle = meta.ScriptStyle
	}
	if meta.EditorialObjective != "" {
		output.EditorialObjective = meta.EditorialObjective
	}
	if meta.StrategicNotes != "" {
		if output.UserNotes != "" {
			output.UserNotes += "\n\n"
		}
		output.UserNotes += meta.StrategicNotes
	}
}
