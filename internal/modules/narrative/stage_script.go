package narrative

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/nightreel/narrative-backend/internal/errors"
	"github.com/nightreel/narrative-backend/internal/llm"
	"github.com/nightreel/narrative-backend/internal/logger"
	"github.com/nightreel/narrative-backend/internal/modules/narrative/filmmaker"
	"github.com/nightreel/narrative-backend/internal/repos"
	"github.com/nightreel/narrative-backend/internal/types"
)

// ScriptStageRequest drives one script generation run.
type ScriptStageRequest struct {
	OutputID uuid.UUID
	// Regenerate replaces an existing script and resets downstream
	// approvals; a first run leaves approval flags untouched.
	Regenerate bool
}

// ScriptStageResult reports what the run produced.
type ScriptStageResult struct {
	Title      string
	SceneCount int
	// Attempts counts generation attempts inside the validation loop; 1
	// means first-pass approval or no validation.
	Attempts int
	Verdict  *ValidationResult
}

// ScriptStage orchestrates script generation: source filtering, the writer
// pass, validated segmentation, visual direction, and persistence.
type ScriptStage struct {
	log       *logger.Logger
	db        *gorm.DB
	outputs   repos.OutputRepo
	scenes    repos.SceneRepo
	sceneRefs repos.SceneReferenceRepo
	sources   repos.SourceDocRepo
	outlines  repos.OutlineProductRepo
	gates     repos.StageGateRepo

	writer       *Writer
	screenwriter *Screenwriter
	validator    *ScriptValidator
	director     *filmmaker.Director
	merger       *llm.Merger
	costs        *CostNotifier

	// validatorsEnabled is the global kill switch, resolved once at wiring
	// time rather than read ambiently from the environment.
	validatorsEnabled bool
}

func NewScriptStage(
	log *logger.Logger,
	db *gorm.DB,
	outputs repos.OutputRepo,
	scenes repos.SceneRepo,
	sceneRefs repos.SceneReferenceRepo,
	sources repos.SourceDocRepo,
	outlines repos.OutlineProductRepo,
	gates repos.StageGateRepo,
	writer *Writer,
	screenwriter *Screenwriter,
	validator *ScriptValidator,
	director *filmmaker.Director,
	merger *llm.Merger,
	costs *CostNotifier,
	validatorsEnabled bool,
) *ScriptStage {
	return &ScriptStage{
		log:               log.With("stage", "ScriptStage"),
		db:                db,
		outputs:           outputs,
		scenes:            scenes,
		sceneRefs:         sceneRefs,
		sources:           sources,
		outlines:          outlines,
		gates:             gates,
		writer:            writer,
		screenwriter:      screenwriter,
		validator:         validator,
		director:          director,
		merger:            merger,
		costs:             costs,
		validatorsEnabled: validatorsEnabled,
	}
}

func (s *ScriptStage) Run(ctx context.Context, req ScriptStageRequest) (*ScriptStageResult, error) {
	// 1. load and enrich
	output, err := s.outputs.GetByID(ctx, nil, req.OutputID)
	if err != nil {
		return nil, apperrors.NewStageError(apperrors.CategoryOutputMissing, "output %s: %v", req.OutputID, err)
	}
	meta := decodeMonetizationMeta(output)
	applyMetaOverrides(output, meta)

	// 2. outline gate: a script may only build on an approved blueprint
	gate, err := s.gates.Get(ctx, nil, output.ID, types.StageStoryOutline)
	if err != nil {
		return nil, fmt.Errorf("load outline gate: %w", err)
	}
	gateStatus := types.GateNotStarted
	if gate != nil {
		gateStatus = gate.Status
	}
	if gateStatus != types.GateApproved {
		return nil, apperrors.NewStageError(apperrors.CategoryOutlineMissing,
			"output %s has no approved outline; outline gate is %s", output.ID, gateStatus)
	}
	outline, err := s.loadOutline(ctx, output.ID)
	if err != nil {
		return nil, err
	}
	if outline == nil {
		return nil, apperrors.NewStageError(apperrors.CategoryOutlineMissing,
			"output %s outline gate is approved but no outline product exists", output.ID)
	}
	outlineText := outline.FormatForPrompt()

	// 3. pinned reference imagery
	refs, err := s.sceneRefs.ListByOutput(ctx, nil, output.ID)
	if err != nil {
		return nil, fmt.Errorf("load scene references: %w", err)
	}
	refByOrder := map[int]string{}
	for _, r := range refs {
		refByOrder[r.SceneOrder] = r.ImageURL
	}

	// 4. source visibility boundary
	docs, err := s.sources.ListForOutput(ctx, nil, output.ID)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	visible := FilterSources(output, docs)

	// 5. writer pass (skipped for hook-only: a hook works from the brief
	// alone and long prose would only dilute it)
	prose := ""
	if output.HookOnly {
		prose, err = ResolveBrief(output, docs)
		if err != nil {
			return nil, err
		}
	} else {
		// the writer needs curated material too; an output whose sources
		// are all raw dossiers fails closed instead of writing from nothing
		if _, err := ResolveBrief(output, docs); err != nil {
			return nil, err
		}
		written, err := s.runWriter(ctx, output, outlineText, visible)
		if err != nil {
			return nil, err
		}
		prose = written
	}

	// 6. segmentation, validated when this output warrants it
	result, verdict, attempts, err := s.segmentWithValidation(ctx, output, outline, prose, outlineText)
	if err != nil {
		return nil, err
	}

	// 7. visual direction; a failure here must not cost us the script
	scenes := s.applyVisualDirection(ctx, output, outline, result.Scenes, refByOrder)

	// 8. persist
	title := result.Title
	if title == "" {
		title = output.Title
	}
	if err := s.persist(ctx, output, req.Regenerate, title, prose, scenes); err != nil {
		return nil, err
	}

	s.log.Info("Script stage complete",
		"output_id", output.ID,
		"scenes", len(scenes),
		"attempts", attempts,
		"regenerate", req.Regenerate,
	)
	return &ScriptStageResult{
		Title:      title,
		SceneCount: len(scenes),
		Attempts:   attempts,
		Verdict:    verdict,
	}, nil
}

func (s *ScriptStage) loadOutline(ctx context.Context, outputID uuid.UUID) (*StoryOutline, error) {
	product, err := s.outlines.GetByOutput(ctx, nil, outputID)
	if err != nil {
		return nil, fmt.Errorf("load outline product: %w", err)
	}
	if product == nil {
		return nil, nil
	}
	var outline StoryOutline
	if err := json.Unmarshal(product.Payload, &outline); err != nil {
		return nil, fmt.Errorf("decode outline product: %w", err)
	}
	return &outline, nil
}

func (s *ScriptStage) runWriter(ctx context.Context, output *types.Output, outlineText string, visible []*types.SourceDoc) (string, error) {
	style := output.ScriptStyle
	meta := decodeMonetizationMeta(output)
	if meta.ScriptStyle != "" && output.ScriptStyle != "" && meta.ScriptStyle != output.ScriptStyle {
		merged, call, err := s.merger.Merge(ctx, output.ScriptStyle, meta.ScriptStyle)
		if err != nil {
			s.log.Warn("Style merge failed, using base style", "error", err)
		} else {
			style = merged
			if call.Model != "" {
				s.costs.Record(output.ID, "prompt-merge", "merge", call.Provider, call.Model, call.Usage)
			}
		}
	}

	contents := make([]string, 0, len(visible))
	for _, d := range visible {
		contents = append(contents, d.Content)
	}
	wordBudget := 0
	if output.WordsPerMinute > 0 && output.TargetDuration > 0 {
		wordBudget = output.TargetDuration * output.WordsPerMinute / 60
	}

	written, err := s.writer.Write(ctx, WriterInput{
		Title:       output.Title,
		OutlineText: outlineText,
		Sources:     contents,
		Style:       style,
		UserNotes:   output.UserNotes,
		WordBudget:  wordBudget,
	})
	if err != nil {
		return "", err
	}
	s.costs.Record(output.ID, "writer", "generate", written.Provider, written.Model, written.Usage)
	return written.Prose, nil
}

// shouldValidate: validation burns retries and tokens, so it only guards
// teasers that carry a narrative role, and only while the global switch is
// on.
func (s *ScriptStage) shouldValidate(output *types.Output) bool {
	return s.validatorsEnabled &&
		output.Format == types.FormatTeaser &&
		(output.NarrativeRole != "" || output.HookOnly)
}

func (s *ScriptStage) segmentWithValidation(ctx context.Context, output *types.Output, outline *StoryOutline, prose, outlineText string) (*ScreenplayResult, *ValidationResult, int, error) {
	targetScenes := SceneCount(output.TargetDuration)
	meta := decodeMonetizationMeta(output)
	generate := func(ctx context.Context, feedback string) (*ScreenplayResult, error) {
		res, err := s.screenwriter.Segment(ctx, ScreenwriterInput{
			Title:            output.Title,
			Prose:            prose,
			OutlineText:      outlineText,
			TargetSceneCount: targetScenes,
			HookOnly:         output.HookOnly,
			FormatType:       meta.FormatType,
			AvoidPatterns:    meta.AvoidPatterns,
			Feedback:         feedback,
		})
		if err == nil {
			action := "generate"
			if feedback != "" {
				action = "retry"
			}
			s.costs.Record(output.ID, "screenwriter", action, res.Provider, res.Model, res.Usage)
		}
		return res, err
	}

	if !s.shouldValidate(output) {
		res, err := generate(ctx, "")
		if err != nil {
			return nil, nil, 0, err
		}
		return res, nil, 1, nil
	}

	validate := func(ctx context.Context, candidate *ScreenplayResult) (*ValidationResult, error) {
		in := ScriptValidationInput{
			Scenes:            candidate.Scenes,
			NarrativeRole:     output.NarrativeRole,
			HookOnly:          output.HookOnly,
			SelectedHookLevel: output.SelectedHookLevel,
			PlannedOpenLoops:  outline.PlannedOpenLoops(),
			ResolutionLevel:   outline.ResolutionLevel,
			SelectedHookText:  outline.HookForLevel(output.SelectedHookLevel),
		}
		verdict, call, err := s.validator.Validate(ctx, in)
		if call.Model != "" {
			s.costs.Record(output.ID, "script-validator", "judge", call.Provider, call.Model, call.Usage)
		}
		return verdict, err
	}

	return RunWithValidation(ctx, generate, validate, MaxValidationRetries, s.log)
}

func (s *ScriptStage) applyVisualDirection(ctx context.Context, output *types.Output, outline *StoryOutline, drafts []DraftScene, refByOrder map[int]string) []*types.Scene {
	inputs := make([]filmmaker.SceneInput, len(drafts))
	for i, d := range drafts {
		inputs[i] = filmmaker.SceneInput{
			Order:             d.Order,
			Narration:         d.Narration,
			Duration:          d.Duration,
			ReferenceImageURL: refByOrder[d.Order],
		}
	}

	prod := filmmaker.ProductionContext{
		Title: output.Title,
		Shape: filmmaker.NarrativeShape{
			Segments: filmmaker.SegmentShares{
				Hook:       outline.SegmentDistribution.Hook,
				Context:    outline.SegmentDistribution.Context,
				Rising:     outline.SegmentDistribution.Rising,
				Climax:     outline.SegmentDistribution.Climax,
				Resolution: outline.SegmentDistribution.Resolution,
				CTA:        outline.SegmentDistribution.CTA,
			},
			TensionCurve: outline.TensionCurve,
		},
	}

	refined, agentCalls := s.director.Process(ctx, inputs, prod)
	for _, call := range agentCalls {
		s.costs.Record(output.ID, call.Agent, "generate", call.Provider, call.Model, call.Usage)
	}
	if len(refined) != len(inputs) {
		// never trade narration for visuals
		s.log.Warn("Visual direction changed scene count, persisting unrefined scenes",
			"expected", len(inputs), "got", len(refined))
		refined = inputs
	}

	out := make([]*types.Scene, len(refined))
	for i, r := range refined {
		out[i] = &types.Scene{
			Order:             i,
			Narration:         r.Narration,
			Duration:          r.Duration,
			VisualDescription: r.VisualDescription,
			SceneEnvironment:  r.SceneEnvironment,
			CameraMotion:      r.CameraMotion,
			EndFrame:          r.EndFrame,
			BlendWeight:       r.BlendWeight,
			ReferenceImageURL: r.ReferenceImageURL,
		}
	}
	return out
}

func (s *ScriptStage) persist(ctx context.Context, output *types.Output, regenerate bool, title, prose string, scenes []*types.Scene) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields := map[string]any{
			"title":       title,
			"script_text": prose,
			"status":      types.OutputStatusGenerating,
		}
		if regenerate {
			// the old approvals blessed a script that no longer exists
			fields["script_approved"] = false
			fields["images_approved"] = false
		}
		if err := s.outputs.UpdateFields(ctx, tx, output.ID, fields); err != nil {
			return fmt.Errorf("update output: %w", err)
		}
		if err := s.scenes.ReplaceForOutput(ctx, tx, output.ID, scenes); err != nil {
			return fmt.Errorf("replace scenes: %w", err)
		}
		return s.gates.Upsert(ctx, tx, output.ID, types.StageScript, types.GatePendingReview)
	})
}
