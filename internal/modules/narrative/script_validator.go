package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nightreel/narrative-backend/internal/llm"
	"github.com/nightreel/narrative-backend/internal/llm/schema"
	"github.com/nightreel/narrative-backend/internal/logger"
)

// HookOnlySignoff is the channel signature a hook-only teaser's final scene
// must speak, verbatim.
const HookOnlySignoff = "The Gap Files."

// ErrValidatorUnavailable signals that no critic exists for the requested
// role. Callers fail open on it.
var ErrValidatorUnavailable = fmt.Errorf("script validator unavailable")

// ScriptValidationInput is what the critics judge.
type ScriptValidationInput struct {
	Scenes            []DraftScene
	NarrativeRole     string
	HookOnly          bool
	SelectedHookLevel string
	SelectedHookText  string
	// PlannedOpenLoops are questions the outline leaves open on purpose;
	// closing one is a violation.
	PlannedOpenLoops []OpenLoop
	ResolutionLevel  string
}

func validationResultSchema() *schema.Node {
	return schema.Object(
		schema.Field("approved", schema.Bool()),
		schema.Field("violations", schema.Optional(schema.ArrayOf(schema.String()))),
		schema.Field("corrections", schema.Optional(schema.String())),
		schema.Field("overResolution", schema.Optional(schema.Bool())),
	)
}

// validatorRolePrompts maps a teaser's narrative role to its critic's
// system prompt. A role with no entry means no critic exists for it.
var validatorRolePrompts = map[string]string{
	"curiosity": `You judge teaser scripts whose job is to provoke curiosity. Reject scripts that answer the central question, close a loop the outline planned to leave open, or resolve more of the mystery than the stated resolution level allows.`,
	"authority": `You judge teaser scripts whose job is to project authority. Reject scripts with unsupported claims, hedged narration, or resolution beyond the stated level.`,
	"fomo":      `You judge teaser scripts whose job is to create fear of missing out. Reject scripts that satisfy the viewer instead of building urgency, or that give away the payoff.`,
}

// ScriptValidator runs the programmatic checks first, then the
// LLM-as-judge pass. Programmatic rejections never spend judge tokens.
type ScriptValidator struct {
	log    *logger.Logger
	client llm.Client
}

func NewScriptValidator(log *logger.Logger, client llm.Client) *ScriptValidator {
	return &ScriptValidator{log: log.With("service", "ScriptValidator"), client: client}
}

// Validate returns the verdict for one candidate script plus the usage of
// the judge call, when one ran; programmatic verdicts report zero usage. It
// returns ErrValidatorUnavailable when no critic covers the input's role,
// so the retry loop can fail open observably.
func (v *ScriptValidator) Validate(ctx context.Context, in ScriptValidationInput) (*ValidationResult, llm.CallUsage, error) {
	// deterministic checks first
	if in.HookOnly {
		if res := validateHookOnlySignoff(in.Scenes); res != nil {
			return res, llm.CallUsage{}, nil
		}
	}

	system, ok := validatorRolePrompts[in.NarrativeRole]
	if !ok {
		return nil, llm.CallUsage{}, fmt.Errorf("%w: no critic for role %q", ErrValidatorUnavailable, in.NarrativeRole)
	}

	res, err := v.client.GenerateStructured(ctx, llm.TaskScriptValidator,
		[]llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: buildValidationPrompt(in)},
		},
		validationResultSchema(),
		&llm.Options{Recovery: llm.RecoverOptions{Log: v.log}},
	)
	if err != nil {
		return nil, llm.CallUsage{}, err
	}
	call := llm.CallUsage{Provider: res.Provider, Model: res.Model, Usage: res.Usage}

	verdict, err := decodeValidationResult(res.Parsed)
	if err != nil {
		return nil, call, err
	}
	// a rejection that names no violations gives the generator nothing to
	// fix; treat it as approval rather than looping uselessly
	if !verdict.Approved && len(verdict.Violations) == 0 && verdict.Corrections == "" {
		v.log.Warn("Validator rejected without violations, treating as approved")
		verdict.Approved = true
	}
	return verdict, call, nil
}

// validateHookOnlySignoff enforces the exact closing narration. nil means
// the check passed.
func validateHookOnlySignoff(scenes []DraftScene) *ValidationResult {
	if len(scenes) == 0 {
		return &ValidationResult{
			Approved:   false,
			Violations: []string{"hook-only teaser has no scenes"},
		}
	}
	last := strings.TrimSpace(scenes[len(scenes)-1].Narration)
	if last != HookOnlySignoff {
		return &ValidationResult{
			Approved: false,
			Violations: []string{
				fmt.Sprintf("final scene narration must be exactly %q, got %q", HookOnlySignoff, last),
			},
			Corrections: fmt.Sprintf("End the final scene with the narration %q and nothing else.", HookOnlySignoff),
		}
	}
	return nil
}

func buildValidationPrompt(in ScriptValidationInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Narrative role: %s\n", in.NarrativeRole)
	fmt.Fprintf(&b, "Resolution level allowed: %s\n", in.ResolutionLevel)
	if in.SelectedHookLevel != "" {
		fmt.Fprintf(&b, "Selected hook level: %s\n", in.SelectedHookLevel)
	}
	if in.SelectedHookText != "" {
		fmt.Fprintf(&b, "Selected hook: %s\n", in.SelectedHookText)
	}
	if len(in.PlannedOpenLoops) > 0 {
		b.WriteString("Questions that must stay open:\n")
		for _, l := range in.PlannedOpenLoops {
			fmt.Fprintf(&b, "  - %s\n", l.Question)
		}
	}
	b.WriteString("\nSCRIPT:\n")
	for _, s := range in.Scenes {
		fmt.Fprintf(&b, "[%d] %s\n", s.Order, s.Narration)
	}
	b.WriteString("\nJudge the script. Respond as JSON: approved, violations, corrections, overResolution.")
	return b.String()
}

func decodeValidationResult(v any) (*ValidationResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out ValidationResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode validation result: %w", err)
	}
	return &out, nil
}
