package narrative

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nightreel/narrative-backend/internal/logger"
)

func TestValidateHookOnlySignoffExactMatch(t *testing.T) {
	scenes := []DraftScene{
		{Order: 0, Narration: "Nobody claimed the car."},
		{Order: 1, Narration: "The Gap Files."},
	}
	if res := validateHookOnlySignoff(scenes); res != nil {
		t.Fatalf("expected pass, got %+v", res)
	}
}

func TestValidateHookOnlySignoffRejectsWrongEnding(t *testing.T) {
	scenes := []DraftScene{
		{Order: 0, Narration: "Nobody claimed the car."},
		{Order: 1, Narration: "Subscribe to The Gap Files."},
	}
	res := validateHookOnlySignoff(scenes)
	if res == nil || res.Approved {
		t.Fatalf("expected rejection, got %+v", res)
	}
	if len(res.Violations) != 1 || res.Corrections == "" {
		t.Fatalf("rejection should name the fix: %+v", res)
	}
}

func TestValidateHookOnlySignoffRejectsEmptyScript(t *testing.T) {
	res := validateHookOnlySignoff(nil)
	if res == nil || res.Approved {
		t.Fatalf("expected rejection, got %+v", res)
	}
}

func TestValidateHookOnlySignoffTrimsWhitespace(t *testing.T) {
	scenes := []DraftScene{{Order: 0, Narration: "  The Gap Files.\n"}}
	if res := validateHookOnlySignoff(scenes); res != nil {
		t.Fatalf("surrounding whitespace should be tolerated, got %+v", res)
	}
}

func TestScriptValidatorHookOnlyNeverReachesJudge(t *testing.T) {
	fake := &fakeClient{}
	// no structured handler: a judge call would panic the test
	v := NewScriptValidator(logger.NewNop(), fake)

	res, call, err := v.Validate(context.Background(), ScriptValidationInput{
		HookOnly: true,
		Scenes:   []DraftScene{{Order: 0, Narration: "wrong ending"}},
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Approved {
		t.Fatalf("expected deterministic rejection, got %+v", res)
	}
	if len(fake.tasks) != 0 {
		t.Fatalf("judge should not have been called: %v", fake.tasks)
	}
	if call.Model != "" || call.Usage.TotalTokens != 0 {
		t.Fatalf("programmatic verdict should report zero usage: %+v", call)
	}
}

func TestScriptValidatorUnknownRoleUnavailable(t *testing.T) {
	fake := &fakeClient{}
	v := NewScriptValidator(logger.NewNop(), fake)

	_, _, err := v.Validate(context.Background(), ScriptValidationInput{NarrativeRole: "charisma"})
	if !errors.Is(err, ErrValidatorUnavailable) {
		t.Fatalf("expected ErrValidatorUnavailable, got %v", err)
	}
}

func TestScriptValidatorJudgeRejection(t *testing.T) {
	fake := &fakeClient{
		generateStructured: structuredJSON(`{"approved": false, "violations": ["answers the central question"], "overResolution": true}`),
	}
	v := NewScriptValidator(logger.NewNop(), fake)

	res, call, err := v.Validate(context.Background(), ScriptValidationInput{
		NarrativeRole:   "curiosity",
		ResolutionLevel: ResolutionNone,
		Scenes:          []DraftScene{{Order: 0, Narration: "It was the butler."}},
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Approved || !res.OverResolution || len(res.Violations) != 1 {
		t.Fatalf("verdict = %+v", res)
	}
	if call.Provider != "openai" || call.Model != "gpt-5.2" || call.Usage.TotalTokens != 150 {
		t.Fatalf("judge usage not reported: %+v", call)
	}
}

func TestScriptValidatorRejectionWithoutViolationsApproves(t *testing.T) {
	fake := &fakeClient{
		generateStructured: structuredJSON(`{"approved": false}`),
	}
	v := NewScriptValidator(logger.NewNop(), fake)

	res, _, err := v.Validate(context.Background(), ScriptValidationInput{
		NarrativeRole: "fomo",
		Scenes:        []DraftScene{{Order: 0, Narration: "x"}},
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Approved {
		t.Fatalf("unactionable rejection should approve: %+v", res)
	}
}

func TestBuildValidationPromptCarriesConstraints(t *testing.T) {
	two := 2
	got := buildValidationPrompt(ScriptValidationInput{
		NarrativeRole:     "curiosity",
		ResolutionLevel:   ResolutionPartial,
		SelectedHookLevel: "aggressive",
		SelectedHookText:  "They buried the report.",
		PlannedOpenLoops: []OpenLoop{
			{Question: "who ordered the recall", OpenedAtBeat: 1},
			{Question: "closed one", OpenedAtBeat: 1, ClosedAtBeat: &two},
		},
		Scenes: []DraftScene{{Order: 0, Narration: "Opening line."}},
	})
	for _, want := range []string{
		"Narrative role: curiosity",
		"Resolution level allowed: partial",
		"Selected hook level: aggressive",
		"They buried the report.",
		"who ordered the recall",
		"[0] Opening line.",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
}
