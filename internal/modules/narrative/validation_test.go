package narrative

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nightreel/narrative-backend/internal/logger"
)

func TestRunWithValidationApprovesFirstAttempt(t *testing.T) {
	log := logger.NewNop()
	gen := func(ctx context.Context, feedback string) (string, error) {
		if feedback != "" {
			t.Fatalf("first attempt should carry no feedback, got %q", feedback)
		}
		return "draft", nil
	}
	val := func(ctx context.Context, c string) (*ValidationResult, error) {
		return &ValidationResult{Approved: true}, nil
	}

	got, verdict, attempts, err := RunWithValidation(context.Background(), gen, val, 3, log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "draft" || !verdict.Approved || attempts != 1 {
		t.Fatalf("got=%q approved=%v attempts=%d", got, verdict.Approved, attempts)
	}
}

func TestRunWithValidationAccumulatesHistory(t *testing.T) {
	log := logger.NewNop()
	var feedbacks []string
	calls := 0
	gen := func(ctx context.Context, feedback string) (string, error) {
		feedbacks = append(feedbacks, feedback)
		calls++
		return "draft-" + strings.Repeat("x", calls), nil
	}
	val := func(ctx context.Context, c string) (*ValidationResult, error) {
		if calls < 3 {
			return &ValidationResult{
				Approved:    false,
				Violations:  []string{"issue in " + c},
				Corrections: "fix " + c,
			}, nil
		}
		return &ValidationResult{Approved: true}, nil
	}

	_, verdict, attempts, err := RunWithValidation(context.Background(), gen, val, 5, log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 || !verdict.Approved {
		t.Fatalf("attempts=%d approved=%v", attempts, verdict.Approved)
	}

	// third generation sees both prior rejections, not just the latest
	third := feedbacks[2]
	if !strings.Contains(third, "Attempt 1:") || !strings.Contains(third, "Attempt 2:") {
		t.Fatalf("feedback missing history:\n%s", third)
	}
	if !strings.Contains(third, "issue in draft-x") || !strings.Contains(third, "issue in draft-xx") {
		t.Fatalf("feedback missing violations:\n%s", third)
	}
	if !strings.Contains(third, "Corrections: fix draft-x") {
		t.Fatalf("feedback missing corrections:\n%s", third)
	}
}

func TestRunWithValidationExhaustionReturnsLastCandidate(t *testing.T) {
	log := logger.NewNop()
	calls := 0
	gen := func(ctx context.Context, feedback string) (string, error) {
		calls++
		return "candidate", nil
	}
	val := func(ctx context.Context, c string) (*ValidationResult, error) {
		return &ValidationResult{Approved: false, Violations: []string{"never good enough"}}, nil
	}

	got, verdict, attempts, err := RunWithValidation(context.Background(), gen, val, 2, log)
	if err != nil {
		t.Fatalf("exhaustion must not be an error: %v", err)
	}
	if calls != 3 || attempts != 3 {
		t.Fatalf("expected maxRetries+1 generations, got calls=%d attempts=%d", calls, attempts)
	}
	if got != "candidate" {
		t.Fatalf("last candidate not returned: %q", got)
	}
	if verdict.Approved {
		t.Fatal("exhaustion verdict should still reject")
	}
}

func TestRunWithValidationFailsOpenOnValidatorError(t *testing.T) {
	log := logger.NewNop()
	gen := func(ctx context.Context, feedback string) (string, error) {
		return "candidate", nil
	}
	val := func(ctx context.Context, c string) (*ValidationResult, error) {
		return nil, errors.New("judge offline")
	}

	got, verdict, attempts, err := RunWithValidation(context.Background(), gen, val, 5, log)
	if err != nil {
		t.Fatalf("validator failure must fail open: %v", err)
	}
	if got != "candidate" || attempts != 1 {
		t.Fatalf("got=%q attempts=%d", got, attempts)
	}
	if !verdict.Approved || !verdict.Unavailable {
		t.Fatalf("fail-open verdict = %+v", verdict)
	}
}

func TestRunWithValidationFirstGenerationFailureIsFatal(t *testing.T) {
	log := logger.NewNop()
	gen := func(ctx context.Context, feedback string) (string, error) {
		return "", errors.New("provider down")
	}
	val := func(ctx context.Context, c string) (*ValidationResult, error) {
		t.Fatal("validator must not run")
		return nil, nil
	}

	_, _, attempts, err := RunWithValidation(context.Background(), gen, val, 5, log)
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 0 {
		t.Fatalf("attempts = %d", attempts)
	}
}

func TestRunWithValidationMidLoopFailurePropagatesError(t *testing.T) {
	log := logger.NewNop()
	genErr := errors.New("provider hiccup")
	calls := 0
	gen := func(ctx context.Context, feedback string) (string, error) {
		calls++
		if calls == 2 {
			return "", genErr
		}
		return "first-draft", nil
	}
	val := func(ctx context.Context, c string) (*ValidationResult, error) {
		return &ValidationResult{Approved: false, Violations: []string{"weak hook"}}, nil
	}

	_, _, attempts, err := RunWithValidation(context.Background(), gen, val, 5, log)
	if !errors.Is(err, genErr) {
		t.Fatalf("generation failure must propagate, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d", attempts)
	}
}

func TestRunWithValidationHonorsContext(t *testing.T) {
	log := logger.NewNop()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := func(ctx context.Context, feedback string) (string, error) {
		t.Fatal("generator must not run after cancellation")
		return "", nil
	}
	val := func(ctx context.Context, c string) (*ValidationResult, error) { return nil, nil }

	_, _, _, err := RunWithValidation(ctx, gen, val, 3, log)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFormatValidationHistoryEmpty(t *testing.T) {
	if got := formatValidationHistory(nil); got != "" {
		t.Fatalf("expected empty feedback, got %q", got)
	}
}

func TestFormatValidationHistoryOverResolution(t *testing.T) {
	got := formatValidationHistory([]attemptRecord{
		{Attempt: 1, Result: &ValidationResult{OverResolution: true}},
	})
	if !strings.Contains(got, "resolved too much") {
		t.Fatalf("feedback missing over-resolution line:\n%s", got)
	}
}
