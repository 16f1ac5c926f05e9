package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/nightreel/narrative-backend/internal/logger"
)

// MaxValidationRetries bounds the generate-validate loop: one initial
// attempt plus this many retries.
const MaxValidationRetries = 10

// ValidationResult is a critic's verdict on one generated candidate.
type ValidationResult struct {
	Approved       bool     `json:"approved"`
	Violations     []string `json:"violations,omitempty"`
	Corrections    string   `json:"corrections,omitempty"`
	OverResolution bool     `json:"overResolution,omitempty"`

	// Unavailable marks a fail-open verdict: the validator could not run,
	// so the candidate passed without judgment. Kept distinct from a real
	// approval so operators can see validation silently switching off.
	Unavailable bool `json:"unavailable,omitempty"`
}

// attemptRecord keeps one loop iteration's verdict for feedback assembly.
type attemptRecord struct {
	Attempt int
	Result  *ValidationResult
}

// GenerateFunc produces one candidate. feedback is empty on the first
// attempt and carries the full accumulated validation history afterwards.
type GenerateFunc[T any] func(ctx context.Context, feedback string) (T, error)

// ValidateFunc judges a candidate.
type ValidateFunc[T any] func(ctx context.Context, candidate T) (*ValidationResult, error)

// RunWithValidation drives the generate-validate loop. The full history of
// every failed attempt feeds the next generation, so the generator sees how
// prior candidates failed, not just the latest verdict.
//
// Exhausting retries is not an error: the last candidate comes back with
// its rejecting verdict and the caller decides. A validator failure fails
// open with an Unavailable verdict; a generation failure on any attempt
// propagates unchanged. Returns the candidate, the final verdict, and how
// many generation attempts ran.
func RunWithValidation[T any](
	ctx context.Context,
	generate GenerateFunc[T],
	validate ValidateFunc[T],
	maxRetries int,
	log *logger.Logger,
) (T, *ValidationResult, int, error) {
	var (
		candidate T
		verdict   *ValidationResult
		history   []attemptRecord
	)
	attempts := 0

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return candidate, verdict, attempts, err
		}

		generated, err := generate(ctx, formatValidationHistory(history))
		if err != nil {
			return candidate, nil, attempts, err
		}
		candidate = generated
		attempts++

		verdict, err = validate(ctx, candidate)
		if err != nil {
			// fail open, but observably so
			log.Warn("Validator unavailable, accepting candidate unjudged",
				"attempt", attempts, "error", err)
			verdict = &ValidationResult{Approved: true, Unavailable: true}
			return candidate, verdict, attempts, nil
		}
		if verdict.Approved {
			if attempts > 1 {
				log.Info("Candidate approved after retries", "attempts", attempts)
			}
			return candidate, verdict, attempts, nil
		}

		history = append(history, attemptRecord{Attempt: attempts, Result: verdict})
		log.Warn("Candidate rejected",
			"attempt", attempts,
			"violations", len(verdict.Violations),
			"over_resolution", verdict.OverResolution,
		)
	}

	log.Warn("Validation retries exhausted, returning last candidate",
		"attempts", attempts)
	return candidate, verdict, attempts, nil
}

// formatValidationHistory renders every failed attempt into the feedback
// block prepended to the next generation prompt.
func formatValidationHistory(history []attemptRecord) string {
	if len(history) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("PREVIOUS ATTEMPTS WERE REJECTED. Fix every issue listed below.\n")
	for _, rec := range history {
		fmt.Fprintf(&b, "\nAttempt %d:\n", rec.Attempt)
		for _, v := range rec.Result.Violations {
			fmt.Fprintf(&b, "  - %s\n", v)
		}
		if rec.Result.OverResolution {
			b.WriteString("  - resolved too much of the mystery for this output's role\n")
		}
		if rec.Result.Corrections != "" {
			fmt.Fprintf(&b, "  Corrections: %s\n", rec.Result.Corrections)
		}
	}
	return b.String()
}
