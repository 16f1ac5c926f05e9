package llm

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/nightreel/narrative-backend/internal/logger"
)

// mergeSlots bounds how many prompt merges may run at once across the whole
// process. The merge capability is shared by every stage, so the throttle
// lives here rather than with any one caller; waiters queue in arrival
// order.
const mergeSlots = 5

// Merger blends a reusable instruction fragment into a base prompt, letting
// the model resolve conflicts between the two instead of naive
// concatenation.
type Merger struct {
	log    *logger.Logger
	client Client
	sem    *semaphore.Weighted
}

func NewMerger(log *logger.Logger, client Client) *Merger {
	return &Merger{
		log:    log.With("service", "PromptMerger"),
		client: client,
		sem:    semaphore.NewWeighted(mergeSlots),
	}
}

// Merge returns the base prompt with the fragment's instructions folded in,
// plus the usage of the call that produced it. Blocks while all merge slots
// are busy; honors ctx while waiting. An empty fragment short-circuits with
// zero usage.
func (m *Merger) Merge(ctx context.Context, base, fragment string) (string, CallUsage, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return base, CallUsage{}, nil
	}
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return "", CallUsage{}, fmt.Errorf("acquire merge slot: %w", err)
	}
	defer m.sem.Release(1)

	msgs := []Message{
		{Role: "system", Content: mergeSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("BASE PROMPT:\n%s\n\nADDITIONAL INSTRUCTIONS TO FOLD IN:\n%s", base, fragment)},
	}
	out, err := m.client.Generate(ctx, TaskPromptMerge, msgs, nil)
	if err != nil {
		return "", CallUsage{}, err
	}
	call := CallUsage{Provider: out.Provider, Model: out.Model, Usage: out.Usage}
	merged := strings.TrimSpace(out.Text)
	if merged == "" {
		m.log.Warn("Prompt merge produced empty output, keeping base prompt")
		return base, call, nil
	}
	return merged, call, nil
}

const mergeSystemPrompt = `You merge writing instructions. Given a base prompt and additional instructions, produce a single coherent prompt that preserves every requirement of the base and integrates the additions. Where the two conflict, the additions win. Output only the merged prompt text, nothing else.`
