package narrative

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/nightreel/narrative-backend/internal/llm"
	"github.com/nightreel/narrative-backend/internal/logger"
)

// markdownBlockRe counts top-level sections of the writer's draft.
var markdownBlockRe = regexp.MustCompile(`(?m)^##\s`)

// WriterInput feeds the long-form prose pass.
type WriterInput struct {
	Title       string
	OutlineText string
	Sources     []string
	Style       string
	UserNotes   string
	// WordBudget caps the narration length, derived from target duration
	// and narrator words-per-minute.
	WordBudget int
}

// WriterResult is the free-text draft the screenwriter will segment.
// Provider and Model identify which assignment served the call, for cost
// attribution.
type WriterResult struct {
	Prose      string
	BlockCount int
	Usage      llm.Usage
	Provider   string
	Model      string
}

// Writer produces the long-form narration draft. It runs in free-text mode
// on purpose: forcing prose through a JSON schema flattens its voice.
type Writer struct {
	log    *logger.Logger
	client llm.Client
}

func NewWriter(log *logger.Logger, client llm.Client) *Writer {
	return &Writer{log: log.With("service", "Writer"), client: client}
}

func (w *Writer) Write(ctx context.Context, in WriterInput) (*WriterResult, error) {
	msgs := []llm.Message{
		{Role: "system", Content: writerSystemPrompt},
		{Role: "user", Content: w.buildUserPrompt(in)},
	}
	out, err := w.client.Generate(ctx, llm.TaskWriter, msgs, nil)
	if err != nil {
		return nil, fmt.Errorf("writer generation: %w", err)
	}

	prose := strings.TrimSpace(out.Text)
	if prose == "" {
		return nil, fmt.Errorf("writer returned empty prose")
	}
	blocks := len(markdownBlockRe.FindAllStringIndex(prose, -1))
	w.log.Info("Writer draft produced",
		"chars", len(prose),
		"blocks", blocks,
		"output_tokens", out.Usage.OutputTokens,
	)
	return &WriterResult{
		Prose:      prose,
		BlockCount: blocks,
		Usage:      out.Usage,
		Provider:   out.Provider,
		Model:      out.Model,
	}, nil
}

func (w *Writer) buildUserPrompt(in WriterInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the full narration for %q.\n", in.Title)
	if in.WordBudget > 0 {
		fmt.Fprintf(&b, "Stay close to %d words total.\n", in.WordBudget)
	}
	if in.OutlineText != "" {
		fmt.Fprintf(&b, "\n%s\n", in.OutlineText)
	}
	if in.Style != "" {
		fmt.Fprintf(&b, "\nStyle: %s\n", in.Style)
	}
	if in.UserNotes != "" {
		fmt.Fprintf(&b, "\nNotes:\n%s\n", in.UserNotes)
	}
	for i, src := range in.Sources {
		fmt.Fprintf(&b, "\nSOURCE %d:\n%s\n", i+1, src)
	}
	return b.String()
}

const writerSystemPrompt = `You are a long-form narrative writer. Write spoken narration that follows the blueprint beat by beat: open with the hook, honor the promise, escalate through each rising beat, land the climax, resolve only to the blueprint's resolution level, and close with the CTA approach. Use ## headings between major sections. Write only the narration text.`
