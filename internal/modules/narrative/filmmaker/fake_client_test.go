package filmmaker

import (
	"context"
	"fmt"

	"github.com/nightreel/narrative-backend/internal/llm"
	"github.com/nightreel/narrative-backend/internal/llm/schema"
)

// fakeClient scripts llm.Client responses per task name.
type fakeClient struct {
	structuredByTask map[string]string
	err              error

	tasks   []string
	prompts []string
}

func (f *fakeClient) Generate(ctx context.Context, task string, msgs []llm.Message, opts *llm.Options) (*llm.Completion, error) {
	return nil, fmt.Errorf("unexpected free-text call for task %q", task)
}

func (f *fakeClient) GenerateStructured(ctx context.Context, task string, msgs []llm.Message, node *schema.Node, opts *llm.Options) (*llm.StructuredResult, error) {
	f.tasks = append(f.tasks, task)
	if len(msgs) > 0 {
		f.prompts = append(f.prompts, msgs[len(msgs)-1].Content)
	}
	if f.err != nil {
		return nil, f.err
	}
	raw, ok := f.structuredByTask[task]
	if !ok {
		return nil, fmt.Errorf("no scripted response for task %q", task)
	}
	ropts := llm.RecoverOptions{}
	if opts != nil {
		ropts = opts.Recovery
	}
	parsed, err := llm.Recover(raw, node, ropts)
	if err != nil {
		return nil, err
	}
	return &llm.StructuredResult{
		Parsed:   parsed,
		Raw:      raw,
		Usage:    llm.Usage{InputTokens: 200, OutputTokens: 80, TotalTokens: 280},
		Provider: "openai",
		Model:    "gpt-5.2",
	}, nil
}
