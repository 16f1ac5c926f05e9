package narrative

import (
	"context"

	"github.com/nightreel/narrative-backend/internal/llm"
	"github.com/nightreel/narrative-backend/internal/llm/schema"
)

// fakeClient scripts llm.Client responses for agent tests.
type fakeClient struct {
	generate           func(ctx context.Context, task string, msgs []llm.Message, opts *llm.Options) (*llm.Completion, error)
	generateStructured func(ctx context.Context, task string, msgs []llm.Message, node *schema.Node, opts *llm.Options) (*llm.StructuredResult, error)

	tasks   []string
	prompts []string
}

func (f *fakeClient) Generate(ctx context.Context, task string, msgs []llm.Message, opts *llm.Options) (*llm.Completion, error) {
	f.tasks = append(f.tasks, task)
	f.prompts = append(f.prompts, lastContent(msgs))
	return f.generate(ctx, task, msgs, opts)
}

func (f *fakeClient) GenerateStructured(ctx context.Context, task string, msgs []llm.Message, node *schema.Node, opts *llm.Options) (*llm.StructuredResult, error) {
	f.tasks = append(f.tasks, task)
	f.prompts = append(f.prompts, lastContent(msgs))
	return f.generateStructured(ctx, task, msgs, node, opts)
}

func lastContent(msgs []llm.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Content
}

// structuredJSON recovers a raw payload against the node the caller passed,
// the same way a real backend round trip would.
func structuredJSON(raw string) func(ctx context.Context, task string, msgs []llm.Message, node *schema.Node, opts *llm.Options) (*llm.StructuredResult, error) {
	return func(ctx context.Context, task string, msgs []llm.Message, node *schema.Node, opts *llm.Options) (*llm.StructuredResult, error) {
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
			Usage:    llm.Usage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150},
			Provider: "openai",
			Model:    "gpt-5.2",
		}, nil
	}
}
