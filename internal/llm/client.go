package llm

import (
	"context"
	"fmt"

	"github.com/nightreel/narrative-backend/internal/llm/schema"
	"github.com/nightreel/narrative-backend/internal/logger"
)

// Message is one turn of a model conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Completion is the result of a free-text generation.
type Completion struct {
	Text     string
	Usage    Usage
	Provider string
	Model    string
}

// StructuredResult is the result of a structured generation: the parsed
// value (conforming to the requested schema) plus the raw text it came from.
type StructuredResult struct {
	Parsed   any
	Raw      string
	Usage    Usage
	Provider string
	Model    string
}

// CallUsage couples one call's token usage with the provider and model that
// served it, so callers can attribute spend. A zero Model means no model
// call happened.
type CallUsage struct {
	Provider string
	Model    string
	Usage    Usage
}

// Options tune a single call. Nil fields fall back to the task assignment.
type Options struct {
	Temperature *float64
	MaxTokens   int
	// Recovery supplies the per-schema repair tables used when the resolved
	// assignment generates free text instead of native structured output
	// (and as a safety net even when it does not).
	Recovery RecoverOptions
}

// Client is the capability adapter: callers name a task, the client resolves
// which provider/model serves it and how structured output is obtained for
// that model. Task names, not vendor strings, are the unit of configuration.
type Client interface {
	Generate(ctx context.Context, task string, msgs []Message, opts *Options) (*Completion, error)
	GenerateStructured(ctx context.Context, task string, msgs []Message, node *schema.Node, opts *Options) (*StructuredResult, error)
}

// Backend is a single provider transport. One implementation per wire
// protocol, not per model.
type Backend interface {
	Complete(ctx context.Context, model string, msgs []Message, temperature *float64, maxTokens int) (string, Usage, error)
	CompleteStructured(ctx context.Context, model string, msgs []Message, schemaName string, jsonSchema map[string]any, temperature *float64, maxTokens int) (string, Usage, error)
}

type client struct {
	log         *logger.Logger
	assignments *Assignments
	backends    map[string]Backend
}

// NewClient builds the adapter over a set of named backends. Every provider
// an assignment references must have a backend here.
func NewClient(log *logger.Logger, assignments *Assignments, backends map[string]Backend) (Client, error) {
	if assignments == nil {
		return nil, fmt.Errorf("assignments required")
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("at least one backend required")
	}
	return &client{
		log:         log.With("service", "LLMClient"),
		assignments: assignments,
		backends:    backends,
	}, nil
}

func (c *client) resolve(task string) (Assignment, Backend, error) {
	a := c.assignments.Resolve(task)
	b, ok := c.backends[a.Provider]
	if !ok {
		return a, nil, fmt.Errorf("no backend registered for provider %q (task %q)", a.Provider, task)
	}
	return a, b, nil
}

func (c *client) Generate(ctx context.Context, task string, msgs []Message, opts *Options) (*Completion, error) {
	a, backend, err := c.resolve(task)
	if err != nil {
		return nil, err
	}
	temp, maxTokens := callParams(a, opts)

	text, usage, err := backend.Complete(ctx, a.Model, msgs, temp, maxTokens)
	if err != nil {
		return nil, err
	}
	return &Completion{Text: text, Usage: usage, Provider: a.Provider, Model: a.Model}, nil
}

func (c *client) GenerateStructured(ctx context.Context, task string, msgs []Message, node *schema.Node, opts *Options) (*StructuredResult, error) {
	if node == nil {
		return nil, fmt.Errorf("schema required")
	}
	a, backend, err := c.resolve(task)
	if err != nil {
		return nil, err
	}
	temp, maxTokens := callParams(a, opts)

	var (
		raw   string
		usage Usage
	)
	switch a.StructuredMode {
	case StructuredNative:
		raw, usage, err = backend.CompleteStructured(ctx, a.Model, msgs, taskSchemaName(task), node.JSONSchema(), temp, maxTokens)
	default:
		// model has no native structured mode: ask in free text, repair after
		raw, usage, err = backend.Complete(ctx, a.Model, msgs, temp, maxTokens)
	}
	if err != nil {
		return nil, err
	}

	ropts := RecoverOptions{}
	if opts != nil {
		ropts = opts.Recovery
	}
	if ropts.Log == nil {
		ropts.Log = c.log.With("task", task, "model", a.Model)
	}
	parsed, err := Recover(raw, node, ropts)
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", task, err)
	}
	return &StructuredResult{Parsed: parsed, Raw: raw, Usage: usage, Provider: a.Provider, Model: a.Model}, nil
}

func callParams(a Assignment, opts *Options) (*float64, int) {
	temp := a.Temperature
	maxTokens := a.MaxTokens
	if opts != nil {
		if opts.Temperature != nil {
			temp = opts.Temperature
		}
		if opts.MaxTokens > 0 {
			maxTokens = opts.MaxTokens
		}
	}
	return temp, maxTokens
}

func taskSchemaName(task string) string {
	return task + "_output"
}
