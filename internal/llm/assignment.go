package llm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nightreel/narrative-backend/internal/logger"
)

// Structured-output capability profiles. The profile, not the provider
// string, decides how GenerateStructured obtains a schema-conforming value.
const (
	// StructuredNative requests json_schema output from the provider.
	StructuredNative = "native"
	// StructuredRecover asks in free text and runs the recovery engine.
	StructuredRecover = "recover"
)

// Pipeline task names. Each maps to its own assignment so providers and
// parameters can move per stage without touching stage code.
const (
	TaskStoryArchitect      = "story-architect"
	TaskWriter              = "writer"
	TaskScreenwriter        = "screenwriter"
	TaskScreenwriterHook    = "screenwriter-hook-only"
	TaskScriptValidator     = "script-validator"
	TaskComposer            = "composer"
	TaskChoreographer       = "choreographer"
	TaskContinuity          = "continuity"
	TaskPromptMerge         = "prompt-merge"
)

// Assignment binds one task to a provider, model, and call parameters.
type Assignment struct {
	Task           string   `yaml:"task"`
	Provider       string   `yaml:"provider"`
	Model          string   `yaml:"model"`
	Temperature    *float64 `yaml:"temperature"`
	MaxTokens      int      `yaml:"maxTokens"`
	StructuredMode string   `yaml:"structuredMode"`
}

// Assignments resolves task names to assignments, falling back to a default
// when a task has no dedicated entry.
type Assignments struct {
	byTask   map[string]Assignment
	fallback Assignment
}

func temp(v float64) *float64 { return &v }

// defaultAssignments seeds every pipeline task. A YAML file or environment
// can override any of them.
func defaultAssignments(provider, model string) []Assignment {
	return []Assignment{
		{Task: TaskStoryArchitect, Provider: provider, Model: model, Temperature: temp(0.7), StructuredMode: StructuredNative},
		{Task: TaskWriter, Provider: provider, Model: model, Temperature: temp(0.5), MaxTokens: 64000, StructuredMode: StructuredRecover},
		{Task: TaskScreenwriter, Provider: provider, Model: model, Temperature: temp(0.5), StructuredMode: StructuredNative},
		{Task: TaskScreenwriterHook, Provider: provider, Model: model, Temperature: temp(0.3), StructuredMode: StructuredNative},
		{Task: TaskScriptValidator, Provider: provider, Model: model, Temperature: temp(0.2), StructuredMode: StructuredNative},
		{Task: TaskComposer, Provider: provider, Model: model, Temperature: temp(0.5), StructuredMode: StructuredRecover},
		{Task: TaskChoreographer, Provider: provider, Model: model, Temperature: temp(0.4), StructuredMode: StructuredRecover},
		{Task: TaskContinuity, Provider: provider, Model: model, Temperature: temp(0.3), StructuredMode: StructuredRecover},
		{Task: TaskPromptMerge, Provider: provider, Model: model, Temperature: temp(0.2), StructuredMode: StructuredRecover},
	}
}

type assignmentsFile struct {
	Default     *Assignment  `yaml:"default"`
	Assignments []Assignment `yaml:"assignments"`
}

// NewAssignments builds the registry: code defaults for the given provider
// and model, then overrides from the YAML file at path (if non-empty).
func NewAssignments(provider, model, path string, log *logger.Logger) (*Assignments, error) {
	a := &Assignments{
		byTask:   map[string]Assignment{},
		fallback: Assignment{Provider: provider, Model: model, StructuredMode: StructuredRecover},
	}
	for _, d := range defaultAssignments(provider, model) {
		a.byTask[d.Task] = d
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read assignments file: %w", err)
		}
		var f assignmentsFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("parse assignments file: %w", err)
		}
		if f.Default != nil {
			a.fallback = normalizeAssignment(*f.Default, a.fallback)
		}
		for _, o := range f.Assignments {
			if o.Task == "" {
				return nil, fmt.Errorf("assignments file: entry missing task name")
			}
			base, ok := a.byTask[o.Task]
			if !ok {
				base = a.fallback
			}
			a.byTask[o.Task] = normalizeAssignment(o, base)
			if log != nil {
				log.Debug("Task assignment overridden", "task", o.Task, "provider", a.byTask[o.Task].Provider, "model", a.byTask[o.Task].Model)
			}
		}
	}
	return a, nil
}

// normalizeAssignment overlays non-zero override fields onto base.
func normalizeAssignment(o, base Assignment) Assignment {
	out := base
	out.Task = o.Task
	if o.Provider != "" {
		out.Provider = o.Provider
	}
	if o.Model != "" {
		out.Model = o.Model
	}
	if o.Temperature != nil {
		out.Temperature = o.Temperature
	}
	if o.MaxTokens > 0 {
		out.MaxTokens = o.MaxTokens
	}
	if o.StructuredMode != "" {
		out.StructuredMode = o.StructuredMode
	}
	return out
}

// Resolve returns the assignment for a task, or the fallback when no entry
// exists.
func (a *Assignments) Resolve(task string) Assignment {
	if got, ok := a.byTask[task]; ok {
		return got
	}
	out := a.fallback
	out.Task = task
	return out
}
