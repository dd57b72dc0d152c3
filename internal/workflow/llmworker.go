package workflow

import (
	"context"
	"fmt"
	"strings"

	"dirigent/internal/llm"
	"dirigent/internal/logging"
	"dirigent/internal/types"
)

// LLMWorker is a model-backed worker: each step's task becomes a completion
// call under a role-specific system prompt, with prior step output carried
// as context.
type LLMWorker struct {
	client llm.Client
	role   string
	system string
}

// rolePrompts are the built-in specialist roles.
var rolePrompts = map[string]string{
	"executor":   "You are a capable generalist. Carry out the task and report the result concisely.",
	"coder":      "You are a senior engineer. Produce working code for the task, with a one-line summary first.",
	"reviewer":   "You are a meticulous code reviewer. List concrete findings, most severe first.",
	"tester":     "You are a test engineer. Describe the checks you would run and their expected outcomes.",
	"researcher": "You are a researcher. Answer with verified facts and note what remains uncertain.",
}

// NewLLMWorker creates a worker for the given role. Unknown roles get the
// generalist prompt.
func NewLLMWorker(client llm.Client, role string) *LLMWorker {
	system, ok := rolePrompts[role]
	if !ok {
		system = rolePrompts["executor"]
	}
	return &LLMWorker{client: client, role: role, system: system}
}

// RegisterBuiltins registers one LLM-backed worker per built-in role.
func RegisterBuiltins(r *Registry, client llm.Client) {
	for role := range rolePrompts {
		r.Register(role, NewLLMWorker(client, role))
	}
}

// Run sends the step task to the model. Prior successful step output is
// included most-recent-last so later steps can build on earlier ones.
func (w *LLMWorker) Run(ctx context.Context, step types.PlanStep, prior []types.StepResult) (types.WorkerResult, error) {
	var b strings.Builder
	if len(prior) > 0 {
		b.WriteString("Earlier step results:\n")
		for _, res := range prior {
			if res.Status == types.StepStatusSucceeded && res.Preview != "" {
				fmt.Fprintf(&b, "[step %d, %s] %s\n", res.Order, res.WorkerName, res.Preview)
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("Task: ")
	b.WriteString(step.Task)
	if step.Description != "" {
		fmt.Fprintf(&b, "\nExpected output: %s", step.Description)
	}

	content, err := w.client.CompleteWithSystem(ctx, w.system, b.String())
	if err != nil {
		logging.WorkflowDebug("%s worker failed on step %d: %v", w.role, step.Order, err)
		return types.WorkerResult{
			Status:       types.WorkerStatusError,
			ErrorMessage: err.Error(),
		}, nil
	}
	return types.WorkerResult{
		Status:  types.WorkerStatusSuccess,
		Content: content,
	}, nil
}
