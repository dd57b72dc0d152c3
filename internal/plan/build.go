package plan

import (
	"fmt"
	"strings"

	"dirigent/internal/types"
)

// FromSubtasks builds a proposed plan from the decomposition collaborator's
// output. Subtask order is positional; the agent name becomes the worker name.
func FromSubtasks(prompt, description string, subtasks []types.Subtask) (*types.ProposedPlan, error) {
	if len(subtasks) == 0 {
		return nil, fmt.Errorf("%w: decomposition produced no subtasks", types.ErrMalformedPlan)
	}

	p := types.NewProposedPlan(description, prompt)
	for i, st := range subtasks {
		worker := strings.TrimSpace(st.Agent)
		if worker == "" {
			worker = "executor"
		}
		p.AddStep(types.PlanStep{
			Order:        i + 1,
			WorkerName:   worker,
			Task:         st.Description,
			Description:  st.ExpectedOutput,
			Dependencies: st.Dependencies,
		})
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ReviewFixTemplate is a fixed two-phase plan proposed directly by the
// specialized review handler, without going through decomposition.
func ReviewFixTemplate(prompt string) *types.ProposedPlan {
	p := types.NewProposedPlan("Review then fix", prompt)
	p.AddStep(types.PlanStep{
		Order:       1,
		WorkerName:  "reviewer",
		Task:        fmt.Sprintf("Review: %s", prompt),
		Description: "Findings and prioritized issues",
	})
	p.AddStep(types.PlanStep{
		Order:        2,
		WorkerName:   "coder",
		Task:         fmt.Sprintf("Apply fixes for: %s", prompt),
		Description:  "Patched code addressing the review findings",
		Dependencies: []int{1},
	})
	return p
}

// Summary renders a short human-readable description of a plan for
// clarification prompts.
func Summary(p *types.ProposedPlan) string {
	if p == nil {
		return "no plan"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (%d steps)\n", p.Description, len(p.Steps))
	for _, s := range p.Steps {
		fmt.Fprintf(&b, "%d. `%s`: %s\n", s.Order, s.WorkerName, s.Task)
	}
	return b.String()
}
