package plan

import (
	"errors"
	"strings"
	"testing"

	"dirigent/internal/types"
)

func TestFromSubtasksAssignsPositionalOrder(t *testing.T) {
	subtasks := []types.Subtask{
		{Agent: "coder", Description: "write"},
		{Agent: "", Description: "run it"},
		{Agent: "tester", Description: "verify", Dependencies: []int{1, 2}},
	}

	p, err := FromSubtasks("do everything", "three phases", subtasks)
	if err != nil {
		t.Fatalf("FromSubtasks failed: %v", err)
	}
	if len(p.Steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(p.Steps))
	}
	for i, s := range p.Steps {
		if s.Order != i+1 {
			t.Errorf("step %d order = %d, want %d", i, s.Order, i+1)
		}
	}
	if p.Steps[1].WorkerName != "executor" {
		t.Errorf("blank agent mapped to %q, want executor", p.Steps[1].WorkerName)
	}
	if p.OriginalPrompt != "do everything" {
		t.Errorf("original prompt = %q", p.OriginalPrompt)
	}
}

func TestFromSubtasksRejectsEmpty(t *testing.T) {
	if _, err := FromSubtasks("x", "y", nil); !errors.Is(err, types.ErrMalformedPlan) {
		t.Errorf("err = %v, want ErrMalformedPlan", err)
	}
}

func TestReviewFixTemplate(t *testing.T) {
	p := ReviewFixTemplate("clean up the parser")
	if err := p.Validate(); err != nil {
		t.Fatalf("template plan must validate: %v", err)
	}
	if len(p.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(p.Steps))
	}
	if p.Steps[0].WorkerName != "reviewer" || p.Steps[1].WorkerName != "coder" {
		t.Errorf("workers = %s, %s", p.Steps[0].WorkerName, p.Steps[1].WorkerName)
	}
	if len(p.Steps[1].Dependencies) != 1 || p.Steps[1].Dependencies[0] != 1 {
		t.Errorf("fix step dependencies = %v, want [1]", p.Steps[1].Dependencies)
	}
}

func TestSummaryListsSteps(t *testing.T) {
	p := ReviewFixTemplate("tidy up")
	s := Summary(p)
	if !strings.Contains(s, "reviewer") || !strings.Contains(s, "coder") {
		t.Errorf("summary missing workers:\n%s", s)
	}
	if Summary(nil) != "no plan" {
		t.Error("nil plan should render as \"no plan\"")
	}
}
