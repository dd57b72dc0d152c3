package llm

import (
	"context"
	"errors"
	"testing"
)

// cannedClient returns a fixed completion.
type cannedClient struct {
	response string
	err      error
}

func (c *cannedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.response, c.err
}

func (c *cannedClient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	return c.response, c.err
}

func (c *cannedClient) Close() error { return nil }

func TestDecomposeParsesSubtasks(t *testing.T) {
	client := &cannedClient{response: `[
		{"agent": "coder", "description": "write it", "dependencies": []},
		{"agent": "tester", "description": "check it", "dependencies": [1]}
	]`}

	subtasks, err := NewModelDecomposer(client).Decompose(context.Background(), "build the thing")
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}
	if len(subtasks) != 2 {
		t.Fatalf("got %d subtasks, want 2", len(subtasks))
	}
	if subtasks[0].Agent != "coder" || subtasks[1].Agent != "tester" {
		t.Errorf("agents = %s, %s", subtasks[0].Agent, subtasks[1].Agent)
	}
	if len(subtasks[1].Dependencies) != 1 || subtasks[1].Dependencies[0] != 1 {
		t.Errorf("dependencies = %v, want [1]", subtasks[1].Dependencies)
	}
}

func TestDecomposeStripsCodeFences(t *testing.T) {
	client := &cannedClient{response: "```json\n[{\"agent\": \"executor\", \"description\": \"do\"}]\n```"}

	subtasks, err := NewModelDecomposer(client).Decompose(context.Background(), "x")
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}
	if len(subtasks) != 1 {
		t.Fatalf("got %d subtasks, want 1", len(subtasks))
	}
}

func TestDecomposeToleratesSurroundingProse(t *testing.T) {
	client := &cannedClient{response: `Here is the plan:
[{"agent": "coder", "description": "do"}]
Let me know if you need changes.`}

	subtasks, err := NewModelDecomposer(client).Decompose(context.Background(), "x")
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}
	if len(subtasks) != 1 {
		t.Fatalf("got %d subtasks, want 1", len(subtasks))
	}
}

func TestDecomposeRejectsNonJSON(t *testing.T) {
	client := &cannedClient{response: "I cannot split this task."}
	if _, err := NewModelDecomposer(client).Decompose(context.Background(), "x"); err == nil {
		t.Error("expected error for non-JSON output")
	}
}

func TestDecomposeRejectsEmptyList(t *testing.T) {
	client := &cannedClient{response: "[]"}
	if _, err := NewModelDecomposer(client).Decompose(context.Background(), "x"); err == nil {
		t.Error("expected error for empty decomposition")
	}
}

func TestDecomposePropagatesClientError(t *testing.T) {
	wantErr := errors.New("network down")
	client := &cannedClient{err: wantErr}
	if _, err := NewModelDecomposer(client).Decompose(context.Background(), "x"); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped client error", err)
	}
}
