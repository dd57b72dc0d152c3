package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"dirigent/internal/logging"
	"dirigent/internal/types"
)

const decomposeSystemPrompt = `You split a user request into a short ordered list of subtasks for specialist workers.

Respond with ONLY a JSON array, no prose:
[
  {
    "agent": "coder|reviewer|tester|researcher|executor",
    "description": "what this step must do",
    "expected_output": "what the step should produce",
    "dependencies": [1]
  }
]

Rules:
- 1 to 6 subtasks, each independently executable by one worker.
- dependencies lists 1-based positions of earlier subtasks this one needs.
- Prefer fewer steps over artificial splits.`

// ModelDecomposer asks the model to split a request into subtasks.
type ModelDecomposer struct {
	client Client
}

// NewModelDecomposer wraps a completion client as a Decomposer.
func NewModelDecomposer(client Client) *ModelDecomposer {
	return &ModelDecomposer{client: client}
}

// Decompose returns the ordered subtasks for the prompt. A response that is
// not valid JSON is an error; the caller decides how to degrade.
func (d *ModelDecomposer) Decompose(ctx context.Context, prompt string) ([]types.Subtask, error) {
	raw, err := d.client.CompleteWithSystem(ctx, decomposeSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("decomposition failed: %w", err)
	}

	var subtasks []types.Subtask
	if err := json.Unmarshal([]byte(extractJSON(raw)), &subtasks); err != nil {
		logging.Get(logging.CategoryAPI).Warn("unparseable decomposition: %v", err)
		return nil, fmt.Errorf("decomposition returned invalid JSON: %w", err)
	}
	if len(subtasks) == 0 {
		return nil, fmt.Errorf("decomposition returned no subtasks")
	}

	logging.API("decomposed request into %d subtasks", len(subtasks))
	return subtasks, nil
}

// extractJSON strips markdown code fences and surrounding prose, returning
// the first top-level JSON value in the text.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return s
	}
	var end int
	if s[start] == '[' {
		end = strings.LastIndex(s, "]")
	} else {
		end = strings.LastIndex(s, "}")
	}
	if end <= start {
		return s[start:]
	}
	return s[start : end+1]
}
