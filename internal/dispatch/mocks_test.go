package dispatch

import (
	"context"
	"strings"
	"sync"

	"dirigent/internal/types"
)

// scriptedClassifier returns canned classifications keyed by utterance, or a
// forced error for everything.
type scriptedClassifier struct {
	mu      sync.Mutex
	results map[string]types.IntentClassification
	err     error
	calls   int
}

func (s *scriptedClassifier) Classify(ctx context.Context, utterance string,
	_ *types.ProposedPlan, _ []types.ConversationMessage,
	_ types.ClassifyOptions) (types.IntentClassification, error) {

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if s.err != nil {
		return types.IntentClassification{}, s.err
	}
	if r, ok := s.results[utterance]; ok {
		return r, nil
	}
	return types.IntentClassification{Intent: types.IntentUncertain, Confidence: 0.2}, nil
}

// recordingRunner records the plans it was asked to run and returns an
// all-succeeded report.
type recordingRunner struct {
	mu   sync.Mutex
	runs []*types.ProposedPlan
	err  error
}

func (r *recordingRunner) Run(ctx context.Context, p *types.ProposedPlan) (*types.ExecutionReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, p)

	if r.err != nil {
		return nil, r.err
	}
	report := &types.ExecutionReport{
		PlanID: p.ID,
		Total:  len(p.Steps),
	}
	for _, s := range p.Steps {
		report.Succeeded++
		report.Steps = append(report.Steps, types.StepResult{
			Order:      s.Order,
			WorkerName: s.WorkerName,
			Status:     types.StepStatusSucceeded,
		})
	}
	return report, nil
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

// fixedDecomposer returns the same subtasks for every prompt.
type fixedDecomposer struct {
	subtasks []types.Subtask
	err      error
}

func (d *fixedDecomposer) Decompose(ctx context.Context, prompt string) ([]types.Subtask, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.subtasks, nil
}

// captureSink accumulates everything the engine says.
type captureSink struct {
	mu       sync.Mutex
	segments []string
}

func (c *captureSink) Write(segment string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.segments = append(c.segments, segment)
}

func (c *captureSink) all() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.segments, "\n")
}
