// Package workflow runs confirmed plans step by step. Steps execute strictly
// sequentially in order; a failed step is recorded and execution continues,
// so one bad step never takes down the rest of the plan.
package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"dirigent/internal/logging"
	"dirigent/internal/types"
)

// previewLimit caps how much worker output is carried in a step result.
const previewLimit = 500

// Executor implements types.PlanRunner over a worker registry.
type Executor struct {
	registry types.WorkerRegistry
	sink     types.Sink // optional progress stream; may be nil
}

// NewExecutor creates an executor over the given registry. sink may be nil.
func NewExecutor(registry types.WorkerRegistry, sink types.Sink) *Executor {
	return &Executor{registry: registry, sink: sink}
}

// Run executes the plan's steps in order and returns the aggregated report.
// The report is valid even when cancellation stops the run early: attempted
// steps keep their recorded outcome and the rest are marked skipped. The
// returned error is non-nil only for a malformed plan; step failures are
// reported in the step results, not as a run error.
func (e *Executor) Run(ctx context.Context, p *types.ProposedPlan) (*types.ExecutionReport, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	steps := make([]types.PlanStep, len(p.Steps))
	copy(steps, p.Steps)
	sort.Slice(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })

	report := &types.ExecutionReport{
		PlanID:    p.ID,
		Total:     len(steps),
		Steps:     make([]types.StepResult, 0, len(steps)),
		StartedAt: time.Now(),
	}

	logging.Workflow("plan %s: executing %d steps", p.ID, len(steps))
	timer := logging.StartTimer(logging.CategoryWorkflow, "Run")
	defer timer.Stop()

	cancelled := false
	for i, step := range steps {
		if cancelled || ctx.Err() != nil {
			cancelled = true
			report.Steps = append(report.Steps, types.StepResult{
				Order:      step.Order,
				WorkerName: step.WorkerName,
				Status:     types.StepStatusSkipped,
			})
			report.Skipped++
			continue
		}

		e.progress(fmt.Sprintf("⚙ Step %d/%d: %s", i+1, len(steps), step.Task))
		result := e.runStep(ctx, step, report.Steps)
		report.Steps = append(report.Steps, result)

		switch result.Status {
		case types.StepStatusSucceeded:
			report.Succeeded++
		case types.StepStatusErrored:
			report.Errored++
			e.progress(fmt.Sprintf("✗ Step %d failed: %s", step.Order, result.Error))
		}

		if ctx.Err() != nil {
			cancelled = true
		}
	}

	report.Duration = time.Since(report.StartedAt)
	logging.Workflow("plan %s: done in %v (ok=%d err=%d skipped=%d)",
		p.ID, report.Duration, report.Succeeded, report.Errored, report.Skipped)
	return report, nil
}

// runStep resolves and invokes the worker for one step. Every failure mode
// lands in the result; nothing panics out of a step.
func (e *Executor) runStep(ctx context.Context, step types.PlanStep, prior []types.StepResult) types.StepResult {
	result := types.StepResult{
		Order:      step.Order,
		WorkerName: step.WorkerName,
	}
	started := time.Now()

	worker, ok := e.registry.Get(step.WorkerName)
	if !ok {
		result.Status = types.StepStatusErrored
		result.Error = fmt.Sprintf("%v: %s", types.ErrWorkerNotFound, step.WorkerName)
		logging.Get(logging.CategoryWorkflow).Warn("step %d: no worker %q", step.Order, step.WorkerName)
		return result
	}

	out, err := worker.Run(ctx, step, prior)
	result.Duration = time.Since(started)

	if err != nil {
		result.Status = types.StepStatusErrored
		result.Error = err.Error()
		return result
	}
	if out.Status == types.WorkerStatusError {
		result.Status = types.StepStatusErrored
		result.Error = out.ErrorMessage
		result.Preview = truncate(out.Content, previewLimit)
		return result
	}

	result.Status = types.StepStatusSucceeded
	result.Preview = truncate(out.Content, previewLimit)
	logging.WorkflowDebug("step %d (%s) succeeded in %v", step.Order, step.WorkerName, result.Duration)
	return result
}

func (e *Executor) progress(segment string) {
	if e.sink != nil {
		e.sink.Write(segment)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
