package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"dirigent/internal/types"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// scriptedWorker returns a fixed outcome and records the prior results it saw.
type scriptedWorker struct {
	fail      bool
	failErr   error
	content   string
	seenPrior [][]types.StepResult
	block     chan struct{} // when set, Run waits for ctx or close
}

func (w *scriptedWorker) Run(ctx context.Context, step types.PlanStep, prior []types.StepResult) (types.WorkerResult, error) {
	snapshot := make([]types.StepResult, len(prior))
	copy(snapshot, prior)
	w.seenPrior = append(w.seenPrior, snapshot)

	if w.block != nil {
		select {
		case <-ctx.Done():
			return types.WorkerResult{}, ctx.Err()
		case <-w.block:
		}
	}
	if w.failErr != nil {
		return types.WorkerResult{}, w.failErr
	}
	if w.fail {
		return types.WorkerResult{Status: types.WorkerStatusError, ErrorMessage: "worker reported failure"}, nil
	}
	content := w.content
	if content == "" {
		content = fmt.Sprintf("output of step %d", step.Order)
	}
	return types.WorkerResult{Status: types.WorkerStatusSuccess, Content: content}, nil
}

func threeStepPlan() *types.ProposedPlan {
	p := types.NewProposedPlan("three steps", "do three things")
	for i := 1; i <= 3; i++ {
		p.AddStep(types.PlanStep{Order: i, WorkerName: fmt.Sprintf("w%d", i), Task: fmt.Sprintf("task %d", i)})
	}
	return p
}

func TestStepFailureDoesNotStopTheRun(t *testing.T) {
	reg := NewRegistry()
	w1 := &scriptedWorker{}
	w2 := &scriptedWorker{failErr: errors.New("boom")}
	w3 := &scriptedWorker{}
	reg.Register("w1", w1)
	reg.Register("w2", w2)
	reg.Register("w3", w3)

	report, err := NewExecutor(reg, nil).Run(context.Background(), threeStepPlan())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Succeeded != 2 || report.Errored != 1 || report.Skipped != 0 {
		t.Errorf("counts = ok:%d err:%d skip:%d, want 2/1/0",
			report.Succeeded, report.Errored, report.Skipped)
	}
	if len(w3.seenPrior) != 1 {
		t.Fatal("step 3 must still be attempted after step 2 fails")
	}
	if report.Steps[1].Status != types.StepStatusErrored || report.Steps[1].Error == "" {
		t.Errorf("step 2 result = %+v, want errored with message", report.Steps[1])
	}
	if report.Partial() {
		t.Error("a run that attempted every step is not partial")
	}
}

func TestPriorResultsAccumulateInOrder(t *testing.T) {
	reg := NewRegistry()
	workers := []*scriptedWorker{{}, {}, {}}
	for i, w := range workers {
		reg.Register(fmt.Sprintf("w%d", i+1), w)
	}

	if _, err := NewExecutor(reg, nil).Run(context.Background(), threeStepPlan()); err != nil {
		t.Fatal(err)
	}

	prior := workers[2].seenPrior[0]
	if len(prior) != 2 {
		t.Fatalf("step 3 saw %d prior results, want 2", len(prior))
	}
	if prior[0].Order != 1 || prior[1].Order != 2 {
		t.Errorf("prior order = [%d, %d], want most-recent-last [1, 2]", prior[0].Order, prior[1].Order)
	}
}

func TestMissingWorkerIsAStepFailure(t *testing.T) {
	reg := NewRegistry()
	w1 := &scriptedWorker{}
	w3 := &scriptedWorker{}
	reg.Register("w1", w1)
	reg.Register("w3", w3)

	report, err := NewExecutor(reg, nil).Run(context.Background(), threeStepPlan())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Steps[1].Status != types.StepStatusErrored {
		t.Errorf("missing worker step = %s, want errored", report.Steps[1].Status)
	}
	if !strings.Contains(report.Steps[1].Error, "w2") {
		t.Errorf("error %q should name the missing worker", report.Steps[1].Error)
	}
	if len(w3.seenPrior) != 1 {
		t.Error("execution must continue past an unresolvable worker")
	}
}

func TestCancellationSkipsRemainingSteps(t *testing.T) {
	reg := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w1 := &scriptedWorker{}
	w2 := &scriptedWorker{block: make(chan struct{})}
	w3 := &scriptedWorker{}
	reg.Register("w1", w1)
	reg.Register("w2", w2)
	reg.Register("w3", w3)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	report, err := NewExecutor(reg, nil).Run(ctx, threeStepPlan())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", report.Succeeded)
	}
	if report.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", report.Skipped)
	}
	if !report.Partial() {
		t.Error("a cancelled run must report as partial")
	}
	if len(w3.seenPrior) != 0 {
		t.Error("steps after cancellation must not run")
	}
	if report.Steps[2].Status != types.StepStatusSkipped {
		t.Errorf("step 3 = %s, want skipped", report.Steps[2].Status)
	}
}

func TestMalformedPlanFailsBeforeAnyStep(t *testing.T) {
	reg := NewRegistry()
	w := &scriptedWorker{}
	reg.Register("w1", w)

	p := types.NewProposedPlan("bad", "")
	p.AddStep(types.PlanStep{Order: 1, WorkerName: "w1", Task: "a"})
	p.AddStep(types.PlanStep{Order: 1, WorkerName: "w1", Task: "dup order"})

	_, err := NewExecutor(reg, nil).Run(context.Background(), p)
	if !errors.Is(err, types.ErrMalformedPlan) {
		t.Fatalf("err = %v, want ErrMalformedPlan", err)
	}
	if len(w.seenPrior) != 0 {
		t.Error("no step may run for a malformed plan")
	}
}

func TestPreviewIsTruncated(t *testing.T) {
	reg := NewRegistry()
	reg.Register("w1", &scriptedWorker{content: strings.Repeat("x", previewLimit*2)})

	p := types.NewProposedPlan("long output", "")
	p.AddStep(types.PlanStep{Order: 1, WorkerName: "w1", Task: "talk a lot"})

	report, err := NewExecutor(reg, nil).Run(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Steps[0].Preview) != previewLimit {
		t.Errorf("preview length = %d, want %d", len(report.Steps[0].Preview), previewLimit)
	}
}

func TestRegistryNames(t *testing.T) {
	reg := NewRegistry()
	reg.Register("coder", &scriptedWorker{})
	reg.Register("coder", &scriptedWorker{}) // replacement, not duplicate
	reg.Register("tester", &scriptedWorker{})

	if got := len(reg.Names()); got != 2 {
		t.Errorf("registered names = %d, want 2", got)
	}
	if _, ok := reg.Get("coder"); !ok {
		t.Error("coder should resolve")
	}
	if _, ok := reg.Get("ghost"); ok {
		t.Error("unregistered name must not resolve")
	}
}
