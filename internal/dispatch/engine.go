// Package dispatch is the routing core: it classifies each utterance against
// the session's pending plan and drives the plan lifecycle accordingly.
// Execution is gated on explicit, confident confirmation; everything below
// the confidence bar degrades to a question, never to an action.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"dirigent/internal/classify"
	"dirigent/internal/config"
	"dirigent/internal/conversation"
	"dirigent/internal/logging"
	"dirigent/internal/plan"
	"dirigent/internal/types"
)

// session is the per-session dispatch state. awaitingClarification is
// advisory context only; it never blocks any intent from being honored.
type session struct {
	conv                  *conversation.Context
	awaitingClarification bool
}

// Engine routes utterances. One engine serves many sessions; sessions are
// isolated from each other.
type Engine struct {
	classifier *classify.IntentClassifier
	runner     types.PlanRunner
	decomposer types.Decomposer
	plans      *plan.Store
	blob       types.BlobStore
	sink       types.Sink
	thresholds func() config.Thresholds
	cfg        config.ClassifyConfig
	convCfg    config.ConversationConfig

	mu       sync.Mutex
	sessions map[string]*session
	seed     []byte // saved learning blob applied to new sessions
}

// Options carries the engine's collaborators. Classifier, Runner, Plans, and
// Thresholds are required; the rest degrade gracefully when nil.
type Options struct {
	Classifier *classify.IntentClassifier
	Runner     types.PlanRunner
	Decomposer types.Decomposer
	Plans      *plan.Store
	Blob       types.BlobStore
	Sink       types.Sink
	Thresholds func() config.Thresholds
	Classify   config.ClassifyConfig
	Conv       config.ConversationConfig
}

// New creates a dispatch engine.
func New(opts Options) (*Engine, error) {
	if opts.Classifier == nil || opts.Runner == nil || opts.Plans == nil {
		return nil, fmt.Errorf("dispatch engine requires classifier, runner, and plan store")
	}
	thresholds := opts.Thresholds
	if thresholds == nil {
		def := config.DefaultConfig().Thresholds
		thresholds = func() config.Thresholds { return def }
	}

	logging.Dispatch("dispatch engine created")
	return &Engine{
		classifier: opts.Classifier,
		runner:     opts.Runner,
		decomposer: opts.Decomposer,
		plans:      opts.Plans,
		blob:       opts.Blob,
		sink:       opts.Sink,
		thresholds: thresholds,
		cfg:        opts.Classify,
		convCfg:    opts.Conv,
		sessions:   make(map[string]*session),
	}, nil
}

// Init loads the saved learning blob. It must be called once before Handle;
// a missing or unreadable blob is logged and ignored, never fatal.
func (e *Engine) Init() error {
	if e.blob == nil {
		return nil
	}
	data, err := e.blob.Load()
	if err != nil {
		logging.Get(logging.CategoryDispatch).Warn("could not load learning state: %v", err)
		return nil
	}
	e.mu.Lock()
	e.seed = data
	e.mu.Unlock()
	if len(data) > 0 {
		logging.Dispatch("restored %d bytes of learning state", len(data))
	}
	return nil
}

// Flush persists the session's learning state. Persistence failures degrade
// to a warning; the in-memory state stays authoritative.
func (e *Engine) Flush(sessionID string) {
	if e.blob == nil {
		return
	}
	sess := e.session(sessionID)
	data, err := sess.conv.ExportLearningData()
	if err != nil {
		logging.Get(logging.CategoryDispatch).Warn("export learning state: %v", err)
		return
	}
	if err := e.blob.Save(data); err != nil {
		logging.Get(logging.CategoryDispatch).Warn("save learning state: %v", err)
	}
}

// Close releases the blob store. Callers wanting a final flush must call
// Flush first.
func (e *Engine) Close() error {
	if e.blob == nil {
		return nil
	}
	return e.blob.Close()
}

func (e *Engine) session(id string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.sessions[id]
	if sess == nil {
		sess = &session{
			conv: conversation.NewContext(e.convCfg.Retention, e.convCfg.MaxArchive),
		}
		if len(e.seed) > 0 {
			if err := sess.conv.ImportLearningData(e.seed); err != nil {
				logging.Get(logging.CategoryDispatch).Warn("seed learning state: %v", err)
			}
		}
		e.sessions[id] = sess
		logging.Dispatch("session %s created", id)
	}
	return sess
}

// Conversation exposes the session's conversation context, creating the
// session if needed.
func (e *Engine) Conversation(sessionID string) *conversation.Context {
	return e.session(sessionID).conv
}

// Handle routes one utterance. Output streams to the sink; the returned
// error is non-nil only for abandonment (caller cancellation), never for
// classifier failure or step failure.
func (e *Engine) Handle(ctx context.Context, sessionID, utterance string) error {
	sess := e.session(sessionID)
	sess.conv.AddMessage(types.ConversationMessage{
		Role:      types.RoleUser,
		Content:   utterance,
		Timestamp: time.Now(),
	})

	active := e.plans.Active(sessionID)
	decision, err := e.classify(ctx, sessionID, sess, utterance, active)
	if err != nil {
		// Only caller cancellation reaches here; classifier failures have
		// already been absorbed by the fallback.
		return err
	}

	th := e.thresholds()
	logging.Dispatch("session %s: %s (%.2f) awaiting=%v active=%v",
		sessionID, decision.Intent, decision.Confidence, sess.awaitingClarification, active != nil)

	switch decision.Intent {
	case types.IntentConfirmExecution:
		return e.handleConfirm(ctx, sessionID, sess, decision, th)
	case types.IntentRequestClarification:
		e.handleClarificationRequest(sessionID, sess)
	case types.IntentModifyPlan:
		e.handleModify(sessionID, sess)
	case types.IntentReject:
		e.handleReject(sessionID, sess)
	case types.IntentNewRequest:
		return e.handleNewRequest(ctx, sessionID, sess, utterance)
	case types.IntentUncertain:
		if decision.Confidence >= th.Uncertain {
			return e.handleNewRequest(ctx, sessionID, sess, utterance)
		}
		e.handleUncertain(sess)
	}
	return nil
}

// classify runs the primary classifier and falls back to the deterministic
// keyword strategy on any classifier failure. Caller cancellation is the one
// failure that propagates.
func (e *Engine) classify(ctx context.Context, sessionID string, sess *session,
	utterance string, active *types.ProposedPlan) (types.IntentClassification, error) {

	opts := types.ClassifyOptions{
		DetectSarcasm:  e.cfg.DetectSarcasm,
		AnalyzeUrgency: e.cfg.AnalyzeUrgency,
	}
	history := sess.conv.RecentContext(e.convCfg.ContextK)

	decision, err := e.classifier.ClassifyIntent(ctx, utterance, active, history, opts)
	if err == nil {
		return decision, nil
	}
	if errors.Is(err, context.Canceled) {
		logging.Dispatch("session %s: classification abandoned", sessionID)
		return types.IntentClassification{}, err
	}
	if !types.IsClassifierFailure(err) {
		return types.IntentClassification{}, err
	}

	logging.Dispatch("session %s: classifier failed (%v), using keyword fallback", sessionID, err)
	th := e.thresholds()
	fallback := classify.NewKeywordClassifier(th.FallbackConfirm, th.FallbackUnmapped, sess.conv)
	return fallback.Classify(ctx, utterance, active, history, opts)
}

// ==== intent handlers ====

func (e *Engine) handleConfirm(ctx context.Context, sessionID string, sess *session,
	decision types.IntentClassification, th config.Thresholds) error {

	active := e.plans.Active(sessionID)
	if active == nil {
		e.say("There's no pending plan to run. Tell me what you'd like to do.")
		return nil
	}

	switch {
	case decision.Confidence > th.Execute:
		sess.awaitingClarification = false
		return e.execute(ctx, sessionID, sess, active)

	case decision.Confidence >= th.ConfirmFloor:
		sess.awaitingClarification = true
		e.say(fmt.Sprintf("Just to be sure — should I run this plan?\n\n%s", plan.Summary(active)))

	default:
		sess.awaitingClarification = true
		e.say("I'm not sure that was a go-ahead. Say \"yes\" to run the pending plan, or tell me what to change.")
	}
	return nil
}

// execute drives a confirmed plan through its executing lifecycle and
// reports the outcome. Step failures are reported, not returned.
func (e *Engine) execute(ctx context.Context, sessionID string, sess *session,
	active *types.ProposedPlan) error {

	if _, err := e.plans.Transition(sessionID, active.ID, types.PlanStatusExecuting); err != nil {
		logging.Get(logging.CategoryDispatch).Error("session %s: cannot start plan %s: %v", sessionID, active.ID, err)
		e.say("That plan can't be started in its current state.")
		return nil
	}

	e.say(fmt.Sprintf("Running **%s** (%d steps)...", active.Description, len(active.Steps)))
	report, err := e.runner.Run(ctx, active)
	if err != nil {
		// Malformed plans are caught at proposal time; reaching this means
		// the plan was corrupted after storage.
		e.plans.Transition(sessionID, active.ID, types.PlanStatusRejected)
		sess.conv.ArchivePlan(*active, types.PlanStatusRejected)
		e.say(fmt.Sprintf("The plan could not be executed: %v", err))
		return nil
	}

	// A cancelled run takes the abort edge; a finished run (even with step
	// failures) completes.
	outcome := types.PlanStatusCompleted
	if ctx.Err() != nil && report.Partial() {
		outcome = types.PlanStatusRejected
	}
	done, terr := e.plans.Transition(sessionID, active.ID, outcome)
	if terr != nil {
		logging.Get(logging.CategoryDispatch).Error("session %s: finish plan %s: %v", sessionID, active.ID, terr)
	} else {
		sess.conv.ArchivePlan(*done, outcome)
	}

	sess.conv.LearnFromInteraction(types.IntentConfirmExecution, true)
	e.say(renderReport(report))
	e.Flush(sessionID)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func (e *Engine) handleClarificationRequest(sessionID string, sess *session) {
	active := e.plans.Active(sessionID)
	if active == nil {
		e.say("There's no pending plan right now. Describe what you'd like done and I'll propose one.")
		return
	}
	sess.awaitingClarification = true
	e.say(fmt.Sprintf("Here's the pending plan in detail:\n\n%s\nSay \"go\" to run it, or tell me what to change.", plan.Summary(active)))
}

func (e *Engine) handleModify(sessionID string, sess *session) {
	active := e.plans.Active(sessionID)
	if active == nil {
		e.say("There's nothing to modify yet — describe the task and I'll draft a plan.")
		return
	}

	modified, err := e.plans.Transition(sessionID, active.ID, types.PlanStatusModified)
	if err != nil {
		logging.Get(logging.CategoryDispatch).Warn("session %s: modify plan %s: %v", sessionID, active.ID, err)
		e.say("The current plan can't be modified mid-run. Reject it first, or let it finish.")
		return
	}
	sess.conv.ArchivePlan(*modified, types.PlanStatusModified)
	sess.conv.LearnFromInteraction(types.IntentModifyPlan, true)

	// A modified plan has no outgoing edge; the revision arrives as the next
	// request, so the active slot opens up now.
	e.plans.ClearActive(sessionID)
	e.say("Got it — the current plan is set aside. Describe the change and I'll draft a revised plan.")
}

func (e *Engine) handleReject(sessionID string, sess *session) {
	sess.awaitingClarification = false

	active := e.plans.Active(sessionID)
	if active == nil {
		e.say("Nothing pending to cancel.")
		return
	}

	rejected, err := e.plans.Transition(sessionID, active.ID, types.PlanStatusRejected)
	if err != nil {
		logging.Get(logging.CategoryDispatch).Error("session %s: reject plan %s: %v", sessionID, active.ID, err)
		return
	}
	sess.conv.ArchivePlan(*rejected, types.PlanStatusRejected)
	sess.conv.LearnFromInteraction(types.IntentReject, true)
	e.say("Understood — plan discarded. What would you like instead?")
	e.Flush(sessionID)
}

func (e *Engine) handleNewRequest(ctx context.Context, sessionID string, sess *session, utterance string) error {
	sess.awaitingClarification = false

	p := e.buildPlan(ctx, utterance)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if _, err := e.plans.Propose(sessionID, p); err != nil {
		logging.Get(logging.CategoryDispatch).Error("session %s: propose failed: %v", sessionID, err)
		e.say("I couldn't turn that into a runnable plan. Could you rephrase?")
		return nil
	}

	e.say(fmt.Sprintf("Here's what I propose:\n\n%s\nShall I go ahead?", plan.Summary(p)))
	return nil
}

// buildPlan decomposes the request, degrading to a single-step plan when
// decomposition is unavailable or fails. Review-then-fix requests skip
// decomposition entirely and use the fixed two-phase template.
func (e *Engine) buildPlan(ctx context.Context, utterance string) *types.ProposedPlan {
	if wantsReviewFix(utterance) {
		return plan.ReviewFixTemplate(utterance)
	}
	if e.decomposer != nil {
		subtasks, err := e.decomposer.Decompose(ctx, utterance)
		if err == nil {
			if p, perr := plan.FromSubtasks(utterance, describe(utterance), subtasks); perr == nil {
				return p
			}
		} else if ctx.Err() == nil {
			logging.Get(logging.CategoryDispatch).Warn("decomposition failed: %v", err)
		}
	}

	p := types.NewProposedPlan(describe(utterance), utterance)
	p.AddStep(types.PlanStep{
		Order:      1,
		WorkerName: "executor",
		Task:       utterance,
	})
	return p
}

// wantsReviewFix detects the "review X and fix it" request shape.
func wantsReviewFix(utterance string) bool {
	lower := strings.ToLower(utterance)
	return strings.Contains(lower, "review") &&
		(strings.Contains(lower, "fix") || strings.Contains(lower, "then apply"))
}

func (e *Engine) handleUncertain(sess *session) {
	sess.awaitingClarification = true
	e.say("I didn't quite catch that. You can:\n" +
		"1. Say \"yes\" to run the pending plan\n" +
		"2. Ask me to explain the plan\n" +
		"3. Tell me what to change\n" +
		"4. Say \"no\" to discard it\n" +
		"5. Describe a new task")
}

// ==== output ====

func (e *Engine) say(segment string) {
	if e.sink != nil {
		e.sink.Write(segment)
	}
	logging.DispatchDebug("-> %s", firstLine(segment))
}

func renderReport(r *types.ExecutionReport) string {
	header := fmt.Sprintf("Done: %d/%d steps succeeded", r.Succeeded, r.Total)
	if r.Partial() {
		header = fmt.Sprintf("Stopped early: %d succeeded, %d failed, %d not attempted", r.Succeeded, r.Errored, r.Skipped)
	} else if r.Errored > 0 {
		header = fmt.Sprintf("Finished with failures: %d succeeded, %d failed", r.Succeeded, r.Errored)
	}

	out := header + "\n"
	for _, s := range r.Steps {
		switch s.Status {
		case types.StepStatusSucceeded:
			out += fmt.Sprintf("  ✓ step %d (%s)\n", s.Order, s.WorkerName)
		case types.StepStatusErrored:
			out += fmt.Sprintf("  ✗ step %d (%s): %s\n", s.Order, s.WorkerName, s.Error)
		case types.StepStatusSkipped:
			out += fmt.Sprintf("  - step %d (%s): skipped\n", s.Order, s.WorkerName)
		}
	}
	return out
}

func describe(utterance string) string {
	const max = 60
	if len(utterance) <= max {
		return utterance
	}
	return utterance[:max-3] + "..."
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
