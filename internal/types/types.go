// Package types defines the shared data model for the dirigent engine:
// conversation messages, intent classifications, plans and their steps,
// and the execution report produced by the workflow executor.
package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// ConversationMessage is a single utterance in the rolling history.
// Messages are immutable once appended.
type ConversationMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Intent is the categorical decision produced by classification.
type Intent string

const (
	IntentConfirmExecution     Intent = "confirm_execution"
	IntentRequestClarification Intent = "request_clarification"
	IntentModifyPlan           Intent = "modify_plan"
	IntentReject               Intent = "reject"
	IntentNewRequest           Intent = "new_request"
	IntentUncertain            Intent = "uncertain"
)

// Valid reports whether the intent is one of the known categories.
func (i Intent) Valid() bool {
	switch i {
	case IntentConfirmExecution, IntentRequestClarification, IntentModifyPlan,
		IntentReject, IntentNewRequest, IntentUncertain:
		return true
	}
	return false
}

// ContextFactors carries the auxiliary signals a classifier extracted
// alongside the categorical decision.
type ContextFactors struct {
	TimeSinceProposal time.Duration `json:"time_since_proposal"`
	PreviousIntent    Intent        `json:"previous_intent,omitempty"`
	UserTone          string        `json:"user_tone,omitempty"`
	HasConditions     bool          `json:"has_conditions"`
	DetectedLanguage  string        `json:"detected_language,omitempty"`
	SarcasmDetected   bool          `json:"sarcasm_detected"`
	UrgencyLevel      string        `json:"urgency_level,omitempty"`
}

// IntentClassification is the confidence-scored decision for one utterance.
// It is produced fresh per utterance and never mutated after creation.
type IntentClassification struct {
	Intent          Intent         `json:"intent"`
	Confidence      float64        `json:"confidence"`
	Reasoning       string         `json:"reasoning,omitempty"`
	SuggestedAction string         `json:"suggested_action,omitempty"`
	Factors         ContextFactors `json:"context_factors"`
}

// PlanStatus tracks the lifecycle state of a proposed plan.
type PlanStatus string

const (
	PlanStatusProposed  PlanStatus = "proposed"
	PlanStatusExecuting PlanStatus = "executing"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusModified  PlanStatus = "modified"
	PlanStatusRejected  PlanStatus = "rejected"
)

// PlanStep is a single step in a proposed plan.
type PlanStep struct {
	Order            int    `json:"order"`
	WorkerName       string `json:"worker_name"`
	Task             string `json:"task"`
	Description      string `json:"description,omitempty"`
	Dependencies     []int  `json:"dependencies,omitempty"` // advisory; execution is strictly by order
	EstimatedSeconds int    `json:"estimated_seconds,omitempty"`
}

// ProposedPlan is an ordered set of steps awaiting confirmation.
type ProposedPlan struct {
	ID             string     `json:"id"`
	Description    string     `json:"description"`
	OriginalPrompt string     `json:"original_prompt"`
	CreatedAt      time.Time  `json:"created_at"`
	Status         PlanStatus `json:"status"`
	Steps          []PlanStep `json:"steps"`
}

// NewProposedPlan creates a plan in the proposed state with a fresh id.
func NewProposedPlan(description, originalPrompt string) *ProposedPlan {
	return &ProposedPlan{
		ID:             uuid.NewString(),
		Description:    description,
		OriginalPrompt: originalPrompt,
		CreatedAt:      time.Now(),
		Status:         PlanStatusProposed,
		Steps:          make([]PlanStep, 0),
	}
}

// AddStep appends a step to the plan.
func (p *ProposedPlan) AddStep(step PlanStep) {
	p.Steps = append(p.Steps, step)
}

// Validate checks the plan invariant: a non-empty step sequence whose order
// values are strictly increasing.
func (p *ProposedPlan) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: plan %s has no steps", ErrMalformedPlan, p.ID)
	}
	prev := 0
	for i, s := range p.Steps {
		if s.Order <= prev {
			return fmt.Errorf("%w: step %d has order %d, must exceed %d",
				ErrMalformedPlan, i, s.Order, prev)
		}
		prev = s.Order
	}
	return nil
}

// StepStatus tracks the outcome of one executed step.
type StepStatus string

const (
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusErrored   StepStatus = "errored"
	StepStatusSkipped   StepStatus = "skipped" // not attempted (cancellation)
)

// StepResult records the outcome of one step. Results are read-only context
// for subsequent steps; no step may mutate another's recorded result.
type StepResult struct {
	Order      int           `json:"order"`
	WorkerName string        `json:"worker_name"`
	Status     StepStatus    `json:"status"`
	Preview    string        `json:"preview,omitempty"` // truncated worker output
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// ExecutionReport aggregates the outcome of a full plan run.
type ExecutionReport struct {
	PlanID    string        `json:"plan_id"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Errored   int           `json:"errored"`
	Skipped   int           `json:"skipped"`
	Steps     []StepResult  `json:"steps"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Partial reports whether the run stopped before attempting every step.
func (r *ExecutionReport) Partial() bool {
	return r.Skipped > 0
}

// WorkerStatus is the structured outcome a worker reports for one step.
type WorkerStatus string

const (
	WorkerStatusSuccess WorkerStatus = "success"
	WorkerStatusError   WorkerStatus = "error"
)

// WorkerResult is the structured result of one worker invocation.
type WorkerResult struct {
	Status       WorkerStatus `json:"status"`
	Content      string       `json:"content"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// Subtask is one unit returned by the decomposition collaborator.
type Subtask struct {
	Agent          string `json:"agent"`
	Description    string `json:"description"`
	ExpectedOutput string `json:"expected_output,omitempty"`
	Dependencies   []int  `json:"dependencies,omitempty"`
}
