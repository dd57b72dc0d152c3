package types

import "context"

// Worker executes one plan step and returns a structured result. Workers are
// external collaborators; the executor treats them as opaque fallible calls.
// Prior results are passed most-recent-last as read-only context.
type Worker interface {
	Run(ctx context.Context, step PlanStep, prior []StepResult) (WorkerResult, error)
}

// WorkerRegistry resolves a step's worker by name.
type WorkerRegistry interface {
	Get(name string) (Worker, bool)
}

// Classifier maps a free-text utterance plus plan/history context to a
// categorized, confidence-scored decision. The model-backed and keyword
// strategies are the two interchangeable implementations.
type Classifier interface {
	Classify(ctx context.Context, utterance string, activePlan *ProposedPlan,
		history []ConversationMessage, opts ClassifyOptions) (IntentClassification, error)
}

// ClassifyOptions tunes a single classification call.
type ClassifyOptions struct {
	MinConfidence  float64
	Timeout        int // seconds; 0 means the configured default
	DetectSarcasm  bool
	AnalyzeUrgency bool
}

// Decomposer splits a free-text request into ordered subtasks.
type Decomposer interface {
	Decompose(ctx context.Context, prompt string) ([]Subtask, error)
}

// Sink receives user-facing output as append-only markdown-like segments.
// The engine is a streaming producer; rendering is the caller's concern.
type Sink interface {
	Write(segment string)
}

// PlanRunner is the narrow boundary between the dispatch engine and the
// workflow executor: run a confirmed plan, get a report. No field access
// across the boundary.
type PlanRunner interface {
	Run(ctx context.Context, plan *ProposedPlan) (*ExecutionReport, error)
}

// BlobStore persists the opaque learning blob. Load returns (nil, nil) when
// no blob has been saved yet.
type BlobStore interface {
	Load() ([]byte, error)
	Save(data []byte) error
	Close() error
}
