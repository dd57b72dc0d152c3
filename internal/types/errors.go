package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for programming-invariant and lookup failures.
var (
	// ErrIllegalTransition indicates a plan status edge outside the legal
	// transition table. This is an invariant violation, not a user error.
	ErrIllegalTransition = errors.New("illegal plan transition")

	// ErrMalformedPlan indicates a plan whose step sequence is empty or not
	// strictly increasing by order. Fatal for that plan's execution.
	ErrMalformedPlan = errors.New("malformed plan")

	// ErrWorkerNotFound indicates a step named a worker the registry does not
	// know. Step-local, never plan-fatal.
	ErrWorkerNotFound = errors.New("worker not found")

	// ErrPlanNotFound indicates a lookup for an id the store does not hold.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrPersistence indicates the learning blob could not be loaded or
	// saved. Recovered: learning state simply does not persist.
	ErrPersistence = errors.New("persistence failure")
)

// ClassificationError wraps any non-timeout failure of the model-backed
// classifier. The dispatch engine recovers via the deterministic fallback.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// ClassificationTimeout reports that the model call exceeded its per-call
// deadline. No partial result is available.
type ClassificationTimeout struct {
	Timeout time.Duration
}

func (e *ClassificationTimeout) Error() string {
	return fmt.Sprintf("classification timed out after %v", e.Timeout)
}

// IsClassifierFailure reports whether err is a recoverable classifier
// failure (timeout or error) that should route to the fallback strategy.
func IsClassifierFailure(err error) bool {
	var ce *ClassificationError
	var ct *ClassificationTimeout
	return errors.As(err, &ce) || errors.As(err, &ct)
}
