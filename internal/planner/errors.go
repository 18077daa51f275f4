package planner

import "errors"

var (
	ErrEmptyGoal     = errors.New("goal is required")
	ErrEmptyMessage  = errors.New("message is required")
	ErrNoJSON        = errors.New("no JSON object in response")
	ErrMalformedPlan = errors.New("malformed plan")
)

// GenerationError reports a failed plan generation.
// Nothing derived from a failed generation may be persisted.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return "plan generation failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// RecalculationError reports a failed plan recalculation.
// The existing plan must be left untouched.
type RecalculationError struct {
	Err error
}

func (e *RecalculationError) Error() string {
	return "plan recalculation failed: " + e.Err.Error()
}

func (e *RecalculationError) Unwrap() error {
	return e.Err
}

// AdvisorError reports a failed chat reply.
type AdvisorError struct {
	Err error
}

func (e *AdvisorError) Error() string {
	return "advisor reply failed: " + e.Err.Error()
}

func (e *AdvisorError) Unwrap() error {
	return e.Err
}
