package solve

import (
	"errors"
	"fmt"
)

// Fatal run conditions. A run either completes with a full Result or fails
// with one of these; there is no partial output.
var (
	// ErrNewtonDiverged indicates the Newton iteration failed to converge
	// after the bounded number of step-shrink retries.
	ErrNewtonDiverged = errors.New("solve: newton iteration failed to converge")

	// ErrErrorTestFailed indicates the local error test kept rejecting the
	// step after the bounded number of shrink retries.
	ErrErrorTestFailed = errors.New("solve: local error test failed repeatedly")

	// ErrStepTooSmall indicates the adaptive step size shrank below MinStep.
	ErrStepTooSmall = errors.New("solve: step size below minimum")

	// ErrEventBracket indicates event bisection could not bracket a sign
	// change within the configured number of refinements.
	ErrEventBracket = errors.New("solve: event location failed to bracket sign change")

	// ErrDeadlineExceeded indicates a single step exceeded the configured
	// per-step deadline.
	ErrDeadlineExceeded = errors.New("solve: step deadline exceeded")

	// ErrDimensionMismatch indicates the initial state length does not match
	// the system dimension.
	ErrDimensionMismatch = errors.New("solve: state dimension mismatch")
)

// errNonFinite is an internal retry trigger: a trial step producing NaN/Inf
// is treated exactly like a Newton failure and retried with a smaller step.
var errNonFinite = errors.New("solve: non-finite trial state")

// RunError wraps a fatal condition with where the run was when it failed.
type RunError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("step %d (t=%g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *RunError) Unwrap() error {
	return e.Wrapped
}
