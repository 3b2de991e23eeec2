package fdtd

import (
	"errors"
	"fmt"
)

// Domain errors for solver operations.
var (
	// ErrInvalidParams indicates parameters that cannot produce a grid.
	ErrInvalidParams = errors.New("fdtd: invalid simulation parameters")

	// ErrBackendUnavailable indicates the compute backend cannot run.
	ErrBackendUnavailable = errors.New("fdtd: compute backend unavailable")

	// ErrClosed indicates use of a simulation after Close.
	ErrClosed = errors.New("fdtd: simulation closed")
)

// StageError wraps a compute failure with the stage that produced it and the
// simulated time it was reported at.
type StageError struct {
	Stage   string
	Time    float64
	Wrapped error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("fdtd: %s stage at t=%g: %v", e.Stage, e.Time, e.Wrapped)
}

func (e *StageError) Unwrap() error {
	return e.Wrapped
}
