package manager

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by Start for a record whose status is running.
	ErrAlreadyRunning = errors.New("process already running")
	// ErrAlreadyStopped is returned by Stop for a record without a pid.
	ErrAlreadyStopped = errors.New("process already stopped")
	// ErrNameExists is returned by a fresh Start whose effective name is taken.
	ErrNameExists = errors.New("process name already exists")
	// ErrNoTarget is returned when neither a target nor a config file is given.
	ErrNoTarget = errors.New("either --config or a target must be given")
	// ErrRecordChanged is returned when another invocation relaunched the
	// record between reading it and writing the stop back.
	ErrRecordChanged = errors.New("process record changed by another invocation")
)

// NotFoundError reports a target that matched no record.
type NotFoundError struct {
	Target string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("process %q not found", e.Target)
}

// SpawnError wraps the OS error of a failed launch.
type SpawnError struct {
	ID      int
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s (id %d): %v", e.Program, e.ID, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// SignalError wraps the OS error of a failed terminate. The record is left
// untouched so the caller may retry.
type SignalError struct {
	ID  int
	PID int
	Err error
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("failed to stop pid %d (id %d): %v", e.PID, e.ID, e.Err)
}

func (e *SignalError) Unwrap() error { return e.Err }

// IsWarning reports whether err is a user-facing notice that should not fail
// the invocation.
func IsWarning(err error) bool {
	if err == nil {
		return false
	}
	var nf *NotFoundError
	return errors.As(err, &nf) ||
		errors.Is(err, ErrAlreadyRunning) ||
		errors.Is(err, ErrAlreadyStopped) ||
		errors.Is(err, ErrNameExists) ||
		errors.Is(err, ErrRecordChanged)
}
