package process

import "errors"

// ErrInvalidPID is returned when a non-positive pid is passed to Terminate.
var ErrInvalidPID = errors.New("invalid pid")

// Host is the OS capability set the lifecycle controller depends on.
// Implementations are selected per platform by NewHost.
type Host interface {
	// Terminate forcefully ends pid. A pid that no longer exists counts as
	// terminated.
	Terminate(pid int) error
	// IsAlive reports whether pid refers to a live (non-zombie) process.
	IsAlive(pid int) bool
}

// NewHost returns the Host for the running platform.
func NewHost() Host { return osHost{} }
