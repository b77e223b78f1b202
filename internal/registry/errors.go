package registry

import (
	"errors"
	"fmt"
)

// ErrNameTaken is returned by Add when another record already uses the name.
var ErrNameTaken = errors.New("process name already registered")

// StoreIOError means the registry document or its lock file could not be
// read or written. It is fatal for the invocation.
type StoreIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreIOError) Error() string {
	return fmt.Sprintf("registry %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreIOError) Unwrap() error { return e.Err }

// MalformedStoreError means the registry document exists but cannot be
// parsed. The document is left untouched.
type MalformedStoreError struct {
	Path string
	Err  error
}

func (e *MalformedStoreError) Error() string {
	return fmt.Sprintf("registry document %s is malformed: %v", e.Path, e.Err)
}

func (e *MalformedStoreError) Unwrap() error { return e.Err }
