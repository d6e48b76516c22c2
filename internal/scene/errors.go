package scene

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrLoadFailed is wrapped by every error caused by a failed load.
	ErrLoadFailed = errors.New("scene load failed")
	// ErrUnloadFailed is wrapped by every error caused by a failed unload.
	ErrUnloadFailed = errors.New("scene unload failed")
)

// ContextNotFoundError means a scene loaded but none of its root objects
// exposes the requested capability. The scene stays registered.
type ContextNotFoundError struct {
	SceneID    string
	Capability string
}

func (e *ContextNotFoundError) Error() string {
	return fmt.Sprintf("scene %s does not have a scene context %s", e.SceneID, e.Capability)
}

// MissingEntryError is the panic value raised when unloading a scene id that
// is not registered. It is a caller bug, never a runtime condition.
type MissingEntryError struct {
	SceneID string
}

func (e *MissingEntryError) Error() string {
	return fmt.Sprintf("scene %s is not loaded", e.SceneID)
}

// Op names the switcher operation a Failure came from.
type Op string

const (
	OpSwitch  Op = "switch"
	OpUnload  Op = "unload"
	OpResolve Op = "resolve"
)

// Failure is a recoverable failure reported on the diagnostics side channel.
type Failure struct {
	Op      Op
	SceneID string
	CallID  uuid.UUID
	Err     error
}

// Reporter receives recoverable failures in addition to the returned error.
type Reporter func(Failure)

func operationError(sentinel error, verb, sceneID string, op Operation) error {
	if cause := op.Err(); cause != nil {
		return fmt.Errorf("%s %s: %w: %w", verb, sceneID, sentinel, cause)
	}
	return fmt.Errorf("%s %s: %w", verb, sceneID, sentinel)
}
