// Package scene switches between content-addressed scene bundles. It drives
// the external loader's asynchronous operations, keeps the table of loaded
// scenes, resolves each scene's entry-point capability and reports every
// transition on the lifecycle bus.
//
// The package assumes a single-goroutine caller (the host's tick loop).
// Nothing here locks; concurrent switches of the same scene id race on the
// registry and the last terminal write wins.
package scene

import (
	"fmt"
	"strings"
)

// LoadMode selects how a loaded scene composes with the ones already live.
type LoadMode int

const (
	// LoadSingle retires the previously active non-additive scenes. The
	// retirement is the loader's business; the registry does not track it.
	LoadSingle LoadMode = iota
	// LoadAdditive composes with the scenes already loaded.
	LoadAdditive
)

func (m LoadMode) String() string {
	switch m {
	case LoadSingle:
		return "single"
	case LoadAdditive:
		return "additive"
	default:
		return fmt.Sprintf("LoadMode(%d)", int(m))
	}
}

// ParseLoadMode accepts "single" or "additive" (case-insensitive). An empty
// string means LoadSingle.
func ParseLoadMode(s string) (LoadMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single":
		return LoadSingle, nil
	case "additive":
		return LoadAdditive, nil
	default:
		return LoadSingle, fmt.Errorf("unknown load mode %q", s)
	}
}

// Status is the state of an external operation.
type Status int

const (
	StatusPending Status = iota
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusSucceeded:
		return "Succeeded"
	case StatusFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool { return s == StatusSucceeded || s == StatusFailed }

// Instance is the opaque handle of a loaded scene. The registry keeps a
// non-owning reference; freeing it always goes back through the Loader.
type Instance any

// Operation is a pending load or unload owned by the external loader.
type Operation interface {
	Status() Status
	// Result is valid only once Status reports StatusSucceeded. For loads it
	// yields the scene Instance; unloads may return nil.
	Result() Instance
	// Err describes why the operation failed, or nil.
	Err() error
	// Wait blocks until the operation reaches a terminal status.
	Wait()
}

// Loader is the external asset loader.
type Loader interface {
	Load(sceneID string, mode LoadMode, activateOnLoad bool) Operation
	Unload(inst Instance) Operation
	// Release abandons a pending operation.
	Release(op Operation)
}

// Object is a root object of a loaded scene. Components returns the
// capabilities it exposes, in the object's own order.
type Object interface {
	Name() string
	Components() []any
}

// Graph exposes the root objects of loaded scenes.
type Graph interface {
	RootObjects(inst Instance) []Object
}
