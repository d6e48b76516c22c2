package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind selects one of the four lifecycle channels.
type Kind int

const (
	SwitchStarted   Kind = iota // load submitted
	SwitchCompleted             // scene loaded and registered
	UnloadStarted               // unload submitted
	UnloadCompleted             // scene unloaded and deregistered
	numKinds
)

func (k Kind) String() string {
	switch k {
	case SwitchStarted:
		return "SwitchStarted"
	case SwitchCompleted:
		return "SwitchCompleted"
	case UnloadStarted:
		return "UnloadStarted"
	case UnloadCompleted:
		return "UnloadCompleted"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Kinds lists every channel in declaration order.
func Kinds() []Kind {
	return []Kind{SwitchStarted, SwitchCompleted, UnloadStarted, UnloadCompleted}
}

// Event is one lifecycle notification. CallID pairs the started and
// completed events of a single switch or unload call.
type Event struct {
	Kind    Kind
	SceneID string
	CallID  uuid.UUID
	At      time.Time
}
