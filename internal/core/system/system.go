package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput   Phase = iota // 0: drain host requests
	PhaseLoad                 // 1: step scene load/unload tasks
	PhaseUpdate               // 2: scene logic
	PhasePersist              // 3: journal flush
	PhaseCleanup              // 4: destroy unloaded scene objects
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "Input"
	case PhaseLoad:
		return "Load"
	case PhaseUpdate:
		return "Update"
	case PhasePersist:
		return "Persist"
	case PhaseCleanup:
		return "Cleanup"
	default:
		return "Unknown"
	}
}

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
