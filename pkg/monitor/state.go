package monitor

// State is the lifecycle of a monitoring session.
//
//	Init --Init ok--> Running --process gone--> Terminated
//	  |                  |----identity changed--> Reused
//	  +--Init failed--> Failed   +--stop--> Stopped
//
// Every state except Init and Running is terminal.
type State int32

const (
	StateInit State = iota
	StateRunning
	StateFailed
	StateTerminated
	StateReused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	case StateTerminated:
		return "terminated"
	case StateReused:
		return "reused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s != StateInit && s != StateRunning }
