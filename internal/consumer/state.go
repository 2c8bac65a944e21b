package consumer

// State is the consumer lifecycle. Transitions run strictly forward:
// Uninitialized -> Resetting -> Subscribing -> Running -> Stopped.
// Stopped is terminal; a new run means a new process (and a fresh epoch).
type State int

const (
	StateUninitialized State = iota
	StateResetting
	StateSubscribing
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateResetting:
		return "resetting"
	case StateSubscribing:
		return "subscribing"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
