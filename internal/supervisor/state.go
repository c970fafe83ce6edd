package supervisor

// State is the lifecycle state of the supervised worker.
type State int

const (
	// StateNew means Start has not been called yet.
	StateNew State = iota

	// StateStarting means a spawn is in progress.
	StateStarting

	// StateReady means a worker is running with its streams attached.
	StateReady

	// StateCrashed means the worker exited or failed to spawn and a restart
	// is scheduled.
	StateCrashed

	// StateStopped means Stop was called. No further restarts occur.
	StateStopped
)

// String returns the state name used in logs and health output.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateCrashed:
		return "crashed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
