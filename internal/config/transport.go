package config

import "context"

// Hooks receives events from a launched worker process.
//
// OnOutput is called with each chunk read from the worker's stdout, in order.
// OnExit is called exactly once after all output has been delivered.
type Hooks struct {
	OnOutput func(chunk []byte)
	OnExit   func(err error)
}

// Process is a live worker process handle.
//
// The default implementation spawns an OS process and talks to it over its
// standard streams. Tests inject in-memory implementations via Options.Launcher.
type Process interface {
	// Pid returns the OS process id, or 0 when there is none.
	Pid() int

	// Write sends one framed line to the worker's stdin. A trailing newline is
	// appended if missing. This method must be safe for concurrent use.
	Write(ctx context.Context, data []byte) error

	// CloseInput closes the worker's stdin.
	CloseInput() error

	// Kill terminates the process. It's safe to call Kill multiple times.
	Kill() error
}

// Launcher starts worker processes.
type Launcher interface {
	// Launch spawns a new worker and attaches hooks to its output and exit.
	Launch(ctx context.Context, hooks Hooks) (Process, error)
}
