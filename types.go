package workerbridge

import (
	"github.com/wagiedev/workerbridge/internal/bridge"
	"github.com/wagiedev/workerbridge/internal/config"
	"github.com/wagiedev/workerbridge/internal/protocol"
	"github.com/wagiedev/workerbridge/internal/supervisor"
)

// Response is a decoded worker response line.
type Response = bridge.Response

// Options is the full bridge configuration. Most callers use the With*
// functional options instead.
type Options = config.Options

// Launcher starts worker processes. Override it with WithLauncher to run
// workers somewhere other than a local subprocess.
type Launcher = config.Launcher

// Process is a live worker handle returned by a Launcher.
type Process = config.Process

// Hooks receives worker output and exit events.
type Hooks = config.Hooks

// State is the worker lifecycle state.
type State = supervisor.State

// Worker lifecycle states.
const (
	StateNew      = supervisor.StateNew
	StateStarting = supervisor.StateStarting
	StateReady    = supervisor.StateReady
	StateCrashed  = supervisor.StateCrashed
	StateStopped  = supervisor.StateStopped
)

// Correlation strategies accepted by WithCorrelation.
const (
	// CorrelationFIFO matches the Nth response line to the oldest pending
	// request. The worker must answer every request, in order, with
	// exactly one line.
	CorrelationFIFO = protocol.CorrelationFIFO

	// CorrelationTagged wraps each request as {"id","payload"} and expects
	// {"id","response"} back, so the worker may answer in any order.
	CorrelationTagged = protocol.CorrelationTagged
)

// LoadConfig reads a YAML config file (optional) and the WORKER_ and legacy
// environment variables into Options.
func LoadConfig(path string) (*Options, error) {
	return config.Load(path)
}
