package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wagiedev/workerbridge/internal/framing"
	"github.com/wagiedev/workerbridge/internal/protocol"
)

const (
	// DefaultCommand is the interpreter used to run the worker entry point.
	DefaultCommand = "python"

	// DefaultTimeout is the per-request timeout used by Send.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxPending is the maximum number of in-flight requests.
	DefaultMaxPending = 50

	// DefaultRestartBackoff is the fixed delay before respawning a crashed worker.
	DefaultRestartBackoff = 2 * time.Second
)

// Options configures the bridge and the worker it supervises.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// Command is the interpreter or executable that starts the worker.
	Command string

	// Script is the worker entry point passed as the first argument.
	// If empty, Command is run with Args only.
	Script string

	// Args are extra arguments appended after Script.
	Args []string

	// Env provides additional environment variables for the worker process.
	Env map[string]string

	// Cwd sets the working directory for the worker process.
	Cwd string

	// DefaultTimeout bounds how long Send waits when no explicit timeout is given.
	DefaultTimeout time.Duration

	// MaxPending bounds the number of requests awaiting a response.
	MaxPending int

	// RestartBackoff is the fixed delay between a crash and the next spawn.
	RestartBackoff time.Duration

	// StopGrace is how long Kill waits after SIGTERM before SIGKILL.
	// Zero kills immediately.
	StopGrace time.Duration

	// MaxLineBytes caps a single response line.
	MaxLineBytes int

	// Correlation selects how responses are matched: "fifo" (default) or "tagged".
	Correlation string

	// RequestSchema, when set, validates every payload before it is sent.
	RequestSchema *jsonschema.Schema

	// ResponseSchema, when set, validates every decoded response.
	ResponseSchema *jsonschema.Schema

	// Stderr is called with each line the worker writes to stderr.
	Stderr func(string)

	// MetricsRegisterer receives the bridge's Prometheus collectors.
	// If nil, metrics are collected but not registered.
	MetricsRegisterer prometheus.Registerer

	// Launcher overrides how worker processes are started.
	// If nil, an OS subprocess is spawned from Command, Script and Args.
	Launcher Launcher
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (o *Options) ApplyDefaults() {
	if o.Command == "" && o.Launcher == nil {
		o.Command = DefaultCommand
	}

	if o.DefaultTimeout == 0 {
		o.DefaultTimeout = DefaultTimeout
	}

	if o.MaxPending == 0 {
		o.MaxPending = DefaultMaxPending
	}

	if o.RestartBackoff == 0 {
		o.RestartBackoff = DefaultRestartBackoff
	}

	if o.MaxLineBytes == 0 {
		o.MaxLineBytes = framing.DefaultMaxLineBytes
	}

	if o.Correlation == "" {
		o.Correlation = protocol.CorrelationFIFO
	}
}

// Validate checks the options for values the bridge cannot run with.
func (o *Options) Validate() error {
	if o.Command == "" && o.Launcher == nil {
		return fmt.Errorf("worker command is required")
	}

	if o.DefaultTimeout < 0 {
		return fmt.Errorf("default timeout must not be negative: %s", o.DefaultTimeout)
	}

	if o.MaxPending < 1 {
		return fmt.Errorf("max pending must be at least 1: %d", o.MaxPending)
	}

	if o.RestartBackoff < 0 {
		return fmt.Errorf("restart backoff must not be negative: %s", o.RestartBackoff)
	}

	if o.StopGrace < 0 {
		return fmt.Errorf("stop grace must not be negative: %s", o.StopGrace)
	}

	if o.MaxLineBytes < 1 {
		return fmt.Errorf("max line bytes must be at least 1: %d", o.MaxLineBytes)
	}

	switch o.Correlation {
	case protocol.CorrelationFIFO, protocol.CorrelationTagged:
	default:
		return fmt.Errorf("unknown correlation strategy %q", o.Correlation)
	}

	return nil
}
