package workerbridge

import (
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/prometheus/client_golang/prometheus"
)

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to a fresh Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Base Configuration =====

// FromConfig starts from a loaded configuration, typically the result of
// LoadConfig. It replaces everything set so far, so pass it first.
func FromConfig(cfg *Options) Option {
	return func(o *Options) {
		if cfg != nil {
			*o = *cfg
		}
	}
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// ===== Worker Process =====

// WithCommand sets the interpreter or executable that runs the worker.
// Defaults to "python".
func WithCommand(command string) Option {
	return func(o *Options) {
		o.Command = command
	}
}

// WithScript sets the worker entry point passed to the command.
func WithScript(script string) Option {
	return func(o *Options) {
		o.Script = script
	}
}

// WithArgs appends extra arguments after the entry point.
func WithArgs(args ...string) Option {
	return func(o *Options) {
		o.Args = append(o.Args, args...)
	}
}

// WithEnv provides additional environment variables for the worker process.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		o.Env = env
	}
}

// WithCwd sets the working directory for the worker process.
func WithCwd(cwd string) Option {
	return func(o *Options) {
		o.Cwd = cwd
	}
}

// WithStderr sets a callback for each line the worker writes to stderr.
func WithStderr(fn func(string)) Option {
	return func(o *Options) {
		o.Stderr = fn
	}
}

// WithLauncher replaces the subprocess launcher.
func WithLauncher(launcher Launcher) Option {
	return func(o *Options) {
		o.Launcher = launcher
	}
}

// ===== Requests =====

// WithTimeout sets the default per-request timeout. Defaults to 15s.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.DefaultTimeout = timeout
	}
}

// WithMaxPending bounds the number of in-flight requests. Defaults to 50.
func WithMaxPending(n int) Option {
	return func(o *Options) {
		o.MaxPending = n
	}
}

// WithMaxLineBytes caps a single response line. Defaults to 1MB.
func WithMaxLineBytes(n int) Option {
	return func(o *Options) {
		o.MaxLineBytes = n
	}
}

// WithCorrelation selects CorrelationFIFO (default) or CorrelationTagged.
func WithCorrelation(strategy string) Option {
	return func(o *Options) {
		o.Correlation = strategy
	}
}

// WithRequestSchema validates every payload before it is written.
func WithRequestSchema(schema *jsonschema.Schema) Option {
	return func(o *Options) {
		o.RequestSchema = schema
	}
}

// WithResponseSchema validates every decoded response.
func WithResponseSchema(schema *jsonschema.Schema) Option {
	return func(o *Options) {
		o.ResponseSchema = schema
	}
}

// ===== Lifecycle =====

// WithRestartBackoff sets the fixed delay before respawning a crashed
// worker. Defaults to 2s.
func WithRestartBackoff(backoff time.Duration) Option {
	return func(o *Options) {
		o.RestartBackoff = backoff
	}
}

// WithStopGrace gives the worker time to exit after SIGTERM on shutdown
// before it is killed. Defaults to an immediate kill.
func WithStopGrace(grace time.Duration) Option {
	return func(o *Options) {
		o.StopGrace = grace
	}
}

// ===== Observability =====

// WithMetricsRegisterer registers the bridge's Prometheus metrics with reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.MetricsRegisterer = reg
	}
}
