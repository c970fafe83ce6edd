// Package subprocess spawns worker processes and attaches to their standard
// streams.
//
// The Launcher resolves the worker executable, starts it with piped stdin,
// stdout and stderr, and runs two pumps: stdout chunks are forwarded to the
// OnOutput hook as they arrive, and stderr lines are handed to the
// configured callback and kept as a bounded tail for exit diagnostics. Once
// both pumps drain the process is reaped and OnExit fires exactly once.
package subprocess
