package cli

import (
	"fmt"
	"maps"
	"os"
	"slices"
)

// BuildArgs builds the worker argument list: the entry point (if any)
// followed by extra arguments.
func BuildArgs(script string, extra []string) []string {
	args := make([]string, 0, len(extra)+1)

	if script != "" {
		args = append(args, script)
	}

	return append(args, extra...)
}

// BuildEnvironment builds the worker environment.
//
// The worker inherits the current environment. PYTHONUNBUFFERED is set so a
// Python worker flushes each response line instead of block-buffering a pipe,
// and WORKERBRIDGE marks the process as bridge-managed. User-provided
// variables are appended last and win.
func BuildEnvironment(env map[string]string) []string {
	out := os.Environ()

	out = append(out, "PYTHONUNBUFFERED=1")
	out = append(out, "WORKERBRIDGE=1")

	for _, key := range slices.Sorted(maps.Keys(env)) {
		out = append(out, fmt.Sprintf("%s=%s", key, env[key]))
	}

	return out
}
