package cli

import (
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/wagiedev/workerbridge/internal/errors"
)

// Config holds configuration for worker discovery.
type Config struct {
	// Command is the interpreter or executable, either a bare name searched
	// in PATH or a path.
	Command string

	// Script is the optional entry point handed to Command.
	Script string

	// Cwd is the directory relative paths are resolved against.
	// If empty, the current working directory is used.
	Cwd string

	// Logger is an optional logger for discovery operations.
	// If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Target is a resolved worker invocation.
type Target struct {
	// Path is the executable to run.
	Path string

	// Script is the resolved entry point, or empty.
	Script string
}

// Discoverer locates the worker executable and entry point.
type Discoverer interface {
	// Discover resolves the executable and entry point, returning
	// WorkerNotFoundError when either is missing.
	Discover() (*Target, error)
}

// discoverer implements the Discoverer interface.
type discoverer struct {
	cfg *Config
	log *slog.Logger
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a new worker discoverer with the given configuration.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &discoverer{
		cfg: cfg,
		log: log,
	}
}

// Discover resolves the executable and entry point.
func (d *discoverer) Discover() (*Target, error) {
	d.log.Debug("Discovering worker executable", "command", d.cfg.Command, "script", d.cfg.Script)

	path, err := d.findCommand()
	if err != nil {
		d.log.Error("Failed to find worker executable", "error", err)

		return nil, err
	}

	script, err := d.findScript()
	if err != nil {
		d.log.Error("Failed to find worker entry point", "error", err)

		return nil, err
	}

	d.log.Debug("Resolved worker", "path", path, "script", script)

	return &Target{Path: path, Script: script}, nil
}

// findCommand locates the executable.
func (d *discoverer) findCommand() (string, error) {
	command := d.cfg.Command
	if command == "" {
		return "", &errors.WorkerNotFoundError{SearchedPaths: []string{"<empty command>"}}
	}

	// Paths are used as given, relative ones against Cwd like exec.Cmd does.
	if strings.ContainsRune(command, os.PathSeparator) {
		resolved := d.resolve(command)

		if info, err := os.Stat(resolved); err == nil && !info.IsDir() {
			return command, nil
		}

		return "", &errors.WorkerNotFoundError{SearchedPaths: []string{resolved}}
	}

	if path, err := exec.LookPath(command); err == nil {
		d.log.Debug("Found worker executable in PATH", "path", path)

		return path, nil
	}

	return "", &errors.WorkerNotFoundError{SearchedPaths: []string{"$PATH/" + command}}
}

// findScript checks the entry point exists.
func (d *discoverer) findScript() (string, error) {
	if d.cfg.Script == "" {
		return "", nil
	}

	resolved := d.resolve(d.cfg.Script)

	if _, err := os.Stat(resolved); err != nil {
		return "", &errors.WorkerNotFoundError{SearchedPaths: []string{resolved}}
	}

	return resolved, nil
}

// resolve makes path absolute against Cwd.
func (d *discoverer) resolve(path string) string {
	if filepath.IsAbs(path) || d.cfg.Cwd == "" {
		return path
	}

	return filepath.Join(d.cfg.Cwd, path)
}
