package subprocess

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/workerbridge/internal/cli"
	"github.com/wagiedev/workerbridge/internal/config"
	"github.com/wagiedev/workerbridge/internal/errors"
)

// Launcher implements config.Launcher by spawning an OS process.
type Launcher struct {
	log     *slog.Logger
	options *config.Options
}

// Compile-time verification that Launcher implements config.Launcher.
var _ config.Launcher = (*Launcher)(nil)

// NewLauncher creates a launcher for the worker described by options.
//
// Discovery runs on every Launch, so a worker binary that is installed or
// fixed while the bridge is backing off is picked up by the next restart.
func NewLauncher(log *slog.Logger, options *config.Options) *Launcher {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Launcher{
		log:     log.With("component", "subprocess"),
		options: options,
	}
}

// Launch starts the worker process.
//
// Returns WorkerNotFoundError if the executable or entry point cannot be
// located, or SpawnError if the process fails to start.
func (l *Launcher) Launch(_ context.Context, hooks config.Hooks) (config.Process, error) {
	target, err := cli.NewDiscoverer(&cli.Config{
		Command: l.options.Command,
		Script:  l.options.Script,
		Cwd:     l.options.Cwd,
		Logger:  l.log,
	}).Discover()
	if err != nil {
		return nil, err
	}

	args := cli.BuildArgs(target.Script, l.options.Args)
	l.log.Debug("Built command arguments", "path", target.Path, "args", args)

	cwd := l.options.Cwd
	if cwd == "" {
		cwd, err = os.Getwd()
		if err != nil {
			return nil, &errors.SpawnError{Command: target.Path, Err: fmt.Errorf("get working directory: %w", err)}
		}
	}

	// The worker outlives the spawning context; it is stopped with Kill.
	//nolint:gosec // G204: the worker command is operator configuration
	cmd := exec.Command(target.Path, args...)
	cmd.Dir = cwd
	cmd.Env = cli.BuildEnvironment(l.options.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &errors.SpawnError{Command: target.Path, Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &errors.SpawnError{Command: target.Path, Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &errors.SpawnError{Command: target.Path, Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		l.log.Error("Failed to start worker process", "path", target.Path, "error", err)

		return nil, &errors.SpawnError{Command: target.Path, Err: err}
	}

	w := &Worker{
		log:       l.log.With("pid", cmd.Process.Pid),
		cmd:       cmd,
		stdin:     stdin,
		stopGrace: l.options.StopGrace,
		onStderr:  l.options.Stderr,
		exited:    make(chan struct{}),
	}

	w.log.Info("Worker process started", "path", target.Path, "cwd", cwd)

	var pumps errgroup.Group

	pumps.Go(func() error { return w.pumpStdout(stdout, hooks.OnOutput) })
	pumps.Go(func() error { return w.pumpStderr(stderr) })

	go func() {
		// All pipe reads must complete before Wait.
		readErr := pumps.Wait()
		waitErr := cmd.Wait()

		close(w.exited)

		exitErr := w.exitError(waitErr, readErr)
		if hooks.OnExit != nil {
			hooks.OnExit(exitErr)
		}
	}()

	return w, nil
}
