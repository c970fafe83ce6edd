package supervisor

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/wagiedev/workerbridge/internal/config"
	"github.com/wagiedev/workerbridge/internal/errors"
)

// Events receives lifecycle notifications. All fields are optional.
type Events struct {
	// Output is called with each stdout chunk of the current worker.
	Output func(gen uint64, chunk []byte)

	// Crash is called when the current worker exits unexpectedly, before the
	// restart is scheduled.
	Crash func(gen uint64, err error)

	// Spawned is called after a worker has been started.
	Spawned func(gen uint64, pid int)

	// SpawnFailed is called when a spawn attempt fails.
	SpawnFailed func(err error)

	// Restart is called when the backoff elapses, before the respawn.
	Restart func()
}

// Supervisor owns the worker process lifecycle.
type Supervisor struct {
	log      *slog.Logger
	launcher config.Launcher
	backoff  time.Duration
	events   Events

	mu           sync.Mutex
	state        State
	proc         config.Process
	gen          uint64
	lastErr      error
	restarts     int
	restartTimer *time.Timer
	// recycleCause replaces the exit error of a worker killed by Recycle.
	recycleCause error
}

// New creates a supervisor. The worker is not started until Start.
func New(log *slog.Logger, launcher config.Launcher, backoff time.Duration, events Events) *Supervisor {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Supervisor{
		log:      log.With("component", "supervisor"),
		launcher: launcher,
		backoff:  backoff,
		events:   events,
	}
}

// Start spawns the worker.
//
// Start is idempotent: it is a no-op while a worker is starting, running or
// waiting to be restarted. It returns ErrBridgeStopped after Stop. If the
// first spawn fails the error is returned, and the supervisor keeps retrying
// in the background at the backoff interval until Stop.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()

	switch s.state {
	case StateStopped:
		s.mu.Unlock()

		return errors.ErrBridgeStopped
	case StateNew:
	default:
		s.mu.Unlock()

		return nil
	}

	s.mu.Unlock()

	return s.spawn(ctx)
}

// spawn launches a new worker generation.
func (s *Supervisor) spawn(ctx context.Context) error {
	s.mu.Lock()

	if s.state == StateStopped {
		s.mu.Unlock()

		return errors.ErrBridgeStopped
	}

	s.gen++
	gen := s.gen
	s.state = StateStarting
	s.recycleCause = nil

	s.mu.Unlock()

	s.log.Info("Spawning worker", "generation", gen)

	proc, err := s.launcher.Launch(ctx, config.Hooks{
		OnOutput: func(chunk []byte) { s.handleOutput(gen, chunk) },
		OnExit:   func(err error) { s.handleExit(gen, err) },
	})
	if err != nil {
		s.mu.Lock()

		if s.state == StateStopped {
			s.mu.Unlock()

			return errors.ErrBridgeStopped
		}

		s.state = StateCrashed
		s.lastErr = err

		s.mu.Unlock()

		s.log.Error("Worker spawn failed", "generation", gen, "error", err, "retry_in", s.backoff)

		if s.events.SpawnFailed != nil {
			s.events.SpawnFailed(err)
		}

		s.scheduleRestart()

		return err
	}

	s.mu.Lock()

	switch {
	case s.state == StateStopped:
		s.mu.Unlock()

		s.log.Debug("Stopped during spawn, killing new worker", "generation", gen)

		if killErr := proc.Kill(); killErr != nil {
			s.log.Debug("Failed to kill worker spawned during stop", "error", killErr)
		}

		return errors.ErrBridgeStopped

	case s.gen != gen || s.state != StateStarting:
		// The worker already exited and the exit handler took over.
		s.mu.Unlock()

		return nil
	}

	s.proc = proc
	s.state = StateReady
	s.lastErr = nil

	s.mu.Unlock()

	s.log.Info("Worker ready", "generation", gen, "pid", proc.Pid())

	if s.events.Spawned != nil {
		s.events.Spawned(gen, proc.Pid())
	}

	return nil
}

// handleOutput forwards output from the current generation only.
func (s *Supervisor) handleOutput(gen uint64, chunk []byte) {
	s.mu.Lock()
	current := s.gen == gen && s.state != StateStopped
	s.mu.Unlock()

	if !current {
		s.log.Debug("Dropping output from stale worker", "generation", gen, "bytes", len(chunk))

		return
	}

	if s.events.Output != nil {
		s.events.Output(gen, chunk)
	}
}

// handleExit records the exit of a worker generation and schedules a restart.
func (s *Supervisor) handleExit(gen uint64, err error) {
	s.mu.Lock()

	if s.gen != gen {
		s.mu.Unlock()

		s.log.Debug("Ignoring exit of stale worker", "generation", gen)

		return
	}

	s.proc = nil

	if s.state == StateStopped {
		s.mu.Unlock()

		s.log.Debug("Worker exited after stop", "generation", gen)

		return
	}

	if s.recycleCause != nil {
		err = recycledExit(err, s.recycleCause)
		s.recycleCause = nil
	}

	s.state = StateCrashed
	s.lastErr = err

	s.mu.Unlock()

	s.log.Error("Worker process exited", "generation", gen, "error", err, "restart_in", s.backoff)

	if s.events.Crash != nil {
		s.events.Crash(gen, err)
	}

	s.scheduleRestart()
}

// Recycle kills the worker of generation gen because it can no longer be
// used, for example after a stdin write was cut short. The exit is handled
// as a crash carrying cause. It is a no-op unless gen is the ready worker.
func (s *Supervisor) Recycle(gen uint64, cause error) {
	s.mu.Lock()

	if s.gen != gen || s.state != StateReady || s.proc == nil {
		s.mu.Unlock()

		return
	}

	proc := s.proc
	s.recycleCause = cause

	s.mu.Unlock()

	s.log.Warn("Recycling worker", "generation", gen, "pid", proc.Pid(), "reason", cause)

	if err := proc.Kill(); err != nil {
		s.log.Warn("Error while killing recycled worker", "pid", proc.Pid(), "error", err)
	}
}

// recycledExit keeps the exit code and stderr of err but reports cause.
func recycledExit(err, cause error) error {
	exited := &errors.ProcessExitedError{ExitCode: -1, Err: cause}

	if exitErr, ok := stderrors.AsType[*errors.ProcessExitedError](err); ok {
		exited.ExitCode = exitErr.ExitCode
		exited.Stderr = exitErr.Stderr
	}

	return exited
}

// scheduleRestart arms the backoff timer unless one is pending or the
// supervisor is stopped.
func (s *Supervisor) scheduleRestart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped || s.restartTimer != nil {
		return
	}

	s.restartTimer = time.AfterFunc(s.backoff, func() {
		s.mu.Lock()

		s.restartTimer = nil

		if s.state != StateCrashed {
			s.mu.Unlock()

			return
		}

		s.restarts++

		s.mu.Unlock()

		s.log.Info("Restarting worker process")

		if s.events.Restart != nil {
			s.events.Restart()
		}

		// Failures are logged and rescheduled by spawn itself.
		_ = s.spawn(context.Background())
	})
}

// Stop terminates the worker and disables restarts. It never fails and is
// safe to call multiple times.
func (s *Supervisor) Stop() {
	s.mu.Lock()

	if s.state == StateStopped {
		s.mu.Unlock()

		return
	}

	s.state = StateStopped

	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}

	proc := s.proc
	s.proc = nil

	s.mu.Unlock()

	s.log.Info("Stopping worker supervisor")

	if proc == nil {
		return
	}

	if err := proc.Kill(); err != nil {
		s.log.Warn("Error while stopping worker", "pid", proc.Pid(), "error", err)
	}
}

// Current returns the live worker and its generation. ok is false unless
// the supervisor is Ready.
func (s *Supervisor) Current() (proc config.Process, gen uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady || s.proc == nil {
		return nil, s.gen, false
	}

	return s.proc, s.gen, true
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// LastError returns the error behind the most recent crash or spawn failure.
// It is cleared once a worker becomes ready.
func (s *Supervisor) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastErr
}

// Restarts returns how many automatic restarts have been attempted.
func (s *Supervisor) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.restarts
}
