package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/wagiedev/workerbridge/internal/config"
	"github.com/wagiedev/workerbridge/internal/errors"
)

const (
	// readChunkSize is the size of a single stdout read.
	readChunkSize = 32 * 1024

	// maxStderrTail caps the stderr kept for exit diagnostics.
	// The callback still receives every line.
	maxStderrTail = 64 * 1024

	// maxStderrLine caps a single stderr line.
	maxStderrLine = 1024 * 1024
)

// Worker is a running worker process.
type Worker struct {
	log       *slog.Logger
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stopGrace time.Duration
	onStderr  func(string)
	exited    chan struct{}

	writeMu sync.Mutex // Serialises stdin writes

	mu          sync.Mutex // Protects stdinClosed and closing
	stdinClosed bool
	closing     bool

	stderrMu   sync.Mutex
	stderrTail strings.Builder
}

// Compile-time verification that Worker implements config.Process.
var _ config.Process = (*Worker)(nil)

// Pid returns the OS process id.
func (w *Worker) Pid() int {
	return w.cmd.Process.Pid
}

// Write sends one line to the worker's stdin.
//
// A trailing newline is appended if missing. This method is safe for
// concurrent use and respects context cancellation even during blocking
// writes: if ctx is done while a write is blocked, stdin is closed to unblock
// it and subsequent calls return ErrStdinClosed.
func (w *Worker) Write(ctx context.Context, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.inputClosed() {
		return errors.ErrStdinClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Copy rather than append to avoid mutating the caller's backing array.
	if len(data) == 0 || data[len(data)-1] != '\n' {
		line := make([]byte, len(data)+1)
		copy(line, data)
		line[len(data)] = '\n'
		data = line
	}

	done := make(chan error, 1)

	go func() {
		_, err := w.stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			w.log.Debug("Failed to write to worker stdin", "error", err)

			return err
		}

		return nil

	case <-ctx.Done():
		w.log.Warn("Context cancelled during write, closing worker stdin")

		w.mu.Lock()
		_ = w.stdin.Close()
		w.stdinClosed = true
		w.mu.Unlock()

		select {
		case <-done:
		case <-time.After(time.Second):
			w.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

func (w *Worker) inputClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.stdinClosed
}

// CloseInput closes stdin, signalling end of input to the worker.
func (w *Worker) CloseInput() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stdinClosed {
		return nil
	}

	w.stdinClosed = true

	return w.stdin.Close()
}

// Kill terminates the worker.
//
// With a stop grace the worker first gets SIGTERM and is killed only if it
// has not exited when the grace expires. It's safe to call Kill multiple
// times or on an exited process, and it does not wait for a blocked Write.
func (w *Worker) Kill() error {
	w.mu.Lock()
	w.closing = true
	w.stdinClosed = true
	w.mu.Unlock()

	select {
	case <-w.exited:
		return nil
	default:
	}

	if w.stopGrace > 0 {
		if err := w.cmd.Process.Signal(syscall.SIGTERM); err == nil {
			select {
			case <-w.exited:
				return nil
			case <-time.After(w.stopGrace):
				w.log.Warn("Worker ignored SIGTERM, killing", "grace", w.stopGrace)
			}
		}
	}

	w.log.Debug("Killing worker process")

	if err := w.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill worker process (pid %d): %w", w.cmd.Process.Pid, err)
	}

	return nil
}

// pumpStdout forwards raw stdout chunks until EOF. The chunk is only valid
// for the duration of the callback.
func (w *Worker) pumpStdout(stdout io.Reader, onOutput func([]byte)) error {
	defer w.log.Debug("Stdout pump stopped")

	buf := make([]byte, readChunkSize)

	for {
		n, err := stdout.Read(buf)
		if n > 0 && onOutput != nil {
			onOutput(buf[:n])
		}

		if err == nil {
			continue
		}

		if stderrors.Is(err, io.EOF) || stderrors.Is(err, os.ErrClosed) {
			return nil
		}

		return fmt.Errorf("read worker stdout: %w", err)
	}
}

// pumpStderr streams stderr lines to the callback and the diagnostic tail.
func (w *Worker) pumpStderr(stderr io.Reader) error {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStderrLine)

	for scanner.Scan() {
		line := scanner.Text()

		w.stderrMu.Lock()

		if w.stderrTail.Len() < maxStderrTail {
			if w.stderrTail.Len() > 0 {
				w.stderrTail.WriteString("\n")
			}

			w.stderrTail.WriteString(line)
		}

		w.stderrMu.Unlock()

		if w.onStderr != nil {
			w.onStderr(line)
		} else {
			w.log.Debug("Worker stderr", "line", line)
		}
	}

	// Stderr problems never fail the worker.
	if err := scanner.Err(); err != nil {
		w.log.Debug("Stderr scanner error", "error", err)
	}

	return nil
}

// Stderr returns the buffered stderr output.
func (w *Worker) Stderr() string {
	w.stderrMu.Lock()
	defer w.stderrMu.Unlock()

	return strings.TrimSpace(w.stderrTail.String())
}

// exitError describes why the worker went away.
func (w *Worker) exitError(waitErr, readErr error) error {
	w.mu.Lock()
	closing := w.closing
	w.mu.Unlock()

	exitCode := w.cmd.ProcessState.ExitCode()
	stderr := w.Stderr()

	cause := errors.ErrUnexpectedExit

	switch {
	case closing:
		cause = errors.ErrBridgeStopped
	case readErr != nil:
		cause = fmt.Errorf("%w: %w", errors.ErrUnexpectedExit, readErr)
	case waitErr != nil:
		cause = fmt.Errorf("%w: %w", errors.ErrUnexpectedExit, waitErr)
	}

	if closing {
		w.log.Debug("Worker process terminated during shutdown", "exit_code", exitCode)
	} else {
		w.log.Debug("Worker process exited", "exit_code", exitCode, "stderr", stderr)
	}

	return &errors.ProcessExitedError{
		ExitCode: exitCode,
		Stderr:   stderr,
		Err:      cause,
	}
}
