package errors

import (
	"errors"
	"fmt"
	"time"
)

// BridgeError is the base interface for all bridge errors.
type BridgeError interface {
	error
	IsBridgeError() bool
}

// Compile-time verification that all error types implement BridgeError.
var (
	_ BridgeError = (*BackpressureError)(nil)
	_ BridgeError = (*TimeoutError)(nil)
	_ BridgeError = (*ProtocolViolationError)(nil)
	_ BridgeError = (*ProcessExitedError)(nil)
	_ BridgeError = (*SpawnError)(nil)
	_ BridgeError = (*WorkerNotFoundError)(nil)
	_ BridgeError = (*PayloadError)(nil)
	_ BridgeError = (*WriteError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrNotRunning indicates there is no live worker process.
	ErrNotRunning = errors.New("worker process is not running")

	// ErrBackpressure indicates the pending queue is at capacity.
	ErrBackpressure = errors.New("too many pending worker requests")

	// ErrRequestTimeout indicates no response arrived within the request timeout.
	ErrRequestTimeout = errors.New("worker request timed out")

	// ErrBridgeStopped indicates the bridge has been shut down and will not restart.
	ErrBridgeStopped = errors.New("bridge stopped")

	// ErrUnexpectedExit indicates the worker exited while the bridge still wanted it.
	ErrUnexpectedExit = errors.New("worker process exited unexpectedly")

	// ErrStdinClosed indicates stdin was closed due to context cancellation.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrWorkerRecycled indicates the worker was killed because a stdin write
	// was cut short and its input can no longer be framed.
	ErrWorkerRecycled = errors.New("worker recycled after a failed stdin write")

	// ErrLineTooLong indicates a worker output line exceeded the configured limit.
	ErrLineTooLong = errors.New("worker output line too long")
)

// BackpressureError indicates a request was rejected without being sent
// because the queue already holds the maximum number of pending requests.
type BackpressureError struct {
	Pending int
	Max     int
}

func (e *BackpressureError) Error() string {
	return fmt.Sprintf("%v (%d/%d)", ErrBackpressure, e.Pending, e.Max)
}

func (e *BackpressureError) Unwrap() error {
	return ErrBackpressure
}

// IsBridgeError implements BridgeError.
func (e *BackpressureError) IsBridgeError() bool { return true }

// TimeoutError indicates a request was removed from the queue because its
// timeout elapsed before a response line arrived.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%v after %s", ErrRequestTimeout, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return ErrRequestTimeout
}

// IsBridgeError implements BridgeError.
func (e *TimeoutError) IsBridgeError() bool { return true }

// ProtocolViolationError indicates a worker output line could not be used as
// a response. The offending line is preserved for diagnostics.
type ProtocolViolationError struct {
	RawLine string
	Err     error
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("invalid JSON from worker: %v -- raw: %s", e.Err, e.RawLine)
}

func (e *ProtocolViolationError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *ProtocolViolationError) IsBridgeError() bool { return true }

// ProcessExitedError indicates the worker process terminated while the
// request was pending.
type ProcessExitedError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessExitedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("worker process exited (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("worker process exited (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessExitedError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *ProcessExitedError) IsBridgeError() bool { return true }

// SpawnError indicates the worker could not be started at the OS level.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn worker %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *SpawnError) IsBridgeError() bool { return true }

// WorkerNotFoundError indicates the worker interpreter or entry point was not found.
type WorkerNotFoundError struct {
	SearchedPaths []string
}

func (e *WorkerNotFoundError) Error() string {
	return fmt.Sprintf("worker not found in: %v", e.SearchedPaths)
}

// IsBridgeError implements BridgeError.
func (e *WorkerNotFoundError) IsBridgeError() bool { return true }

// PayloadError indicates a payload was rejected before anything was written
// to the worker, either because it could not be encoded or because it failed
// the configured request schema.
type PayloadError struct {
	Err error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("invalid payload: %v", e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *PayloadError) IsBridgeError() bool { return true }

// WriteError indicates the request line could not be written to the worker's stdin.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write to worker stdin: %v", e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *WriteError) IsBridgeError() bool { return true }
