package workerbridge

import "github.com/wagiedev/workerbridge/internal/errors"

// Re-export error types from internal package

// BridgeError is the base interface for all bridge errors.
type BridgeError = errors.BridgeError

// BackpressureError indicates a request was rejected because too many are pending.
type BackpressureError = errors.BackpressureError

// TimeoutError indicates no response arrived within the request timeout.
type TimeoutError = errors.TimeoutError

// ProtocolViolationError indicates a response line was not valid JSON.
type ProtocolViolationError = errors.ProtocolViolationError

// ProcessExitedError indicates the worker exited while the request was pending.
type ProcessExitedError = errors.ProcessExitedError

// SpawnError indicates the worker process could not be started.
type SpawnError = errors.SpawnError

// WorkerNotFoundError indicates the worker executable or entry point is missing.
type WorkerNotFoundError = errors.WorkerNotFoundError

// PayloadError indicates a payload was rejected before it was sent.
type PayloadError = errors.PayloadError

// WriteError indicates the request could not be written to the worker.
type WriteError = errors.WriteError

// Re-export sentinel errors from internal package.
var (
	// ErrNotRunning indicates there is no live worker process.
	ErrNotRunning = errors.ErrNotRunning

	// ErrBackpressure indicates the pending queue is full.
	ErrBackpressure = errors.ErrBackpressure

	// ErrRequestTimeout indicates a request timed out.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrBridgeStopped indicates the bridge has been shut down.
	ErrBridgeStopped = errors.ErrBridgeStopped

	// ErrUnexpectedExit indicates the worker exited on its own.
	ErrUnexpectedExit = errors.ErrUnexpectedExit

	// ErrWorkerRecycled indicates the worker was killed after a stdin write
	// was cut short.
	ErrWorkerRecycled = errors.ErrWorkerRecycled

	// ErrLineTooLong indicates a response line exceeded the line limit.
	ErrLineTooLong = errors.ErrLineTooLong
)
