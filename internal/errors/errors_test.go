package errors

import (
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackpressureError(t *testing.T) {
	err := &BackpressureError{Pending: 50, Max: 50}

	require.Equal(t, "too many pending worker requests (50/50)", err.Error())
	require.ErrorIs(t, err, ErrBackpressure)
	require.True(t, err.IsBridgeError())
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Timeout: 1500 * time.Millisecond}

	require.Equal(t, "worker request timed out after 1.5s", err.Error())
	require.ErrorIs(t, err, ErrRequestTimeout)
	require.True(t, err.IsBridgeError())
}

func TestProtocolViolationError(t *testing.T) {
	root := errors.New("unexpected end of JSON input")
	err := &ProtocolViolationError{
		RawLine: `{"reply":`,
		Err:     root,
	}

	require.Equal(
		t,
		`invalid JSON from worker: unexpected end of JSON input -- raw: {"reply":`,
		err.Error(),
	)
	require.ErrorIs(t, err, root)
	require.True(t, err.IsBridgeError())
}

func TestProcessExitedError_WithUnderlyingError(t *testing.T) {
	err := &ProcessExitedError{
		ExitCode: 1,
		Stderr:   "ignored when Err is set",
		Err:      ErrUnexpectedExit,
	}

	require.Equal(t, "worker process exited (exit 1): worker process exited unexpectedly", err.Error())
	require.ErrorIs(t, err, ErrUnexpectedExit)
	require.True(t, err.IsBridgeError())
}

func TestProcessExitedError_WithStderrOnly(t *testing.T) {
	err := &ProcessExitedError{
		ExitCode: 2,
		Stderr:   "Traceback (most recent call last)",
	}

	require.Equal(t, "worker process exited (exit 2): Traceback (most recent call last)", err.Error())
	require.NoError(t, err.Unwrap())
}

func TestProcessExitedError_Stopped(t *testing.T) {
	err := &ProcessExitedError{ExitCode: -1, Err: ErrBridgeStopped}

	require.ErrorIs(t, err, ErrBridgeStopped)

	got, ok := errors.AsType[*ProcessExitedError](error(err))
	require.True(t, ok)
	require.Equal(t, -1, got.ExitCode)
}

func TestSpawnError(t *testing.T) {
	err := &SpawnError{Command: "python3", Err: exec.ErrNotFound}

	require.Equal(t, `failed to spawn worker "python3": executable file not found in $PATH`, err.Error())
	require.ErrorIs(t, err, exec.ErrNotFound)
	require.True(t, err.IsBridgeError())
}

func TestWorkerNotFoundError(t *testing.T) {
	err := &WorkerNotFoundError{
		SearchedPaths: []string{"/srv/bot/run_bot.py"},
	}

	require.Equal(t, "worker not found in: [/srv/bot/run_bot.py]", err.Error())
	require.True(t, err.IsBridgeError())
}

func TestPayloadError(t *testing.T) {
	root := errors.New("json: unsupported type: chan int")
	err := &PayloadError{Err: root}

	require.Equal(t, "invalid payload: json: unsupported type: chan int", err.Error())
	require.ErrorIs(t, err, root)
}

func TestWriteError(t *testing.T) {
	err := &WriteError{Err: ErrStdinClosed}

	require.Equal(t, "write to worker stdin: stdin closed", err.Error())
	require.ErrorIs(t, err, ErrStdinClosed)
	require.True(t, err.IsBridgeError())
}
