package workerbridge

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestErrorAliases(t *testing.T) {
	var err error = &BackpressureError{Pending: 50, Max: 50}

	require.ErrorIs(t, err, ErrBackpressure)

	bridgeErr, ok := errors.AsType[BridgeError](err)
	require.True(t, ok)
	require.True(t, bridgeErr.IsBridgeError())

	err = &TimeoutError{Timeout: time.Second}
	require.ErrorIs(t, err, ErrRequestTimeout)
	require.Contains(t, err.Error(), "1s")

	err = &ProcessExitedError{ExitCode: -1, Err: ErrBridgeStopped}
	require.ErrorIs(t, err, ErrBridgeStopped)
}
