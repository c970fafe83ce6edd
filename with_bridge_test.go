package workerbridge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/workerbridge"
	"github.com/wagiedev/workerbridge/internal/testutil"
)

func TestWithBridge_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := workerbridge.WithBridge(ctx, func(_ workerbridge.Bridge) error {
		t.Error("callback should not be called with cancelled context")

		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestWithBridge_RunsCallbackAndShutsDown(t *testing.T) {
	var captured workerbridge.Bridge

	err := workerbridge.WithBridge(context.Background(), func(b workerbridge.Bridge) error {
		captured = b

		resp, err := b.Send(context.Background(), map[string]any{"op": "echo", "x": 1})
		if err != nil {
			return err
		}

		require.NotNil(t, resp.Object()["echo"])

		return nil
	},
		workerbridge.WithCommand(testutil.HelperWorkerCommand()),
		workerbridge.WithEnv(testutil.HelperWorkerEnv()),
	)
	require.NoError(t, err)
	require.Equal(t, workerbridge.StateStopped, captured.State())
}

func TestWithBridge_CallbackError(t *testing.T) {
	sentinel := errors.New("callback failed")

	err := workerbridge.WithBridge(context.Background(), func(_ workerbridge.Bridge) error {
		return sentinel
	},
		workerbridge.WithCommand(testutil.HelperWorkerCommand()),
		workerbridge.WithEnv(testutil.HelperWorkerEnv()),
	)
	require.ErrorIs(t, err, sentinel)
}

func TestWithBridge_StartFailure(t *testing.T) {
	err := workerbridge.WithBridge(context.Background(), func(_ workerbridge.Bridge) error {
		t.Error("callback should not run when the worker cannot start")

		return nil
	},
		workerbridge.WithCommand("workerbridge-definitely-missing-binary"),
	)

	_, ok := errors.AsType[*workerbridge.WorkerNotFoundError](err)
	require.True(t, ok, "expected WorkerNotFoundError, got %v", err)
}

func TestWithBridge_InvalidOptions(t *testing.T) {
	err := workerbridge.WithBridge(context.Background(), func(_ workerbridge.Bridge) error {
		return nil
	},
		workerbridge.WithCorrelation("nonsense"),
	)
	require.Error(t, err)
}
