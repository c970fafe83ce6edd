package workerbridge

import (
	"context"
	"time"
)

// Bridge exchanges JSON requests and responses with a long-lived worker
// process over its standard streams.
//
// Bridges are single-use. After Shutdown, create a new one with New.
//
// Example usage:
//
//	b, err := workerbridge.New(
//	    workerbridge.WithScript("bot.py"),
//	    workerbridge.WithLogger(slog.Default()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Shutdown()
//
//	resp, err := b.Send(ctx, map[string]any{"text": "hello"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println(string(resp.Raw))
type Bridge interface {
	// Start spawns the worker. Calling it is optional: the first Send
	// starts the worker too. A spawn failure is returned, and the bridge
	// keeps retrying in the background at the restart backoff.
	// Returns ErrBridgeStopped after Shutdown.
	Start(ctx context.Context) error

	// Send writes payload as one JSON line and waits for its response,
	// using the configured default timeout.
	//
	// Errors: ErrNotRunning when no worker is up, BackpressureError when the
	// queue is full, TimeoutError, ProtocolViolationError for a malformed
	// response line and ProcessExitedError when the worker dies first.
	Send(ctx context.Context, payload any) (*Response, error)

	// SendWithTimeout is Send with an explicit timeout. A zero or negative
	// timeout uses the default.
	SendWithTimeout(ctx context.Context, payload any, timeout time.Duration) (*Response, error)

	// Shutdown kills the worker, disables restarts and rejects every
	// pending request. It always returns nil and is idempotent.
	Shutdown() error

	// State returns the worker lifecycle state.
	State() State

	// Pending returns the number of requests awaiting a response.
	Pending() int

	// LastError returns why the worker is not running, or nil.
	LastError() error
}

// New creates a bridge. The worker is not spawned until Start or the first
// Send.
func New(opts ...Option) (Bridge, error) {
	return newBridgeImpl(applyOptions(opts))
}
