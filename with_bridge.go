package workerbridge

import (
	"context"
	"fmt"
)

// WithBridge manages bridge lifecycle with automatic cleanup.
//
// This helper creates a bridge, starts the worker, executes the callback
// function, and ensures Shutdown runs when done. If the callback returns an
// error, it is returned to the caller.
//
// Example usage:
//
//	err := workerbridge.WithBridge(ctx, func(b workerbridge.Bridge) error {
//	    resp, err := b.Send(ctx, map[string]any{"text": "hello"})
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(string(resp.Raw))
//	    return nil
//	},
//	    workerbridge.WithScript("bot.py"),
//	    workerbridge.WithTimeout(5*time.Second),
//	)
func WithBridge(ctx context.Context, fn func(Bridge) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	b, err := New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create bridge: %w", err)
	}

	defer func() { _ = b.Shutdown() }()

	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	return fn(b)
}
