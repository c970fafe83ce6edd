package workerbridge

import (
	"context"
	"time"

	"github.com/wagiedev/workerbridge/internal/bridge"
)

// bridgeWrapper wraps the internal bridge to adapt it to the public interface.
type bridgeWrapper struct {
	impl *bridge.Bridge
}

// Compile-time check that *bridgeWrapper implements the Bridge interface.
var _ Bridge = (*bridgeWrapper)(nil)

// newBridgeImpl creates the internal bridge implementation.
func newBridgeImpl(options *Options) (Bridge, error) {
	impl, err := bridge.New(options)
	if err != nil {
		return nil, err
	}

	return &bridgeWrapper{impl: impl}, nil
}

// Start spawns the worker.
func (b *bridgeWrapper) Start(ctx context.Context) error {
	return b.impl.Start(ctx)
}

// Send sends a request using the default timeout.
func (b *bridgeWrapper) Send(ctx context.Context, payload any) (*Response, error) {
	return b.impl.Send(ctx, payload, 0)
}

// SendWithTimeout sends a request with an explicit timeout.
func (b *bridgeWrapper) SendWithTimeout(ctx context.Context, payload any, timeout time.Duration) (*Response, error) {
	return b.impl.Send(ctx, payload, timeout)
}

// Shutdown stops the worker for good.
func (b *bridgeWrapper) Shutdown() error {
	return b.impl.Shutdown()
}

// State returns the worker lifecycle state.
func (b *bridgeWrapper) State() State {
	return b.impl.State()
}

// Pending returns the number of in-flight requests.
func (b *bridgeWrapper) Pending() int {
	return b.impl.Pending()
}

// LastError returns why the worker is not running.
func (b *bridgeWrapper) LastError() error {
	return b.impl.LastError()
}
