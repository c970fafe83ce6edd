package bridge

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/wagiedev/workerbridge/internal/config"
	"github.com/wagiedev/workerbridge/internal/errors"
	"github.com/wagiedev/workerbridge/internal/framing"
	"github.com/wagiedev/workerbridge/internal/metrics"
	"github.com/wagiedev/workerbridge/internal/protocol"
	"github.com/wagiedev/workerbridge/internal/subprocess"
	"github.com/wagiedev/workerbridge/internal/supervisor"
)

// Bridge exchanges JSON lines with a supervised worker process.
type Bridge struct {
	log     *slog.Logger
	options *config.Options
	sup     *supervisor.Supervisor
	metrics *metrics.Metrics

	requestSchema  *validator
	responseSchema *validator

	mu     sync.Mutex // Guards queue, frames, frameGen and writer
	queue  protocol.Correlator
	frames *framing.Buffer
	// frameGen is the worker generation the frame buffer belongs to.
	frameGen uint64
	// writer feeds the current worker's stdin in queue order.
	writer *stdinWriter

	shutdownOnce sync.Once
}

// claim is a response line matched (or not) to a pending request.
type claim struct {
	pending *protocol.Pending
	line    []byte
	body    []byte
	err     error
}

// New creates a bridge from options. The worker is spawned by Start, or
// lazily by the first Send.
func New(options *config.Options) (*Bridge, error) {
	opts := *options
	opts.ApplyDefaults()

	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	queue, err := protocol.New(opts.Correlation)
	if err != nil {
		return nil, err
	}

	requestSchema, err := newValidator(opts.RequestSchema)
	if err != nil {
		return nil, fmt.Errorf("request schema: %w", err)
	}

	responseSchema, err := newValidator(opts.ResponseSchema)
	if err != nil {
		return nil, fmt.Errorf("response schema: %w", err)
	}

	m, err := metrics.New(opts.MetricsRegisterer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	b := &Bridge{
		log:            log.With("component", "bridge"),
		options:        &opts,
		metrics:        m,
		requestSchema:  requestSchema,
		responseSchema: responseSchema,
		queue:          queue,
		frames:         framing.NewBuffer(opts.MaxLineBytes),
	}

	launcher := opts.Launcher
	if launcher == nil {
		launcher = subprocess.NewLauncher(log, &opts)
	}

	b.sup = supervisor.New(log, launcher, opts.RestartBackoff, supervisor.Events{
		Output:      b.handleOutput,
		Crash:       b.handleCrash,
		Spawned:     func(uint64, int) { b.metrics.SetWorkerUp(true) },
		SpawnFailed: func(error) { b.metrics.SpawnFailures.Inc() },
		Restart:     func() { b.metrics.RestartsTotal.Inc() },
	})

	b.log.Debug("Bridge created",
		"correlation", queue.Name(),
		"max_pending", opts.MaxPending,
		"default_timeout", opts.DefaultTimeout,
		"restart_backoff", opts.RestartBackoff,
	)

	return b, nil
}

// Start spawns the worker. It is a no-op if the worker is already running
// or restarting, and returns ErrBridgeStopped after Shutdown.
//
// A spawn failure is returned, but the bridge keeps retrying at the restart
// backoff until it succeeds or Shutdown is called.
func (b *Bridge) Start(ctx context.Context) error {
	return b.sup.Start(ctx)
}

// Send writes payload to the worker as one JSON line and waits for the
// response line attributed to it.
//
// A zero or negative timeout uses the configured default. Send fails
// without writing anything when no worker is running (ErrNotRunning) or
// when the queue is full (BackpressureError). Cancelling ctx abandons the
// request the same way a timeout does.
func (b *Bridge) Send(ctx context.Context, payload any, timeout time.Duration) (*Response, error) {
	resp, err := b.send(ctx, payload, timeout)

	var latency time.Duration
	if resp != nil {
		latency = resp.Latency
	}

	b.metrics.RecordRequest(err, latency)

	return resp, err
}

func (b *Bridge) send(ctx context.Context, payload any, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = b.options.DefaultTimeout
	}

	if b.sup.State() == supervisor.StateNew {
		if err := b.Start(ctx); err != nil {
			b.log.Debug("Lazy start failed", "error", err)
		}
	}

	if err := b.requestSchema.validatePayload(payload); err != nil {
		return nil, &errors.PayloadError{Err: err}
	}

	p := protocol.NewPending(timeout)

	line, err := b.queue.Encode(p, payload)
	if err != nil {
		return nil, &errors.PayloadError{Err: err}
	}

	if err := b.enqueue(p, line); err != nil {
		return nil, err
	}

	p.Arm(func() { b.expire(p) })

	var res protocol.Result

	select {
	case res = <-p.Done():
	case <-ctx.Done():
		b.abandon(p, ctx.Err())

		res = <-p.Done()
	}

	if res.Err != nil {
		return nil, res.Err
	}

	return &Response{
		RequestID: p.ID,
		Raw:       res.Raw,
		Value:     res.Value,
		Latency:   time.Since(p.Submitted),
	}, nil
}

// enqueue admits p into the queue of the live worker and hands its line to
// that worker's writer. It never waits for a write.
func (b *Bridge) enqueue(p *protocol.Pending, line []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	proc, gen, ok := b.sup.Current()
	if !ok {
		return b.notRunning()
	}

	if pending := b.queue.Len(); pending >= b.options.MaxPending {
		b.log.Warn("Rejecting request, too many pending", "pending", pending, "max", b.options.MaxPending)

		return &errors.BackpressureError{Pending: pending, Max: b.options.MaxPending}
	}

	if b.writer == nil || b.writer.gen != gen {
		if b.writer != nil {
			b.writer.close()
		}

		b.writer = newStdinWriter(gen, proc, b.writeFailed)
	}

	// A closed writer means the worker is being recycled.
	if !b.writer.queue(writeJob{pending: p, line: line}) {
		return fmt.Errorf("%w: %w", errors.ErrNotRunning, errors.ErrWorkerRecycled)
	}

	b.queue.Push(p)
	b.metrics.SetPending(b.queue.Len())

	b.log.Debug("Queued request for worker", "request_id", p.ID, "bytes", len(line))

	return nil
}

// writeFailed settles the request whose write failed and recycles the
// worker, since a partial line may already be on its stdin.
func (b *Bridge) writeFailed(w *stdinWriter, job writeJob, err error) {
	p := job.pending

	if stderrors.Is(err, context.DeadlineExceeded) {
		b.log.Warn("Worker stdin write timed out", "request_id", p.ID, "timeout", p.Timeout)
		b.abandon(p, &errors.TimeoutError{Timeout: p.Timeout})
	} else {
		b.log.Warn("Failed to write request to worker", "request_id", p.ID, "error", err)
		b.abandon(p, &errors.WriteError{Err: err})
	}

	w.close()
	b.sup.Recycle(w.gen, fmt.Errorf("%w: %w", errors.ErrWorkerRecycled, err))
}

// notRunning builds the NotRunning error, carrying the reason if known.
func (b *Bridge) notRunning() error {
	if b.sup.State() == supervisor.StateStopped {
		return fmt.Errorf("%w: %w", errors.ErrNotRunning, errors.ErrBridgeStopped)
	}

	if cause := b.sup.LastError(); cause != nil {
		return fmt.Errorf("%w: %w", errors.ErrNotRunning, cause)
	}

	return errors.ErrNotRunning
}

// expire fires when a request's timeout elapses while it is still queued.
func (b *Bridge) expire(p *protocol.Pending) {
	if !b.remove(p) {
		return
	}

	b.log.Warn("Worker request timed out", "request_id", p.ID, "timeout", p.Timeout)

	p.Reject(&errors.TimeoutError{Timeout: p.Timeout})
}

// abandon removes p and rejects it with err if nothing settled it first.
func (b *Bridge) abandon(p *protocol.Pending, err error) {
	if b.remove(p) {
		p.Reject(err)
	}
}

func (b *Bridge) remove(p *protocol.Pending) bool {
	b.mu.Lock()
	removed := b.queue.Remove(p)
	pending := b.queue.Len()
	b.mu.Unlock()

	if removed {
		b.metrics.SetPending(pending)
	}

	return removed
}

// handleOutput frames a stdout chunk and settles the requests its lines
// belong to.
func (b *Bridge) handleOutput(gen uint64, chunk []byte) {
	b.mu.Lock()

	if gen != b.frameGen {
		b.frames.Reset()
		b.frameGen = gen
	}

	frames := b.frames.Feed(chunk)
	claims := make([]claim, 0, len(frames))

	for _, frame := range frames {
		claims = append(claims, b.claimFrame(frame))
	}

	pending := b.queue.Len()

	b.mu.Unlock()

	if len(claims) == 0 {
		return
	}

	b.metrics.SetPending(pending)

	for _, c := range claims {
		b.settle(c)
	}
}

// claimFrame attributes one frame. Callers hold mu.
func (b *Bridge) claimFrame(frame framing.Frame) claim {
	if !frame.Oversize {
		p, body, err := b.queue.Claim(frame.Line)

		return claim{pending: p, line: frame.Line, body: body, err: err}
	}

	// Only the prefix of an oversize line survives. It still consumes the
	// request it belongs to, which fails instead of timing out.
	p, _, err := b.queue.Claim(frame.Prefix)
	if p != nil {
		err = &errors.ProtocolViolationError{
			RawLine: string(frame.Prefix),
			Err:     fmt.Errorf("%w: exceeds %d bytes", errors.ErrLineTooLong, b.options.MaxLineBytes),
		}
	}

	return claim{pending: p, line: frame.Prefix, err: err}
}

// settle delivers a claimed line to its request.
func (b *Bridge) settle(c claim) {
	if c.pending == nil {
		if c.err != nil {
			b.log.Warn("Discarding unattributable worker output", "error", c.err)
			b.metrics.RecordOrphan(metrics.OrphanUnattributable)

			return
		}

		b.log.Warn("Discarding worker output with no pending request", "line", string(c.line))
		b.metrics.RecordOrphan(metrics.OrphanUnmatched)

		return
	}

	if c.err != nil {
		b.log.Warn("Protocol violation from worker", "request_id", c.pending.ID, "error", c.err)
		c.pending.Reject(c.err)

		return
	}

	raw, value, err := protocol.DecodeLine(c.body)
	if err != nil {
		b.log.Warn("Invalid JSON from worker", "request_id", c.pending.ID, "error", err)
		c.pending.Reject(err)

		return
	}

	if err := b.responseSchema.validateValue(value); err != nil {
		b.log.Warn("Worker response failed schema validation", "request_id", c.pending.ID, "error", err)
		c.pending.Reject(&errors.ProtocolViolationError{
			RawLine: string(c.body),
			Err:     fmt.Errorf("response schema: %w", err),
		})

		return
	}

	c.pending.Resolve(raw, value)
}

// handleCrash fails every pending request with the exit error.
func (b *Bridge) handleCrash(gen uint64, err error) {
	if _, ok := stderrors.AsType[*errors.ProcessExitedError](err); !ok {
		err = &errors.ProcessExitedError{ExitCode: -1, Err: err}
	}

	b.metrics.SetWorkerUp(false)

	if n := b.failPending(err); n > 0 {
		b.log.Warn("Rejecting pending requests after worker exit", "generation", gen, "count", n)
	}
}

// failPending drains the queue, rejecting every request with err.
func (b *Bridge) failPending(err error) int {
	b.mu.Lock()
	drained := b.queue.Drain()
	b.frames.Reset()

	if b.writer != nil {
		b.writer.close()
		b.writer = nil
	}

	b.mu.Unlock()

	b.metrics.SetPending(0)

	for _, p := range drained {
		p.Reject(err)
	}

	return len(drained)
}

// Shutdown stops the worker, disables restarts and rejects every pending
// request. It never fails and is safe to call multiple times.
func (b *Bridge) Shutdown() error {
	b.shutdownOnce.Do(func() {
		b.log.Info("Shutting down bridge")

		b.sup.Stop()
		b.metrics.SetWorkerUp(false)

		n := b.failPending(&errors.ProcessExitedError{ExitCode: -1, Err: errors.ErrBridgeStopped})
		if n > 0 {
			b.log.Debug("Rejected pending requests on shutdown", "count", n)
		}
	})

	return nil
}

// State returns the worker lifecycle state.
func (b *Bridge) State() supervisor.State {
	return b.sup.State()
}

// Pending returns the number of requests awaiting a response.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.queue.Len()
}

// LastError returns the reason the worker is not running, if any.
func (b *Bridge) LastError() error {
	return b.sup.LastError()
}

// Restarts returns how many automatic restarts have been attempted.
func (b *Bridge) Restarts() int {
	return b.sup.Restarts()
}

// Metrics returns the bridge's Prometheus metrics.
func (b *Bridge) Metrics() *metrics.Metrics {
	return b.metrics
}
