package bridge

import (
	"context"
	"sync"

	"github.com/wagiedev/workerbridge/internal/config"
	"github.com/wagiedev/workerbridge/internal/protocol"
)

// writeJob is an admitted request whose line has not been written yet.
type writeJob struct {
	pending *protocol.Pending
	line    []byte
}

// stdinWriter writes request lines to one worker generation, in the order
// they were queued, from a single goroutine.
type stdinWriter struct {
	gen    uint64
	proc   config.Process
	failed func(w *stdinWriter, job writeJob, err error)

	mu     sync.Mutex
	jobs   []writeJob
	closed bool
	wake   chan struct{}
}

func newStdinWriter(gen uint64, proc config.Process, failed func(*stdinWriter, writeJob, error)) *stdinWriter {
	w := &stdinWriter{
		gen:    gen,
		proc:   proc,
		failed: failed,
		wake:   make(chan struct{}, 1),
	}

	go w.run()

	return w
}

// queue appends job. It never blocks.
func (w *stdinWriter) queue(job writeJob) bool {
	w.mu.Lock()

	if w.closed {
		w.mu.Unlock()

		return false
	}

	w.jobs = append(w.jobs, job)
	w.mu.Unlock()

	w.signal()

	return true
}

// close discards queued jobs and stops the writer goroutine after its
// current write.
func (w *stdinWriter) close() {
	w.mu.Lock()
	w.closed = true
	w.jobs = nil
	w.mu.Unlock()

	w.signal()
}

func (w *stdinWriter) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *stdinWriter) next() (writeJob, bool) {
	for {
		w.mu.Lock()

		if w.closed {
			w.mu.Unlock()

			return writeJob{}, false
		}

		if len(w.jobs) > 0 {
			job := w.jobs[0]
			w.jobs[0] = writeJob{}
			w.jobs = w.jobs[1:]
			w.mu.Unlock()

			return job, true
		}

		w.mu.Unlock()

		<-w.wake
	}
}

func (w *stdinWriter) run() {
	for {
		job, ok := w.next()
		if !ok {
			return
		}

		// Timed out or cancelled while queued: the worker never sees it.
		if job.pending.Settled() {
			continue
		}

		if err := w.write(job); err != nil {
			w.failed(w, job, err)
		}
	}
}

// write is bounded by the request deadline.
func (w *stdinWriter) write(job writeJob) error {
	ctx := context.Background()

	if deadline := job.pending.Deadline(); !deadline.IsZero() {
		var cancel context.CancelFunc

		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	return w.proc.Write(ctx, job.line)
}
