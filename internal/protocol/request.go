package protocol

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// Result is the outcome delivered to the caller waiting on a Pending.
type Result struct {
	// Raw is the response document as received.
	Raw json.RawMessage

	// Value is Raw decoded into generic JSON types.
	Value any

	// Err is set when the request failed.
	Err error
}

// Pending tracks one in-flight request from enqueue until exactly one of
// response, timeout or process exit settles it.
type Pending struct {
	// ID uniquely identifies the request in logs and on the tagged wire.
	ID string

	// Submitted is when the request was accepted.
	Submitted time.Time

	// Timeout is the window the caller is willing to wait.
	Timeout time.Duration

	done    chan Result
	settle  sync.Once
	settled atomic.Bool
	timerMu sync.Mutex
	timer   *time.Timer
}

// NewPending creates a pending request with a fresh ULID.
func NewPending(timeout time.Duration) *Pending {
	return &Pending{
		ID:        ulid.Make().String(),
		Submitted: time.Now(),
		Timeout:   timeout,
		done:      make(chan Result, 1),
	}
}

// Done returns a channel that receives the single Result for this request.
func (p *Pending) Done() <-chan Result {
	return p.done
}

// Arm schedules fn to run once the request timeout elapses.
// A zero or negative timeout, or an already settled request, arms nothing.
func (p *Pending) Arm(fn func()) {
	if p.Timeout <= 0 {
		return
	}

	p.timerMu.Lock()
	defer p.timerMu.Unlock()

	if p.settled.Load() {
		return
	}

	p.timer = time.AfterFunc(p.Timeout, fn)
}

// Resolve settles the request with a decoded response.
func (p *Pending) Resolve(raw json.RawMessage, value any) {
	p.finish(Result{Raw: raw, Value: value})
}

// Reject settles the request with err.
func (p *Pending) Reject(err error) {
	p.finish(Result{Err: err})
}

// Deadline is when the request timeout elapses. It is the zero time when
// the request has no timeout.
func (p *Pending) Deadline() time.Time {
	if p.Timeout <= 0 {
		return time.Time{}
	}

	return p.Submitted.Add(p.Timeout)
}

// Settled reports whether Resolve or Reject has already run.
func (p *Pending) Settled() bool {
	return p.settled.Load()
}

func (p *Pending) finish(r Result) {
	p.settle.Do(func() {
		p.settled.Store(true)
		p.timerMu.Lock()

		if p.timer != nil {
			p.timer.Stop()
		}

		p.timerMu.Unlock()

		p.done <- r
	})
}

// taggedRequest is the wire form of a request under the Tagged correlator.
//
// Wire format:
//
//	{"id": "01J9Z3...", "payload": {...}}
type taggedRequest struct {
	ID      string `json:"id"`
	Payload any    `json:"payload"`
}

// taggedResponse is the wire form of a response under the Tagged correlator.
//
// Wire format:
//
//	{"id": "01J9Z3...", "response": {...}}
type taggedResponse struct {
	ID       string          `json:"id"`
	Response json.RawMessage `json:"response"`
}
