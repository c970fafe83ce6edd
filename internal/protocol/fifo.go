package protocol

import (
	"encoding/json"
	"slices"
)

// FIFO correlates purely by position: the Nth response line belongs to the
// oldest request still pending.
type FIFO struct {
	queue []*Pending
}

// NewFIFO creates an empty positional correlator.
func NewFIFO() *FIFO {
	return &FIFO{queue: make([]*Pending, 0, 16)}
}

// Name implements Correlator.
func (f *FIFO) Name() string { return CorrelationFIFO }

// Encode implements Correlator. The payload is sent as is.
func (f *FIFO) Encode(_ *Pending, payload any) ([]byte, error) {
	return json.Marshal(payload)
}

// Push implements Correlator.
func (f *FIFO) Push(p *Pending) {
	f.queue = append(f.queue, p)
}

// Claim implements Correlator. The head of the queue owns the line.
func (f *FIFO) Claim(line []byte) (*Pending, []byte, error) {
	if len(f.queue) == 0 {
		return nil, nil, nil
	}

	head := f.queue[0]
	f.queue[0] = nil
	f.queue = f.queue[1:]

	return head, line, nil
}

// Remove implements Correlator.
func (f *FIFO) Remove(p *Pending) bool {
	idx := slices.Index(f.queue, p)
	if idx < 0 {
		return false
	}

	f.queue = slices.Delete(f.queue, idx, idx+1)

	return true
}

// Drain implements Correlator.
func (f *FIFO) Drain() []*Pending {
	drained := f.queue
	f.queue = make([]*Pending, 0, 16)

	return drained
}

// Len implements Correlator.
func (f *FIFO) Len() int {
	return len(f.queue)
}
