package protocol

import (
	"encoding/json"
	stderrors "errors"
	"slices"

	"github.com/wagiedev/workerbridge/internal/errors"
)

var (
	errMissingID       = stderrors.New("response envelope missing id")
	errMissingResponse = stderrors.New("response envelope missing response")
)

// Tagged correlates by an explicit id echoed back by the worker. Late
// responses for requests that already timed out become orphans rather than
// being attributed to another request.
type Tagged struct {
	order   []*Pending
	pending map[string]*Pending
}

// NewTagged creates an empty id-based correlator.
func NewTagged() *Tagged {
	return &Tagged{
		order:   make([]*Pending, 0, 16),
		pending: make(map[string]*Pending, 16),
	}
}

// Name implements Correlator.
func (t *Tagged) Name() string { return CorrelationTagged }

// Encode implements Correlator. The payload is wrapped in an id envelope.
func (t *Tagged) Encode(p *Pending, payload any) ([]byte, error) {
	return json.Marshal(&taggedRequest{ID: p.ID, Payload: payload})
}

// Push implements Correlator.
func (t *Tagged) Push(p *Pending) {
	t.order = append(t.order, p)
	t.pending[p.ID] = p
}

// Claim implements Correlator.
func (t *Tagged) Claim(line []byte) (*Pending, []byte, error) {
	var env taggedResponse

	if err := json.Unmarshal(line, &env); err != nil {
		return nil, nil, &errors.ProtocolViolationError{RawLine: string(line), Err: err}
	}

	if env.ID == "" {
		return nil, nil, &errors.ProtocolViolationError{RawLine: string(line), Err: errMissingID}
	}

	p, ok := t.pending[env.ID]
	if !ok {
		return nil, nil, nil
	}

	t.Remove(p)

	if len(env.Response) == 0 {
		return p, nil, &errors.ProtocolViolationError{RawLine: string(line), Err: errMissingResponse}
	}

	return p, env.Response, nil
}

// Remove implements Correlator.
func (t *Tagged) Remove(p *Pending) bool {
	if _, ok := t.pending[p.ID]; !ok {
		return false
	}

	delete(t.pending, p.ID)

	if idx := slices.Index(t.order, p); idx >= 0 {
		t.order = slices.Delete(t.order, idx, idx+1)
	}

	return true
}

// Drain implements Correlator.
func (t *Tagged) Drain() []*Pending {
	drained := t.order
	t.order = make([]*Pending, 0, 16)
	clear(t.pending)

	return drained
}

// Len implements Correlator.
func (t *Tagged) Len() int {
	return len(t.order)
}
