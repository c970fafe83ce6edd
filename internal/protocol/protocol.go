package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/wagiedev/workerbridge/internal/errors"
)

// Correlator owns the queue of in-flight requests and decides which one a
// response line belongs to.
//
// Implementations are not safe for concurrent use, except Encode, which
// never touches the queue.
type Correlator interface {
	// Name identifies the correlation strategy in logs.
	Name() string

	// Encode returns the wire bytes for payload addressed to p, without the
	// trailing newline.
	Encode(p *Pending, payload any) ([]byte, error)

	// Push appends p to the tail of the queue.
	Push(p *Pending)

	// Claim removes and returns the request that owns line along with the
	// response body to decode. A nil request and nil error means the line is
	// an orphan. A nil request with an error means the line could not be
	// attributed to any request.
	Claim(line []byte) (*Pending, []byte, error)

	// Remove deletes p from wherever it sits in the queue, keeping the
	// relative order of everything else. It reports whether p was present.
	Remove(p *Pending) bool

	// Drain removes every queued request and returns them oldest first.
	Drain() []*Pending

	// Len returns the number of queued requests.
	Len() int
}

// Compile-time verification that both correlators implement Correlator.
var (
	_ Correlator = (*FIFO)(nil)
	_ Correlator = (*Tagged)(nil)
)

// Correlation strategy names accepted by New.
const (
	CorrelationFIFO   = "fifo"
	CorrelationTagged = "tagged"
)

// New returns the correlator for the named strategy. An empty name selects FIFO.
func New(name string) (Correlator, error) {
	switch name {
	case "", CorrelationFIFO:
		return NewFIFO(), nil
	case CorrelationTagged:
		return NewTagged(), nil
	default:
		return nil, fmt.Errorf("unknown correlation strategy %q", name)
	}
}

// DecodeLine parses a response body into generic JSON values. A body that is
// not valid JSON yields a ProtocolViolationError carrying the raw text.
func DecodeLine(body []byte) (json.RawMessage, any, error) {
	var value any

	if err := json.Unmarshal(body, &value); err != nil {
		return nil, nil, &errors.ProtocolViolationError{RawLine: string(body), Err: err}
	}

	return json.RawMessage(body), value, nil
}
