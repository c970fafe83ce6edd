package bridge

import (
	"encoding/json"
	"time"
)

// Response is a worker response line decoded as JSON.
type Response struct {
	// RequestID identifies the request the line was attributed to.
	RequestID string

	// Raw is the response document as received.
	Raw json.RawMessage

	// Value is Raw decoded into generic JSON types.
	Value any

	// Latency is the time between submission and arrival.
	Latency time.Duration
}

// Decode unmarshals the raw response into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Raw, v)
}

// Object returns the response as a JSON object, or nil if it is another
// JSON type.
func (r *Response) Object() map[string]any {
	obj, _ := r.Value.(map[string]any)

	return obj
}
