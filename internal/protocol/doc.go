// Package protocol implements request/response correlation for the worker
// wire protocol.
//
// The worker reads one JSON document per line on stdin and writes one JSON
// document per line on stdout, in the order it received requests. The
// protocol carries no request identifiers, so the FIFO correlator treats the
// queue order itself as the correlation id: the oldest pending request owns
// the next response line.
//
// A consequence is that a response arriving after its request timed out is
// attributed to whichever request is now at the head of the queue. This is
// inherent to positional matching and is preserved for compatibility with
// unmodified workers. Workers that echo an id can use the Tagged correlator
// instead, which wraps every request as {"id": ..., "payload": ...} and
// expects {"id": ..., "response": ...} back.
//
// Correlators are not safe for concurrent use; the bridge serialises all
// access behind a single mutex.
//
// Example usage:
//
//	c := protocol.NewFIFO()
//	p := protocol.NewPending(5 * time.Second)
//
//	line, _ := c.Encode(p, map[string]any{"message": "hello"})
//	c.Push(p)
//	// write line + "\n" to the worker ...
//
//	owner, body, err := c.Claim(responseLine)
package protocol
