// Package bridge implements request/response exchange with a supervised
// worker process.
//
// A Bridge owns four pieces: a supervisor that keeps one worker alive, a
// framing buffer that turns stdout chunks into lines, a correlator that
// matches each line to a pending request, and a per-request timer. Requests
// are written to stdin as single JSON lines in the order they are accepted.
//
// Locking: one mutex guards the correlator, the framing buffer and the
// current stdin writer. Admission pushes the request and queues its line on
// the writer under that mutex, so queue order equals wire order, and then
// returns without waiting for the write. Each worker generation gets its own
// writer goroutine. A write that fails or outlives its request deadline
// recycles the worker.
package bridge
