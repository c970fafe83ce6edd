// Package mcp exposes a bridge as a Model Context Protocol tool server.
//
// Two tools are registered: send_to_worker forwards a JSON payload to the
// worker and returns the raw response line, and worker_status reports the
// worker lifecycle state and queue depth. Bridge failures are returned as
// tool errors rather than protocol errors so clients can show them.
package mcp
