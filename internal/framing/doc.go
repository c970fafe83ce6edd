// Package framing splits the worker's stdout byte stream into records.
//
// The worker protocol carries one JSON document per line. A Buffer accepts
// arbitrary chunks as they are read from the pipe and yields every complete,
// non-empty, whitespace-trimmed line in the order it was found. Parsing the
// line is left to the caller.
package framing
