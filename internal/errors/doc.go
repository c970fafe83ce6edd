// Package errors defines error types for the worker bridge.
//
// This package provides structured error types for every way a request can
// fail on its way to the worker process and back. All error types support
// error unwrapping and can be checked using errors.Is, errors.As, and
// errors.AsType.
package errors
