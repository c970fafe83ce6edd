// Package workerbridge runs a long-lived worker process and exchanges JSON
// requests and responses with it over stdin and stdout.
//
// The worker reads one JSON document per line on stdin and writes one JSON
// document per line on stdout. The bridge keeps the worker alive, restarting
// it after a fixed backoff when it exits, and gives every request its own
// timeout.
//
// # Basic Usage
//
//	b, err := workerbridge.New(
//	    workerbridge.WithCommand("python3"),
//	    workerbridge.WithScript("bot.py"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Shutdown()
//
//	resp, err := b.Send(ctx, map[string]any{"text": "hello"})
//
// Or let WithBridge manage the lifecycle:
//
//	err := workerbridge.WithBridge(ctx, func(b workerbridge.Bridge) error {
//	    _, err := b.Send(ctx, map[string]any{"text": "hello"})
//	    return err
//	},
//	    workerbridge.WithScript("bot.py"),
//	)
//
// # Correlation
//
// By default responses are matched to requests by position: the first line
// the worker writes answers the oldest pending request. This needs no
// cooperation from the worker beyond answering every request exactly once
// and in order. The price is that a response arriving after its request
// timed out is handed to the next request in line. Workers that can echo an
// id should use WithCorrelation(CorrelationTagged) instead.
//
// # Error Handling
//
// Every failure is a typed error:
//
//	resp, err := b.Send(ctx, payload)
//	switch {
//	case errors.Is(err, workerbridge.ErrBackpressure):
//	    // shed load
//	case errors.Is(err, workerbridge.ErrRequestTimeout):
//	    // worker is slow
//	case errors.Is(err, workerbridge.ErrNotRunning):
//	    // worker is restarting
//	}
//
//	if exitErr, ok := errors.AsType[*workerbridge.ProcessExitedError](err); ok {
//	    log.Printf("worker died (exit %d): %s", exitErr.ExitCode, exitErr.Stderr)
//	}
//
// # Logging
//
// For detailed operation tracking, use WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	b, err := workerbridge.New(workerbridge.WithLogger(logger))
package workerbridge
