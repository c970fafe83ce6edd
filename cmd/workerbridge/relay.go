package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"github.com/wagiedev/workerbridge"
	"github.com/wagiedev/workerbridge/internal/metrics"
)

// maxRelayLine caps a single input line.
const maxRelayLine = 1024 * 1024

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay JSON lines from stdin to the worker",
	Long: `Read one JSON document per line from stdin, send each to the worker and
write one result line per input line to stdout, in input order.

Each result is {"response": <worker response>} or
{"error": "<message>", "kind": "<timeout|not_running|...>"}. At most
max_pending requests are in flight at once, so a healthy worker never sees
backpressure from the relay.

Examples:
  echo '{"text":"hi"}' | workerbridge relay --config bot.yaml
  WORKER_SCRIPT=bot.py workerbridge relay < requests.jsonl`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runBridge(cmd, func(ctx context.Context, b workerbridge.Bridge, cfg *workerbridge.Options, log *slog.Logger) error {
			return relay(ctx, b, cmd.InOrStdin(), cmd.OutOrStdout(), cfg.MaxPending, log)
		})
	},
}

// sender is the part of a bridge relay needs.
type sender interface {
	Send(ctx context.Context, payload any) (*workerbridge.Response, error)
}

// relayResult is one output line.
type relayResult struct {
	Response json.RawMessage `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
	Kind     string          `json:"kind,omitempty"`
}

// relay sends input lines concurrently, with at most limit in flight, and
// writes results in input order. It returns at end of input once every
// result is written, or when ctx is done.
func relay(ctx context.Context, b sender, in io.Reader, out io.Writer, limit int, log *slog.Logger) error {
	if limit <= 0 {
		limit = 1
	}

	inFlight := semaphore.NewWeighted(int64(limit))
	results := make(chan chan relayResult, limit)

	var readErr error

	go func() {
		defer close(results)

		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), maxRelayLine)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			ch := make(chan relayResult, 1)

			var payload any
			if err := json.Unmarshal(line, &payload); err != nil {
				ch <- relayResult{Error: err.Error(), Kind: "invalid_input"}
			} else {
				if err := inFlight.Acquire(ctx, 1); err != nil {
					return
				}

				go func() {
					defer inFlight.Release(1)

					resp, err := b.Send(ctx, payload)
					if err != nil {
						ch <- relayResult{Error: err.Error(), Kind: metrics.Outcome(err)}

						return
					}

					ch <- relayResult{Response: resp.Raw}
				}()
			}

			select {
			case results <- ch:
			case <-ctx.Done():
				return
			}
		}

		readErr = scanner.Err()
	}()

	enc := json.NewEncoder(out)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ch, ok := <-results:
			if !ok {
				return readErr
			}

			res := <-ch
			if res.Kind != "" {
				log.Debug("Relay request failed", "kind", res.Kind, "error", res.Error)
			}

			if err := enc.Encode(res); err != nil {
				return err
			}
		}
	}
}
