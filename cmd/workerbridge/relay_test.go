package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/workerbridge"
	"github.com/wagiedev/workerbridge/internal/testutil"
)

// delaySender answers {"n": N} after (10-N)*5ms so later lines finish first.
type delaySender struct{}

func (delaySender) Send(_ context.Context, payload any) (*workerbridge.Response, error) {
	obj, _ := payload.(map[string]any)

	n, _ := obj["n"].(float64)
	if n < 0 {
		return nil, &workerbridge.BackpressureError{Pending: 1, Max: 1}
	}

	time.Sleep(time.Duration(10-n) * 5 * time.Millisecond)

	return &workerbridge.Response{Raw: json.RawMessage(fmt.Sprintf(`{"n":%v}`, n))}, nil
}

func decodeResults(t *testing.T, out string) []relayResult {
	t.Helper()

	var results []relayResult

	for line := range strings.SplitSeq(strings.TrimSpace(out), "\n") {
		var res relayResult
		require.NoError(t, json.Unmarshal([]byte(line), &res))

		results = append(results, res)
	}

	return results
}

func TestRelay_PreservesInputOrder(t *testing.T) {
	var in strings.Builder
	for n := range 10 {
		fmt.Fprintf(&in, "{\"n\":%d}\n", n)
	}

	var out bytes.Buffer

	require.NoError(t, relay(context.Background(), delaySender{}, strings.NewReader(in.String()), &out, 4, slog.New(slog.DiscardHandler)))

	results := decodeResults(t, out.String())
	require.Len(t, results, 10)

	for n, res := range results {
		require.Empty(t, res.Error)
		require.JSONEq(t, fmt.Sprintf(`{"n":%d}`, n), string(res.Response))
	}
}

func TestRelay_ErrorsBecomeLines(t *testing.T) {
	input := "{\"n\":1}\n\n   \nnot json\n{\"n\":-1}\n"

	var out bytes.Buffer

	require.NoError(t, relay(context.Background(), delaySender{}, strings.NewReader(input), &out, 4, slog.New(slog.DiscardHandler)))

	results := decodeResults(t, out.String())
	require.Len(t, results, 3, "blank lines are skipped")

	require.JSONEq(t, `{"n":1}`, string(results[0].Response))
	require.Equal(t, "invalid_input", results[1].Kind)
	require.Equal(t, "backpressure", results[2].Kind)
	require.Contains(t, results[2].Error, "too many pending")
}

func TestRelay_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A reader that never returns stands in for an idle terminal.
	blocked, w := io.Pipe()
	defer func() { _ = w.Close() }()

	require.NoError(t, relay(ctx, delaySender{}, blocked, &bytes.Buffer{}, 4, slog.New(slog.DiscardHandler)))
}

// countingSender records the highest number of concurrent Send calls.
type countingSender struct {
	current atomic.Int32
	peak    atomic.Int32
}

func (c *countingSender) Send(_ context.Context, payload any) (*workerbridge.Response, error) {
	n := c.current.Add(1)
	defer c.current.Add(-1)

	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	time.Sleep(2 * time.Millisecond)

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &workerbridge.Response{Raw: data}, nil
}

func TestRelay_BoundsInFlightSends(t *testing.T) {
	var in strings.Builder
	for n := range 40 {
		fmt.Fprintf(&in, "{\"n\":%d}\n", n)
	}

	sender := &countingSender{}

	var out bytes.Buffer

	require.NoError(t, relay(context.Background(), sender, strings.NewReader(in.String()), &out, 3, slog.New(slog.DiscardHandler)))
	require.Len(t, decodeResults(t, out.String()), 40)
	require.LessOrEqual(t, sender.peak.Load(), int32(3))
}

func TestRelay_BatchLargerThanMaxPending(t *testing.T) {
	launcher := testutil.NewFakeLauncher()

	cfg := &workerbridge.Options{Launcher: launcher}
	cfg.ApplyDefaults()

	b, err := workerbridge.New(workerbridge.FromConfig(cfg))
	require.NoError(t, err)

	t.Cleanup(func() { _ = b.Shutdown() })

	require.NoError(t, b.Start(context.Background()))

	launcher.Next(t).Respond(2*time.Millisecond, func(line []byte) string {
		return strings.TrimSpace(string(line)) + "\n"
	})

	lines := 2 * cfg.MaxPending

	var in strings.Builder
	for n := range lines {
		fmt.Fprintf(&in, "{\"n\":%d}\n", n)
	}

	var out bytes.Buffer

	require.NoError(t, relay(context.Background(), b, strings.NewReader(in.String()), &out, cfg.MaxPending, slog.New(slog.DiscardHandler)))

	results := decodeResults(t, out.String())
	require.Len(t, results, lines)

	for n, res := range results {
		require.Empty(t, res.Kind, "line %d failed: %s", n, res.Error)
		require.JSONEq(t, fmt.Sprintf(`{"n":%d}`, n), string(res.Response))
	}
}
