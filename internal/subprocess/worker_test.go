package subprocess

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/workerbridge/internal/config"
	"github.com/wagiedev/workerbridge/internal/errors"
	"github.com/wagiedev/workerbridge/internal/framing"
	"github.com/wagiedev/workerbridge/internal/testutil"
)

func TestMain(m *testing.M) {
	if testutil.IsHelperWorker() {
		testutil.RunHelperWorker()
	}

	os.Exit(m.Run())
}

// outputCollector frames stdout chunks and records the exit.
type outputCollector struct {
	mu     sync.Mutex
	buf    *framing.Buffer
	lines  chan string
	exitCh chan error
}

func newOutputCollector() *outputCollector {
	return &outputCollector{
		buf:    framing.NewBuffer(0),
		lines:  make(chan string, 64),
		exitCh: make(chan error, 1),
	}
}

func (c *outputCollector) hooks() config.Hooks {
	return config.Hooks{
		OnOutput: func(chunk []byte) {
			c.mu.Lock()
			defer c.mu.Unlock()

			for _, frame := range c.buf.Feed(chunk) {
				c.lines <- string(frame.Line)
			}
		},
		OnExit: func(err error) { c.exitCh <- err },
	}
}

func (c *outputCollector) nextLine(t *testing.T) string {
	t.Helper()

	select {
	case line := <-c.lines:
		return line
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for worker output")

		return ""
	}
}

func (c *outputCollector) exit(t *testing.T) error {
	t.Helper()

	select {
	case err := <-c.exitCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for worker exit")

		return nil
	}
}

func helperOptions() *config.Options {
	return &config.Options{
		Command: testutil.HelperWorkerCommand(),
		Env:     testutil.HelperWorkerEnv(),
	}
}

func launchHelper(t *testing.T, opts *config.Options) (config.Process, *outputCollector) {
	t.Helper()

	collector := newOutputCollector()

	proc, err := NewLauncher(nil, opts).Launch(context.Background(), collector.hooks())
	require.NoError(t, err)

	t.Cleanup(func() { _ = proc.Kill() })

	return proc, collector
}

func TestLauncher_EchoRoundTrip(t *testing.T) {
	proc, out := launchHelper(t, helperOptions())

	require.Positive(t, proc.Pid())

	require.NoError(t, proc.Write(context.Background(), []byte(`{"op":"echo","n":1}`)))
	require.NoError(t, proc.Write(context.Background(), []byte("{\"op\":\"echo\",\"n\":2}\n")))

	require.JSONEq(t, `{"echo":{"op":"echo","n":1}}`, out.nextLine(t))
	require.JSONEq(t, `{"echo":{"op":"echo","n":2}}`, out.nextLine(t))
}

func TestLauncher_SplitWritesAreReassembled(t *testing.T) {
	proc, out := launchHelper(t, helperOptions())

	require.NoError(t, proc.Write(context.Background(), []byte(`{"op":"split","k":"v"}`)))

	require.JSONEq(t, `{"echo":{"op":"split","k":"v"}}`, out.nextLine(t))
}

func TestLauncher_LargeResponse(t *testing.T) {
	proc, out := launchHelper(t, helperOptions())

	require.NoError(t, proc.Write(context.Background(), []byte(`{"op":"big","size":200000}`)))

	line := out.nextLine(t)
	require.Len(t, line, len(`{"data":""}`)+200000)
}

func TestLauncher_DoesNotMutateCallerBuffer(t *testing.T) {
	proc, out := launchHelper(t, helperOptions())

	data := make([]byte, 0, 64)
	data = append(data, `{"op":"echo"}`...)
	before := append([]byte(nil), data[:cap(data)]...)

	require.NoError(t, proc.Write(context.Background(), data))
	require.Equal(t, before, data[:cap(data)])

	out.nextLine(t)
}

func TestLauncher_ExitReportsCodeAndStderr(t *testing.T) {
	proc, out := launchHelper(t, helperOptions())

	require.NoError(t, proc.Write(context.Background(), []byte(`{"op":"exit","code":3}`)))

	err := out.exit(t)

	exitErr, ok := stderrors.AsType[*errors.ProcessExitedError](err)
	require.True(t, ok, "expected ProcessExitedError, got %T", err)
	require.Equal(t, 3, exitErr.ExitCode)
	require.Contains(t, exitErr.Stderr, "exiting with code 3")
	require.ErrorIs(t, err, errors.ErrUnexpectedExit)
}

func TestLauncher_CleanExitIsStillUnexpected(t *testing.T) {
	proc, out := launchHelper(t, helperOptions())

	require.NoError(t, proc.CloseInput())

	err := out.exit(t)
	require.ErrorIs(t, err, errors.ErrUnexpectedExit)

	exitErr, ok := stderrors.AsType[*errors.ProcessExitedError](err)
	require.True(t, ok)
	require.Equal(t, 0, exitErr.ExitCode)

	require.ErrorIs(t, proc.Write(context.Background(), []byte("{}")), errors.ErrStdinClosed)
}

func TestLauncher_StderrCallback(t *testing.T) {
	var (
		mu    sync.Mutex
		lines []string
	)

	opts := helperOptions()
	opts.Stderr = func(line string) {
		mu.Lock()
		defer mu.Unlock()

		lines = append(lines, line)
	}

	proc, out := launchHelper(t, opts)

	require.NoError(t, proc.Write(context.Background(), []byte(`{"op":"stderr","text":"warming up"}`)))
	require.JSONEq(t, `{"ok":true}`, out.nextLine(t))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(lines) == 1 && lines[0] == "warming up"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestLauncher_KillReportsStopped(t *testing.T) {
	proc, out := launchHelper(t, helperOptions())

	require.NoError(t, proc.Kill())
	require.NoError(t, proc.Kill())

	err := out.exit(t)
	require.ErrorIs(t, err, errors.ErrBridgeStopped)
}

func TestLauncher_KillWithGrace(t *testing.T) {
	opts := helperOptions()
	opts.StopGrace = 2 * time.Second

	proc, out := launchHelper(t, opts)

	start := time.Now()

	require.NoError(t, proc.Kill())
	require.Less(t, time.Since(start), opts.StopGrace, "SIGTERM should stop the helper")
	require.ErrorIs(t, out.exit(t), errors.ErrBridgeStopped)
}

func TestLauncher_WriteRespectsCancelledContext(t *testing.T) {
	proc, _ := launchHelper(t, helperOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, proc.Write(ctx, []byte("{}")), context.Canceled)
}

func TestLauncher_WriteTimeoutClosesStdin(t *testing.T) {
	proc, _ := launchHelper(t, &config.Options{
		Command: testutil.HelperWorkerCommand(),
		Env:     testutil.HelperDeafWorkerEnv(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := proc.Write(ctx, bytes.Repeat([]byte("x"), 2<<20))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	err = proc.Write(context.Background(), []byte(`{"n":1}`))
	require.ErrorIs(t, err, errors.ErrStdinClosed)
}

func TestLauncher_KillDoesNotWaitForBlockedWrite(t *testing.T) {
	proc, out := launchHelper(t, &config.Options{
		Command: testutil.HelperWorkerCommand(),
		Env:     testutil.HelperDeafWorkerEnv(),
	})

	writeErr := make(chan error, 1)

	go func() {
		writeErr <- proc.Write(context.Background(), bytes.Repeat([]byte("x"), 2<<20))
	}()

	// Give the write time to fill the pipe.
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	require.NoError(t, proc.Kill())
	require.Less(t, time.Since(start), time.Second)

	require.ErrorIs(t, out.exit(t), errors.ErrBridgeStopped)

	select {
	case err := <-writeErr:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("blocked write did not return after kill")
	}
}

func TestLauncher_CommandNotFound(t *testing.T) {
	_, err := NewLauncher(nil, &config.Options{
		Command: "workerbridge-definitely-missing-binary",
	}).Launch(context.Background(), config.Hooks{})

	notFound, ok := stderrors.AsType[*errors.WorkerNotFoundError](err)
	require.True(t, ok, "expected WorkerNotFoundError, got %T", err)
	require.Equal(t, []string{"$PATH/workerbridge-definitely-missing-binary"}, notFound.SearchedPaths)
}

func TestLauncher_ScriptNotFound(t *testing.T) {
	opts := helperOptions()
	opts.Script = filepath.Join(t.TempDir(), "missing.py")

	_, err := NewLauncher(nil, opts).Launch(context.Background(), config.Hooks{})

	_, ok := stderrors.AsType[*errors.WorkerNotFoundError](err)
	require.True(t, ok, "expected WorkerNotFoundError, got %T", err)
}

func TestLauncher_SpawnFailure(t *testing.T) {
	dir := t.TempDir()
	notExecutable := filepath.Join(dir, "worker.sh")

	require.NoError(t, os.WriteFile(notExecutable, []byte("#!/bin/sh\n"), 0o600))

	_, err := NewLauncher(nil, &config.Options{Command: notExecutable}).Launch(context.Background(), config.Hooks{})

	spawnErr, ok := stderrors.AsType[*errors.SpawnError](err)
	require.True(t, ok, "expected SpawnError, got %T", err)
	require.Equal(t, notExecutable, spawnErr.Command)
}

func TestWorker_StderrTailIsBounded(t *testing.T) {
	w := &Worker{log: slog.New(slog.NewTextHandler(io.Discard, nil))}

	var input bytes.Buffer
	for range 2000 {
		input.WriteString(strings.Repeat("e", 100) + "\n")
	}

	require.NoError(t, w.pumpStderr(&input))
	require.LessOrEqual(t, len(w.Stderr()), maxStderrTail+101)
}
