package testutil

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/wagiedev/workerbridge/internal/config"
	"github.com/wagiedev/workerbridge/internal/errors"
)

// Compile-time verification that the fakes implement the config interfaces.
var (
	_ config.Launcher = (*FakeLauncher)(nil)
	_ config.Process  = (*FakeProcess)(nil)
)

// errKilled is the exit cause reported by FakeProcess.Kill.
var errKilled = stderrors.New("signal: killed")

// FakeLauncher hands out FakeProcess values and records every launch attempt.
type FakeLauncher struct {
	mu       sync.Mutex
	attempts []time.Time
	failNext int
	failErr  error
	nextPid  int
	procs    []*FakeProcess
	spawned  chan *FakeProcess
}

// NewFakeLauncher creates a launcher whose launches succeed by default.
func NewFakeLauncher() *FakeLauncher {
	return &FakeLauncher{
		nextPid: 1000,
		spawned: make(chan *FakeProcess, 64),
	}
}

// FailNext makes the next n launches fail with err.
func (l *FakeLauncher) FailNext(n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.failNext = n
	l.failErr = err
}

// Launch implements config.Launcher.
func (l *FakeLauncher) Launch(_ context.Context, hooks config.Hooks) (config.Process, error) {
	l.mu.Lock()

	l.attempts = append(l.attempts, time.Now())

	if l.failNext > 0 {
		l.failNext--
		err := l.failErr

		l.mu.Unlock()

		return nil, err
	}

	l.nextPid++

	proc := &FakeProcess{
		pid:     l.nextPid,
		hooks:   hooks,
		written: make(chan []byte, 256),
		dead:    make(chan struct{}),
	}
	l.procs = append(l.procs, proc)

	l.mu.Unlock()

	l.spawned <- proc

	return proc, nil
}

// Attempts returns the time of every launch attempt, failed ones included.
func (l *FakeLauncher) Attempts() []time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]time.Time(nil), l.attempts...)
}

// Processes returns every process launched so far.
func (l *FakeLauncher) Processes() []*FakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]*FakeProcess(nil), l.procs...)
}

// Next waits for the next successful launch.
func (l *FakeLauncher) Next(tb testing.TB) *FakeProcess {
	tb.Helper()

	select {
	case proc := <-l.spawned:
		return proc
	case <-time.After(5 * time.Second):
		tb.Fatalf("timed out waiting for worker launch")

		return nil
	}
}

// FakeProcess is an in-memory worker.
type FakeProcess struct {
	pid     int
	hooks   config.Hooks
	written chan []byte
	dead    chan struct{}

	mu          sync.Mutex
	writes      [][]byte
	writeErr    error
	blockWrites bool
	blocked     int
	closed      bool
	killed      bool
	exitOnce    sync.Once
}

// Pid implements config.Process.
func (p *FakeProcess) Pid() int { return p.pid }

// Write implements config.Process. With BlockWrites it behaves like a
// worker that never reads stdin: the write blocks until ctx is done, which
// closes stdin, or the process exits.
func (p *FakeProcess) Write(ctx context.Context, data []byte) error {
	p.mu.Lock()

	if p.blockWrites && !p.closed {
		p.blocked++
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.closed = true
			p.mu.Unlock()

			return ctx.Err()
		case <-p.dead:
			return errors.ErrStdinClosed
		}
	}

	defer p.mu.Unlock()

	if p.writeErr != nil {
		return p.writeErr
	}

	if p.closed {
		return errors.ErrStdinClosed
	}

	line := append([]byte(nil), data...)
	p.writes = append(p.writes, line)

	select {
	case p.written <- line:
	default:
	}

	return nil
}

// CloseInput implements config.Process.
func (p *FakeProcess) CloseInput() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	return nil
}

// Kill implements config.Process. The exit hook fires once, as it does
// for a real process.
func (p *FakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()

	p.Exit(&errors.ProcessExitedError{ExitCode: -1, Err: errKilled})

	return nil
}

// FailWrites makes every subsequent Write return err.
func (p *FakeProcess) FailWrites(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.writeErr = err
}

// Respond answers every line written from now on with reply(line), after
// delay, until the process exits. Do not combine it with NextWrite.
func (p *FakeProcess) Respond(delay time.Duration, reply func(line []byte) string) {
	go func() {
		for {
			select {
			case line := <-p.written:
				time.Sleep(delay)
				p.Emit(reply(line))
			case <-p.dead:
				return
			}
		}
	}()
}

// BlockWrites makes every subsequent Write block.
func (p *FakeProcess) BlockWrites() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.blockWrites = true
}

// BlockedWrites returns how many writes have blocked so far.
func (p *FakeProcess) BlockedWrites() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.blocked
}

// Emit delivers chunk as worker stdout.
func (p *FakeProcess) Emit(chunk string) {
	p.hooks.OnOutput([]byte(chunk))
}

// Exit reports the process as exited. Only the first call has an effect.
func (p *FakeProcess) Exit(err error) {
	p.exitOnce.Do(func() {
		p.hooks.OnExit(err)
		close(p.dead)
	})
}

// Hooks returns the hooks the process was launched with, for simulating
// late events from a dead process.
func (p *FakeProcess) Hooks() config.Hooks { return p.hooks }

// Killed reports whether Kill was called.
func (p *FakeProcess) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.killed
}

// Writes returns every line written so far.
func (p *FakeProcess) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([][]byte(nil), p.writes...)
}

// NextWrite waits for the next line written to the process.
func (p *FakeProcess) NextWrite(tb testing.TB) []byte {
	tb.Helper()

	select {
	case line := <-p.written:
		return line
	case <-time.After(5 * time.Second):
		tb.Fatalf("timed out waiting for write to worker %d", p.pid)

		return nil
	}
}
