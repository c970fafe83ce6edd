package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPending_ResolveOnce(t *testing.T) {
	p := NewPending(time.Second)

	p.Resolve([]byte(`{"n":1}`), map[string]any{"n": float64(1)})
	p.Reject(errors.New("ignored"))
	p.Resolve([]byte(`{"n":2}`), nil)

	require.True(t, p.Settled())

	res := <-p.Done()
	require.NoError(t, res.Err)
	require.JSONEq(t, `{"n":1}`, string(res.Raw))

	select {
	case extra := <-p.Done():
		t.Fatalf("unexpected second result: %+v", extra)
	default:
	}
}

func TestPending_UniqueIDs(t *testing.T) {
	seen := make(map[string]struct{}, 100)

	for range 100 {
		p := NewPending(0)
		_, dup := seen[p.ID]
		require.False(t, dup)

		seen[p.ID] = struct{}{}
	}
}

func TestPending_ArmFires(t *testing.T) {
	p := NewPending(10 * time.Millisecond)
	fired := make(chan struct{})

	p.Arm(func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestPending_SettleStopsTimer(t *testing.T) {
	p := NewPending(20 * time.Millisecond)
	fired := make(chan struct{}, 1)

	p.Arm(func() { fired <- struct{}{} })
	p.Reject(errors.New("done early"))

	select {
	case <-fired:
		t.Fatal("timer fired after settle")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPending_ZeroTimeoutArmsNothing(t *testing.T) {
	p := NewPending(0)

	p.Arm(func() { t.Error("timer should not be armed") })

	time.Sleep(10 * time.Millisecond)
	require.False(t, p.Settled())
}
