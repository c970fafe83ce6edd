// Package supervisor keeps exactly one worker process alive.
//
// The Supervisor is a small state machine:
//
//	New ──Start──▶ Starting ──spawned──▶ Ready
//	                  ▲  │                  │
//	          backoff │  │spawn failure     │exit
//	                  │  ▼                  ▼
//	                Crashed ◀───────────────┘
//
//	any state ──Stop──▶ Stopped (terminal)
//
// On every exit of the live worker the registered crash callback runs before
// the restart timer is armed, so callers can fail in-flight work that will
// never be answered. Restarts use a fixed backoff and continue until Stop.
// Each spawn gets a new generation number; events from older generations are
// dropped because their handles are never reused.
package supervisor
