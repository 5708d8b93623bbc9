package chain

import (
	"sync"
)

// SessionGuard serializes the remote operations of one session and
// holds its state.
//
// Remote operations (connect, inference, mint, disconnect) run one at
// a time; a second operation blocks until the first returns. State
// reads never block on an in-flight operation, so Status and Clear stay
// responsive while a transaction is being mined.
type SessionGuard struct {
	// Held for the whole duration of a remote operation.
	seqMu sync.Mutex

	mu    sync.Mutex
	state State
}

// NewSessionGuard creates a guard in the Disconnected state.
func NewSessionGuard() *SessionGuard {
	return &SessionGuard{state: Disconnected{}}
}

// State returns the current state.
func (g *SessionGuard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// AcquireConnect waits for in-flight operations, transitions to
// Connecting and returns the state to restore on failure.
func (g *SessionGuard) AcquireConnect() (prev State) {
	g.seqMu.Lock()
	g.mu.Lock()
	prev = g.state
	g.state = Connecting{}
	g.mu.Unlock()
	return prev
}

// CompleteConnect transitions Connecting → Connected.
func (g *SessionGuard) CompleteConnect(c Connected) {
	g.set(c)
	g.seqMu.Unlock()
}

// FailConnect restores the state that preceded AcquireConnect.
func (g *SessionGuard) FailConnect(prev State) {
	g.set(prev)
	g.seqMu.Unlock()
}

// AcquireCall waits for in-flight operations and returns the state the
// call runs against. The state does not change during a call.
func (g *SessionGuard) AcquireCall() State {
	g.seqMu.Lock()
	return g.State()
}

// ReleaseCall ends a call started with AcquireCall.
func (g *SessionGuard) ReleaseCall() {
	g.seqMu.Unlock()
}

// Disconnect waits for in-flight operations and transitions to
// Disconnected.
func (g *SessionGuard) Disconnect() {
	g.seqMu.Lock()
	g.set(Disconnected{})
	g.seqMu.Unlock()
}

func (g *SessionGuard) set(s State) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}
