package types

// Session state names as reported in SessionStatus.State.
const (
	StateDisconnected = "Disconnected"
	StateConnecting   = "Connecting"
	StateConnected    = "Connected"
)

// SessionStatus is a snapshot of a session.
type SessionStatus struct {
	State string `cramberry:"1"`
	// Account is the hex address of the signer. Empty unless Connected.
	Account  string          `cramberry:"2"`
	Wallet   NetworkIdentity `cramberry:"3"`
	Endpoint NetworkIdentity `cramberry:"4"`
	// NetworkMatches gates minting.
	NetworkMatches bool `cramberry:"5"`
	// Deployment is the name of the configured deployment.
	Deployment string `cramberry:"6"`
	// Results of the last successful calls. Nil/empty after Clear.
	LastLabel    *uint64 `cramberry:"7"`
	LastMintedID string  `cramberry:"8"`
}

// Connected reports whether the session holds a signer.
func (s SessionStatus) Connected() bool { return s.State == StateConnected }

// CanMint reports whether a mint would pass the network guard.
func (s SessionStatus) CanMint() bool { return s.Connected() && s.NetworkMatches }
