// Package chain orchestrates a user's session with the predictor
// contract: wallet connection, network validation, read-only inference
// and gas-estimated mint transactions.
//
// Calls are fail-closed and never retried. A mint is only ever issued
// while the session is Connected and the wallet's network matches the
// configured endpoint; every failure leaves the session in the state it
// was in before the call.
package chain

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/blockberries/digitchain"
	"github.com/blockberries/digitchain/types"
)

// State is the session state. It is one of Disconnected, Connecting or
// Connected; switch on the concrete type.
type State interface {
	isState()
	String() string
}

// Disconnected is the initial state. No signer is held.
type Disconnected struct{}

// Connecting is held while the wallet is asked for an account and both
// networks are looked up.
type Connecting struct{}

// Connected holds the signer granted by the wallet together with the
// networks observed when the connection was established.
type Connected struct {
	Account  common.Address
	Wallet   types.NetworkIdentity
	Endpoint types.NetworkIdentity
	// NetworkMatches gates minting. Inference is allowed either way.
	NetworkMatches bool

	signer digitchain.Signer
}

func (Disconnected) isState() {}
func (Connecting) isState()   {}
func (Connected) isState()    {}

func (Disconnected) String() string { return types.StateDisconnected }
func (Connecting) String() string   { return types.StateConnecting }
func (Connected) String() string    { return types.StateConnected }

// Signer returns the signing handle held by the connected state.
func (c Connected) Signer() digitchain.Signer { return c.signer }
