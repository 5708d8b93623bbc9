// Package digitchain classifies hand-drawn digits with an on-chain
// predictor contract and mints new predictor instances from uploaded
// model weights.
//
// The package defines the collaborators the core is built against. The
// drawing surface ([Capturer]) and the wallet ([Wallet], [Signer]) are
// provided by the host; the chain is reached through [Backend], which
// *ethclient.Client satisfies. [Connection] is the transport-agnostic
// surface a presentation layer drives: package local serves it in
// process and package grpc serves it over the network.
package digitchain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/blockberries/digitchain/types"
)

// Capturer snapshots a drawing surface.
//
// Each call must return a fresh buffer; the caller takes ownership and
// the encoder never mutates it.
type Capturer interface {
	Capture() (types.PixelBuffer, error)
}

// Backend is the subset of the Ethereum JSON-RPC API used by a session.
//
// Both the statically configured endpoint and the wallet's provider are
// Backends. *ethclient.Client satisfies this interface, and so does any
// bind.DeployBackend plus the call/fee/transaction methods below.
type Backend interface {
	// ChainID identifies the network the backend is attached to.
	ChainID(ctx context.Context) (*big.Int, error)

	// CallContract executes a read-only call. A nil blockNumber means
	// the latest block.
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)

	// HeaderByNumber returns a block header; nil means the latest.
	// A non-nil BaseFee selects EIP-1559 fee parameters.
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)

	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)

	// EstimateGas fails when the call would revert.
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)

	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error

	// TransactionReceipt returns ethereum.NotFound until the
	// transaction is mined.
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// Signer is the user-held signing identity handed out by a wallet.
// A session reuses one Signer for every mint until it reconnects.
type Signer interface {
	Address() common.Address
	SignTx(tx *gethtypes.Transaction, chainID *big.Int) (*gethtypes.Transaction, error)
}

// Wallet is the host-provided account manager.
//
// The wallet's Backend points at whatever network the user currently
// has selected, which may differ from the configured endpoint.
type Wallet interface {
	// Signer asks the user for an account. It may block on user
	// interaction.
	Signer(ctx context.Context) (Signer, error)

	// Network reports the wallet's currently selected network.
	Network(ctx context.Context) (types.NetworkIdentity, error)

	// Backend is the wallet's own provider.
	Backend() Backend
}

// Connection is the surface a presentation layer drives. One
// Connection corresponds to one user session.
//
// All methods except Clear, Status and Close issue remote calls and are
// serialized: a second call waits for the first one to finish. Failures
// are returned as *Error and leave the session in its pre-call state.
type Connection interface {
	// Connect acquires a signer and validates the wallet network
	// against the configured endpoint.
	Connect(ctx context.Context) (types.SessionStatus, error)

	// Disconnect drops the signer. Later mints fail with NotConnected.
	Disconnect(ctx context.Context) error

	// Status returns a snapshot of the session.
	Status(ctx context.Context) (types.SessionStatus, error)

	// Predict encodes the buffer with the deployment's encoder mode
	// and runs a read-only inference call against predictorID.
	Predict(ctx context.Context, pixels types.PixelBuffer, predictorID uint64) (types.Prediction, error)

	// Mint decodes an uploaded parameter document and mints a new
	// predictor. Malformed documents never reach the network.
	Mint(ctx context.Context, doc types.ParamsDocument) (types.MintReceipt, error)

	// Clear forgets the last prediction and the last minted id. It does
	// not cancel an in-flight call.
	Clear(ctx context.Context) error

	// Close releases transport resources.
	Close() error
}
