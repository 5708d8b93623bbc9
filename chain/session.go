package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/blockberries/digitchain"
	"github.com/blockberries/digitchain/config"
	"github.com/blockberries/digitchain/contract"
	"github.com/blockberries/digitchain/encode"
	"github.com/blockberries/digitchain/params"
	"github.com/blockberries/digitchain/types"
)

// Session drives one user's interaction with a predictor deployment.
//
// Remote operations are serialized by a SessionGuard. Nothing is
// retried and no deadline is imposed beyond the caller's context.
type Session struct {
	deployment config.Deployment
	contract   common.Address
	mode       encode.Mode
	endpoint   digitchain.Backend
	wallet     digitchain.Wallet
	guard      *SessionGuard
	log        log.Logger
	now        func() time.Time

	closeOnce sync.Once

	// Last results, reset by Clear.
	mu        sync.Mutex
	lastLabel *uint64
	lastMint  *big.Int
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. The default is log.Root().
func WithLogger(l log.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithClock replaces time.Now for elapsed-time measurement.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession creates a Disconnected session for dep. endpoint is the
// backend for the configured RPC URL. wallet may be nil, in which case
// the session can only run inference.
func NewSession(dep config.Deployment, endpoint digitchain.Backend, wallet digitchain.Wallet, opts ...Option) (*Session, error) {
	if err := dep.Validate(); err != nil {
		return nil, err
	}
	if endpoint == nil {
		return nil, errors.New("chain: nil endpoint backend")
	}
	mode, err := encode.ModeForSize(dep.Size())
	if err != nil {
		return nil, err
	}
	s := &Session{
		deployment: dep,
		contract:   dep.ContractAddress(),
		mode:       mode,
		endpoint:   endpoint,
		wallet:     wallet,
		guard:      NewSessionGuard(),
		log:        log.Root(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("deployment", dep.Name)
	return s, nil
}

// Mode returns the encoder mode of the deployment.
func (s *Session) Mode() encode.Mode { return s.mode }

// State returns the current session state.
func (s *Session) State() State { return s.guard.State() }

// Connect asks the wallet for a signer and compares the wallet's
// network with the configured endpoint. Both chain ids are fetched
// fresh on every connect. On failure the previous state is restored.
func (s *Session) Connect(ctx context.Context) (types.SessionStatus, error) {
	prev := s.guard.AcquireConnect()

	c, err := s.connect(ctx)
	if err != nil {
		s.guard.FailConnect(prev)
		s.log.Debug("Connect failed", "err", err)
		return s.Status(), err
	}
	s.guard.CompleteConnect(c)

	if c.NetworkMatches {
		s.log.Info("Wallet connected", "account", c.Account, "network", c.Wallet)
	} else {
		s.log.Warn("Wallet network differs from endpoint, minting disabled",
			"account", c.Account, "wallet", c.Wallet, "endpoint", c.Endpoint)
	}
	return s.Status(), nil
}

func (s *Session) connect(ctx context.Context) (Connected, error) {
	const op = "connect"
	if s.wallet == nil {
		return Connected{}, digitchain.Errorf(digitchain.KindRemoteCallFailed, op, "no wallet available")
	}
	signer, err := s.wallet.Signer(ctx)
	if err != nil {
		return Connected{}, digitchain.NewError(digitchain.KindRemoteCallFailed, op, err)
	}
	walletNet, err := s.wallet.Network(ctx)
	if err != nil {
		return Connected{}, digitchain.NewError(digitchain.KindRemoteCallFailed, "wallet network", err)
	}
	id, err := s.endpoint.ChainID(ctx)
	if err != nil {
		return Connected{}, digitchain.NewError(digitchain.KindRemoteCallFailed, "endpoint network", err)
	}
	if !id.IsUint64() {
		return Connected{}, digitchain.Errorf(digitchain.KindRemoteCallFailed, "endpoint network", "chain id %s out of range", id)
	}
	endpointNet := types.NetworkIdentity{ChainID: id.Uint64(), Name: s.deployment.Name}
	return Connected{
		Account:        signer.Address(),
		Wallet:         walletNet,
		Endpoint:       endpointNet,
		NetworkMatches: walletNet.SameChain(endpointNet),
		signer:         signer,
	}, nil
}

// Disconnect drops the signer. It waits for an in-flight call.
func (s *Session) Disconnect() {
	s.guard.Disconnect()
	s.log.Debug("Wallet disconnected")
}

// Close disconnects and releases the session's backends. Backends
// without a Close method, such as a shared in-memory chain, are left
// open. Close waits for an in-flight call and is idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.guard.Disconnect()
		CloseBackend(s.endpoint)
		if s.wallet != nil {
			if b := s.wallet.Backend(); b != nil && b != s.endpoint {
				CloseBackend(b)
			}
		}
		s.log.Debug("Session closed")
	})
}

// Predict encodes pixels with the deployment's mode and runs inference.
// Encoding errors are returned before any remote call.
func (s *Session) Predict(ctx context.Context, pixels types.PixelBuffer, predictorID uint64) (types.Prediction, error) {
	tensor, err := encode.Encode(pixels, s.mode)
	if err != nil {
		return types.Prediction{}, err
	}
	return s.RunInference(ctx, tensor, predictorID)
}

// RunInference issues a read-only call classifying tensor with the
// predictor predictorID. The wallet's backend is used while connected
// to the matching network, the configured endpoint otherwise.
func (s *Session) RunInference(ctx context.Context, tensor types.Tensor, predictorID uint64) (types.Prediction, error) {
	const op = "inference"
	method, data, err := contract.PackInference(predictorID, tensor)
	if err != nil {
		return types.Prediction{}, digitchain.NewError(digitchain.KindMalformedInput, op, err)
	}

	st := s.guard.AcquireCall()
	defer s.guard.ReleaseCall()

	backend, via := s.endpoint, "endpoint"
	if c, ok := st.(Connected); ok && c.NetworkMatches {
		backend, via = s.wallet.Backend(), "wallet"
	}

	start := s.now()
	out, err := backend.CallContract(ctx, ethereum.CallMsg{To: &s.contract, Data: data}, nil)
	if err != nil {
		return types.Prediction{}, digitchain.NewError(digitchain.KindRemoteCallFailed, op, err)
	}
	elapsed := s.now().Sub(start)

	raw, err := contract.UnpackLabel(method, out)
	if err != nil {
		return types.Prediction{}, digitchain.NewError(digitchain.KindRemoteCallFailed, op, err)
	}
	if !raw.IsUint64() || raw.Uint64() > 9 {
		return types.Prediction{}, digitchain.Errorf(digitchain.KindRemoteCallFailed, op, "label %s is not a digit", raw)
	}
	label := raw.Uint64()

	s.mu.Lock()
	s.lastLabel = &label
	s.mu.Unlock()

	s.log.Debug("Inference", "predictor", predictorID, "method", method, "via", via, "label", label, "elapsed", elapsed)
	return types.Prediction{
		Label:         label,
		Tensor:        tensor,
		PredictorID:   predictorID,
		ElapsedMillis: elapsed.Milliseconds(),
	}, nil
}

// MintDocument decodes an uploaded parameter file and mints it.
func (s *Session) MintDocument(ctx context.Context, doc types.ParamsDocument) (types.MintReceipt, error) {
	p, err := params.Decode(doc)
	if err != nil {
		return types.MintReceipt{}, err
	}
	return s.MintPredictor(ctx, p)
}

// MintPredictor submits a mint transaction for p through the connected
// wallet and waits for it to be mined.
//
// The session must be Connected on the endpoint's network; otherwise
// the call fails without touching the network. The gas limit is the
// estimate padded by 20%. The minted id is read from the fourth topic
// of the receipt's first log.
func (s *Session) MintPredictor(ctx context.Context, p *params.ModelParameters) (types.MintReceipt, error) {
	st := s.guard.AcquireCall()
	defer s.guard.ReleaseCall()

	c, ok := st.(Connected)
	if !ok {
		return types.MintReceipt{}, digitchain.Errorf(digitchain.KindNotConnected, "mint", "session is %s", st)
	}
	if !c.NetworkMatches {
		return types.MintReceipt{}, digitchain.Errorf(digitchain.KindWrongNetwork, "mint",
			"wallet is on %s, endpoint is %s", c.Wallet, c.Endpoint)
	}
	if p == nil {
		return types.MintReceipt{}, digitchain.Errorf(digitchain.KindMalformedInput, "mint", "nil parameters")
	}
	if err := p.Validate(); err != nil {
		return types.MintReceipt{}, digitchain.NewError(digitchain.KindMalformedInput, "mint", err)
	}
	data, err := contract.PackMint(p)
	if err != nil {
		return types.MintReceipt{}, digitchain.NewError(digitchain.KindMalformedInput, "mint", err)
	}
	digest, err := params.Digest(p)
	if err != nil {
		return types.MintReceipt{}, digitchain.NewError(digitchain.KindMalformedInput, "mint", err)
	}

	receipt, gasLimit, err := s.submit(ctx, c, data)
	if err != nil {
		s.log.Warn("Mint failed", "params", digest, "err", err)
		return types.MintReceipt{}, err
	}

	id, err := contract.MintedID(receipt)
	if err != nil {
		return types.MintReceipt{}, digitchain.NewError(digitchain.KindReceiptMissingEvent, "minted id", err)
	}

	s.mu.Lock()
	s.lastMint = id
	s.mu.Unlock()

	out := types.MintReceipt{
		MintedID:  id.String(),
		TxHash:    receipt.TxHash.Hex(),
		GasLimit:  gasLimit,
		GasUsed:   receipt.GasUsed,
		ParamsCID: digest.String(),
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	s.log.Info("Minted predictor", "id", out.MintedID, "tx", out.TxHash, "block", out.BlockNumber,
		"gas", gasLimit, "params", out.ParamsCID)
	return out, nil
}

// submit runs fee lookup, estimation, signing, broadcast and the wait
// for the receipt on the wallet's backend.
func (s *Session) submit(ctx context.Context, c Connected, data []byte) (*gethtypes.Receipt, uint64, error) {
	backend := s.wallet.Backend()

	fees, err := FetchFees(ctx, backend)
	if err != nil {
		return nil, 0, digitchain.NewError(digitchain.KindRemoteCallFailed, "fee data", err)
	}
	estimate, err := backend.EstimateGas(ctx, fees.CallMsg(c.Account, s.contract, data))
	if err != nil {
		return nil, 0, digitchain.NewError(digitchain.KindEstimationFailed, "estimate gas", err)
	}
	gasLimit := GasLimit(estimate)

	nonce, err := backend.PendingNonceAt(ctx, c.Account)
	if err != nil {
		return nil, 0, digitchain.NewError(digitchain.KindSubmissionFailed, "nonce", err)
	}
	chainID := new(big.Int).SetUint64(c.Endpoint.ChainID)
	signed, err := c.signer.SignTx(fees.Transaction(chainID, nonce, s.contract, gasLimit, data), chainID)
	if err != nil {
		return nil, 0, digitchain.NewError(digitchain.KindSubmissionFailed, "sign", err)
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return nil, 0, digitchain.NewError(digitchain.KindSubmissionFailed, "send", err)
	}
	s.log.Debug("Mint submitted", "tx", signed.Hash(), "nonce", nonce, "estimate", estimate, "gas", gasLimit)

	receipt, err := bind.WaitMined(ctx, backend, signed)
	if err != nil {
		return nil, gasLimit, digitchain.NewError(digitchain.KindRemoteCallFailed, "wait mined", err)
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return nil, gasLimit, digitchain.NewError(digitchain.KindSubmissionFailed, "mint",
			fmt.Errorf("transaction %s reverted", receipt.TxHash.Hex()))
	}
	return receipt, gasLimit, nil
}

// Clear forgets the last label and minted id. It never waits for an
// in-flight call.
func (s *Session) Clear() {
	s.mu.Lock()
	s.lastLabel = nil
	s.lastMint = nil
	s.mu.Unlock()
}

// Status returns a snapshot of the session.
func (s *Session) Status() types.SessionStatus {
	st := s.guard.State()
	out := types.SessionStatus{
		State:      st.String(),
		Deployment: s.deployment.Name,
	}
	if c, ok := st.(Connected); ok {
		out.Account = c.Account.Hex()
		out.Wallet = c.Wallet
		out.Endpoint = c.Endpoint
		out.NetworkMatches = c.NetworkMatches
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastLabel != nil {
		l := *s.lastLabel
		out.LastLabel = &l
	}
	if s.lastMint != nil {
		out.LastMintedID = s.lastMint.String()
	}
	return out
}
