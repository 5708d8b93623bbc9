// Package digitchaintest provides test utilities for digitchain: a
// configurable mock backend and wallet with call counters, pixel and
// receipt fixtures, a connection harness and a compliance suite.
package digitchaintest

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/blockberries/digitchain"
	"github.com/blockberries/digitchain/types"
)

// Compile-time checks.
var (
	_ digitchain.Backend = (*MockBackend)(nil)
	_ digitchain.Wallet  = (*MockWallet)(nil)
	_ digitchain.Signer  = (*MockSigner)(nil)
)

// DefaultChainID is the chain id reported by an unconfigured mock.
const DefaultChainID = 31337

// MockBackend is a configurable Backend. Unconfigured methods return
// defaults that let a mint succeed: an EIP-1559 head, a 100000 gas
// estimate and a receipt carrying a Transfer log for MintedID.
type MockBackend struct {
	mu sync.Mutex

	// Chain is the id returned by ChainID. Zero means DefaultChainID.
	Chain uint64
	// Label is what inference calls return when CallContractFn is nil.
	Label uint64
	// Estimate is the default gas estimate. Zero means 100000.
	Estimate uint64
	// MintedID is the token id carried by the default receipt.
	MintedID uint64
	// Legacy makes the default head carry no base fee.
	Legacy bool

	ChainIDFn            func(context.Context) (*big.Int, error)
	CallContractFn       func(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error)
	HeaderByNumberFn     func(context.Context, *big.Int) (*gethtypes.Header, error)
	SuggestGasPriceFn    func(context.Context) (*big.Int, error)
	SuggestGasTipCapFn   func(context.Context) (*big.Int, error)
	EstimateGasFn        func(context.Context, ethereum.CallMsg) (uint64, error)
	PendingNonceAtFn     func(context.Context, common.Address) (uint64, error)
	SendTransactionFn    func(context.Context, *gethtypes.Transaction) error
	TransactionReceiptFn func(context.Context, common.Hash) (*gethtypes.Receipt, error)

	// Call counters (atomic for concurrent access).
	ChainIDCalls      atomic.Int64
	CallContractCalls atomic.Int64
	HeaderCalls       atomic.Int64
	GasPriceCalls     atomic.Int64
	EstimateGasCalls  atomic.Int64
	NonceCalls        atomic.Int64
	SendCalls         atomic.Int64
	ReceiptCalls      atomic.Int64
	CloseCalls        atomic.Int64

	sent     []*gethtypes.Transaction
	lastCall ethereum.CallMsg
	lastEst  ethereum.CallMsg
}

func (m *MockBackend) ChainID(ctx context.Context) (*big.Int, error) {
	m.ChainIDCalls.Add(1)
	if m.ChainIDFn != nil {
		return m.ChainIDFn(ctx)
	}
	if m.Chain == 0 {
		return big.NewInt(DefaultChainID), nil
	}
	return new(big.Int).SetUint64(m.Chain), nil
}

func (m *MockBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	m.CallContractCalls.Add(1)
	m.mu.Lock()
	m.lastCall = msg
	m.mu.Unlock()
	if m.CallContractFn != nil {
		return m.CallContractFn(ctx, msg, block)
	}
	return LabelOutput(new(big.Int).SetUint64(m.Label)), nil
}

func (m *MockBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error) {
	m.HeaderCalls.Add(1)
	if m.HeaderByNumberFn != nil {
		return m.HeaderByNumberFn(ctx, number)
	}
	h := &gethtypes.Header{Number: big.NewInt(1)}
	if !m.Legacy {
		h.BaseFee = big.NewInt(1_000_000_000)
	}
	return h, nil
}

func (m *MockBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	m.GasPriceCalls.Add(1)
	if m.SuggestGasPriceFn != nil {
		return m.SuggestGasPriceFn(ctx)
	}
	return big.NewInt(2_000_000_000), nil
}

func (m *MockBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	m.GasPriceCalls.Add(1)
	if m.SuggestGasTipCapFn != nil {
		return m.SuggestGasTipCapFn(ctx)
	}
	return big.NewInt(100_000_000), nil
}

func (m *MockBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	m.EstimateGasCalls.Add(1)
	m.mu.Lock()
	m.lastEst = msg
	m.mu.Unlock()
	if m.EstimateGasFn != nil {
		return m.EstimateGasFn(ctx, msg)
	}
	if m.Estimate == 0 {
		return 100_000, nil
	}
	return m.Estimate, nil
}

func (m *MockBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	m.NonceCalls.Add(1)
	if m.PendingNonceAtFn != nil {
		return m.PendingNonceAtFn(ctx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.sent)), nil
}

func (m *MockBackend) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	m.SendCalls.Add(1)
	if m.SendTransactionFn != nil {
		if err := m.SendTransactionFn(ctx, tx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.sent = append(m.sent, tx)
	m.mu.Unlock()
	return nil
}

func (m *MockBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	m.ReceiptCalls.Add(1)
	if m.TransactionReceiptFn != nil {
		return m.TransactionReceiptFn(ctx, hash)
	}
	return TransferReceipt(hash, new(big.Int).SetUint64(m.MintedID)), nil
}

// Close records that the owner released the backend.
func (m *MockBackend) Close() { m.CloseCalls.Add(1) }

func (m *MockBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

// Sent returns the transactions accepted by SendTransaction.
func (m *MockBackend) Sent() []*gethtypes.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*gethtypes.Transaction(nil), m.sent...)
}

// LastCall returns the message of the most recent CallContract.
func (m *MockBackend) LastCall() ethereum.CallMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCall
}

// LastEstimate returns the message of the most recent EstimateGas.
func (m *MockBackend) LastEstimate() ethereum.CallMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastEst
}

// SubmitCalls is the number of fee, estimate, nonce and send calls, the
// calls a refused mint must never make.
func (m *MockBackend) SubmitCalls() int64 {
	return m.HeaderCalls.Load() + m.GasPriceCalls.Load() + m.EstimateGasCalls.Load() +
		m.NonceCalls.Load() + m.SendCalls.Load()
}

// MockWallet is a configurable Wallet. Its network is the chain id of
// its Backend unless NetworkFn is set.
type MockWallet struct {
	// Provider is returned by Backend.
	Provider *MockBackend

	SignerFn  func(context.Context) (digitchain.Signer, error)
	NetworkFn func(context.Context) (types.NetworkIdentity, error)

	SignerCalls  atomic.Int64
	NetworkCalls atomic.Int64

	once   sync.Once
	signer *MockSigner
}

// NewMockWallet creates a wallet on a mock backend for chainID.
func NewMockWallet(chainID uint64) *MockWallet {
	return &MockWallet{Provider: &MockBackend{Chain: chainID}}
}

func (w *MockWallet) Signer(ctx context.Context) (digitchain.Signer, error) {
	w.SignerCalls.Add(1)
	if w.SignerFn != nil {
		return w.SignerFn(ctx)
	}
	return w.DefaultSigner(), nil
}

// DefaultSigner returns the signer handed out when SignerFn is nil.
func (w *MockWallet) DefaultSigner() *MockSigner {
	w.once.Do(func() { w.signer = NewMockSigner() })
	return w.signer
}

func (w *MockWallet) Network(ctx context.Context) (types.NetworkIdentity, error) {
	w.NetworkCalls.Add(1)
	if w.NetworkFn != nil {
		return w.NetworkFn(ctx)
	}
	id, err := w.Provider.ChainID(ctx)
	if err != nil {
		return types.NetworkIdentity{}, err
	}
	return types.NetworkIdentity{ChainID: id.Uint64(), Name: "mock"}, nil
}

func (w *MockWallet) Backend() digitchain.Backend { return w.Provider }

// MockSigner signs with a freshly generated key.
type MockSigner struct {
	key *ecdsa.PrivateKey

	SignTxFn func(*gethtypes.Transaction, *big.Int) (*gethtypes.Transaction, error)

	SignCalls atomic.Int64
}

// NewMockSigner generates a signing key.
func NewMockSigner() *MockSigner {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return &MockSigner{key: key}
}

func (s *MockSigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

func (s *MockSigner) SignTx(tx *gethtypes.Transaction, chainID *big.Int) (*gethtypes.Transaction, error) {
	s.SignCalls.Add(1)
	if s.SignTxFn != nil {
		return s.SignTxFn(tx, chainID)
	}
	return gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(chainID), s.key)
}
