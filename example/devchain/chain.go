// Package devchain implements an in-memory development chain hosting a
// single predictor contract. It serves the same JSON-RPC subset as a
// real node so sessions, the gRPC server and the CLI can run end to end
// without one.
//
// Contract behavior:
//   - inference / predictDigit: deterministic label derived from the
//     tensor and the predictor's parameters; unknown ids revert.
//   - mint: validates the six parameter arrays, assigns the next id and
//     emits Transfer(0x0, sender, id).
//
// Blocks are mined instantly, one transaction per block, with a fixed
// EIP-1559 base fee.
package devchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/blockberries/digitchain"
	"github.com/blockberries/digitchain/chain"
	"github.com/blockberries/digitchain/config"
)

// Compile-time interface check.
var _ digitchain.Backend = (*Chain)(nil)

const (
	DefaultChainID = 31337
	// GenesisPredictor is registered when the chain is created.
	GenesisPredictor = 0

	blockGasLimit = 30_000_000
	txGas         = 21_000
	mintGas       = 50_000
	zeroByteGas   = 4
	dataByteGas   = 16
)

// DefaultContract is the address the predictor contract lives at unless
// WithContract is given. It is the first contract a hardhat or anvil
// account deploys.
var DefaultContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

var (
	baseFee = big.NewInt(1_000_000_000)
	tipCap  = big.NewInt(1_000_000_000)

	// Runtime code is irrelevant; it only has to be non-empty.
	contractCode = []byte{0x60, 0x80, 0x60, 0x40, 0x52}
)

// Well-known development keys (hardhat / anvil accounts 0..2).
var devKeys = []string{
	"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
}

// Chain is an in-memory chain. Safe for concurrent use.
type Chain struct {
	chainID  *big.Int
	contract common.Address
	signer   gethtypes.Signer
	log      log.Logger

	mu         sync.Mutex
	height     uint64
	nonces     map[common.Address]uint64
	predictors map[uint64]predictor
	nextID     uint64
	receipts   map[common.Hash]*gethtypes.Receipt
}

// Option configures a Chain.
type Option func(*Chain)

// WithChainID sets the chain id. The default is DefaultChainID.
func WithChainID(id uint64) Option {
	return func(c *Chain) { c.chainID = new(big.Int).SetUint64(id) }
}

// WithContract sets the predictor contract address.
func WithContract(addr common.Address) Option {
	return func(c *Chain) { c.contract = addr }
}

// WithLogger sets the logger. The default is log.Root().
func WithLogger(l log.Logger) Option {
	return func(c *Chain) { c.log = l }
}

// New creates a chain with the genesis predictor registered.
func New(opts ...Option) *Chain {
	c := &Chain{
		chainID:    big.NewInt(DefaultChainID),
		contract:   DefaultContract,
		log:        log.Root(),
		nonces:     make(map[common.Address]uint64),
		predictors: make(map[uint64]predictor),
		nextID:     GenesisPredictor + 1,
		receipts:   make(map[common.Hash]*gethtypes.Receipt),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.signer = gethtypes.LatestSignerForChainID(c.chainID)
	c.predictors[GenesisPredictor] = predictor{}
	return c
}

// Deployment describes the chain's contract as a config deployment.
func (c *Chain) Deployment(name string, inputSize int) config.Deployment {
	return config.Deployment{
		Name:      name,
		Endpoint:  "devchain://" + name,
		Address:   c.contract.Hex(),
		InputSize: inputSize,
	}
}

// Wallet returns a key wallet for development account index, attached
// to this chain.
func (c *Chain) Wallet(index int) (*chain.KeyWallet, error) {
	if index < 0 || index >= len(devKeys) {
		return nil, fmt.Errorf("devchain: no development account %d", index)
	}
	return chain.NewKeyWallet(devKeys[index], c)
}

// TxCount returns the number of transactions included so far.
func (c *Chain) TxCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.receipts)
}

// Predictors returns the number of registered predictors.
func (c *Chain) Predictors() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.predictors)
}

func (c *Chain) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.chainID), nil
}

func (c *Chain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || *msg.To != c.contract {
		// Calls to accounts without code succeed with empty output.
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view(msg.Data)
}

func (c *Chain) HeaderByNumber(_ context.Context, number *big.Int) (*gethtypes.Header, error) {
	c.mu.Lock()
	height := c.height
	c.mu.Unlock()
	if number != nil {
		if !number.IsUint64() || number.Uint64() > height {
			return nil, ethereum.NotFound
		}
		height = number.Uint64()
	}
	return &gethtypes.Header{
		Number:   new(big.Int).SetUint64(height),
		GasLimit: blockGasLimit,
		BaseFee:  new(big.Int).Set(baseFee),
		Time:     height * 2,
	}, nil
}

func (c *Chain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Add(baseFee, tipCap), nil
}

func (c *Chain) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return new(big.Int).Set(tipCap), nil
}

func (c *Chain) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	gas := intrinsicGas(msg.Data)
	if msg.To == nil || *msg.To != c.contract {
		return gas, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if isMint(msg.Data) {
		if _, err := decodeMint(msg.Data); err != nil {
			return 0, err
		}
		return gas + mintGas, nil
	}
	if _, err := c.view(msg.Data); err != nil {
		return 0, err
	}
	return gas, nil
}

func (c *Chain) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonces[account], nil
}

// SendTransaction validates and immediately mines tx. A transaction
// that runs out of gas or reverts is still included with a failed
// receipt, as on a real chain.
func (c *Chain) SendTransaction(_ context.Context, tx *gethtypes.Transaction) error {
	if tx.ChainId().Cmp(c.chainID) != 0 {
		return fmt.Errorf("devchain: invalid chain id %s, want %s", tx.ChainId(), c.chainID)
	}
	from, err := gethtypes.Sender(c.signer, tx)
	if err != nil {
		return fmt.Errorf("devchain: invalid sender: %w", err)
	}
	if tx.GasFeeCap().Cmp(baseFee) < 0 {
		return fmt.Errorf("devchain: max fee per gas %s below base fee %s", tx.GasFeeCap(), baseFee)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.receipts[tx.Hash()]; ok {
		return errors.New("devchain: already known")
	}
	if want := c.nonces[from]; tx.Nonce() != want {
		return fmt.Errorf("devchain: nonce %d for %s, want %d", tx.Nonce(), from.Hex(), want)
	}
	if tx.Gas() < intrinsicGas(tx.Data()) {
		return fmt.Errorf("devchain: intrinsic gas too low: have %d", tx.Gas())
	}

	c.nonces[from]++
	c.height++
	receipt := &gethtypes.Receipt{
		Type:              tx.Type(),
		TxHash:            tx.Hash(),
		BlockNumber:       new(big.Int).SetUint64(c.height),
		GasUsed:           intrinsicGas(tx.Data()),
		CumulativeGasUsed: intrinsicGas(tx.Data()),
		Status:            gethtypes.ReceiptStatusSuccessful,
		EffectiveGasPrice: new(big.Int).Add(baseFee, minBig(tx.GasTipCap(), new(big.Int).Sub(tx.GasFeeCap(), baseFee))),
	}
	if tx.To() != nil && *tx.To() == c.contract {
		c.execute(receipt, from, tx)
	}
	receipt.Bloom = gethtypes.CreateBloom(gethtypes.Receipts{receipt})
	c.receipts[tx.Hash()] = receipt

	c.log.Debug("Mined transaction", "hash", tx.Hash(), "from", from, "block", c.height,
		"status", receipt.Status, "gas", receipt.GasUsed)
	return nil
}

func (c *Chain) TransactionReceipt(_ context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (c *Chain) CodeAt(_ context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	if account == c.contract {
		return contractCode, nil
	}
	return nil, nil
}

// execute runs a contract call inside a transaction. Callers hold mu.
func (c *Chain) execute(receipt *gethtypes.Receipt, from common.Address, tx *gethtypes.Transaction) {
	if !isMint(tx.Data()) {
		// View calls in a transaction have no effect.
		if _, err := c.view(tx.Data()); err != nil {
			receipt.Status = gethtypes.ReceiptStatusFailed
		}
		return
	}
	need := intrinsicGas(tx.Data()) + mintGas
	if tx.Gas() < need {
		receipt.Status = gethtypes.ReceiptStatusFailed
		receipt.GasUsed = tx.Gas()
		receipt.CumulativeGasUsed = tx.Gas()
		return
	}
	p, err := decodeMint(tx.Data())
	if err != nil {
		receipt.Status = gethtypes.ReceiptStatusFailed
		receipt.GasUsed = need
		receipt.CumulativeGasUsed = need
		return
	}

	id := c.nextID
	c.nextID++
	c.predictors[id] = newPredictor(from, p)

	receipt.GasUsed = need
	receipt.CumulativeGasUsed = need
	receipt.Logs = []*gethtypes.Log{transferLog(c.contract, from, id, receipt)}
	c.log.Info("Minted predictor", "id", id, "owner", from)
}

func intrinsicGas(data []byte) uint64 {
	gas := uint64(txGas)
	for _, b := range data {
		if b == 0 {
			gas += zeroByteGas
		} else {
			gas += dataByteGas
		}
	}
	return gas
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return a
	}
	return b
}
