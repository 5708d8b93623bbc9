package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/blockberries/digitchain"
	"github.com/blockberries/digitchain/types"
)

var knownNetworks = map[uint64]string{
	1:        "mainnet",
	11155111: "sepolia",
	10143:    "monad-testnet",
	31337:    "hardhat",
}

// NetworkName returns a display name for a chain id.
func NetworkName(chainID uint64) string {
	if name, ok := knownNetworks[chainID]; ok {
		return name
	}
	return fmt.Sprintf("chain-%d", chainID)
}

// Dial connects to a JSON-RPC endpoint.
func Dial(ctx context.Context, url string) (digitchain.Backend, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", url, err)
	}
	return client, nil
}

// KeyWallet is a Wallet holding one private key. Its backend stands in
// for the network the user has selected in a browser wallet.
type KeyWallet struct {
	key     *ecdsa.PrivateKey
	backend digitchain.Backend
}

var _ digitchain.Wallet = (*KeyWallet)(nil)

// NewKeyWallet parses a hex private key, with or without 0x prefix.
func NewKeyWallet(hexKey string, backend digitchain.Backend) (*KeyWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("chain: private key: %w", err)
	}
	return &KeyWallet{key: key, backend: backend}, nil
}

// DialKeyWallet creates a KeyWallet attached to the endpoint at url.
func DialKeyWallet(ctx context.Context, hexKey, url string) (*KeyWallet, error) {
	backend, err := Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	w, err := NewKeyWallet(hexKey, backend)
	if err != nil {
		CloseBackend(backend)
		return nil, err
	}
	return w, nil
}

// Signer returns a signer for the wallet's key. It never prompts.
func (w *KeyWallet) Signer(context.Context) (digitchain.Signer, error) {
	return keySigner{key: w.key, addr: crypto.PubkeyToAddress(w.key.PublicKey)}, nil
}

// Network queries the backend's chain id.
func (w *KeyWallet) Network(ctx context.Context) (types.NetworkIdentity, error) {
	id, err := w.backend.ChainID(ctx)
	if err != nil {
		return types.NetworkIdentity{}, err
	}
	if !id.IsUint64() {
		return types.NetworkIdentity{}, fmt.Errorf("chain: chain id %s out of range", id)
	}
	return types.NetworkIdentity{ChainID: id.Uint64(), Name: NetworkName(id.Uint64())}, nil
}

func (w *KeyWallet) Backend() digitchain.Backend { return w.backend }

type keySigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func (s keySigner) Address() common.Address { return s.addr }

func (s keySigner) SignTx(tx *gethtypes.Transaction, chainID *big.Int) (*gethtypes.Transaction, error) {
	return gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(chainID), s.key)
}

// CloseBackend closes b if it holds a connection, as *ethclient.Client
// does.
func CloseBackend(b digitchain.Backend) {
	if c, ok := b.(interface{ Close() }); ok {
		c.Close()
	}
}
