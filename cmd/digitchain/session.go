package main

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/blockberries/digitchain"
	"github.com/blockberries/digitchain/chain"
	"github.com/blockberries/digitchain/config"
	"github.com/blockberries/digitchain/example/devchain"
)

const devchainScheme = "devchain://"

var (
	devMu     sync.Mutex
	devChains = map[string]*devchain.Chain{}
)

// dialBackend dials a JSON-RPC endpoint. devchain:// URLs resolve to a
// process-wide in-memory chain per URL.
func dialBackend(ctx context.Context, url string, logger log.Logger) (digitchain.Backend, error) {
	if !strings.HasPrefix(url, devchainScheme) {
		return chain.Dial(ctx, url)
	}
	devMu.Lock()
	defer devMu.Unlock()
	c, ok := devChains[url]
	if !ok {
		c = devchain.New(devchain.WithLogger(logger.With("devchain", strings.TrimPrefix(url, devchainScheme))))
		devChains[url] = c
	}
	return c, nil
}

// newSession resolves a deployment and builds its session. The wallet
// is attached only when withWallet is set. The session owns the dialed
// backends; they are closed with it, or here on failure.
func newSession(ctx context.Context, cfg config.Config, name string, withWallet bool, logger log.Logger) (_ *chain.Session, err error) {
	dep, err := cfg.Deployment(name)
	if err != nil {
		return nil, err
	}
	if withWallet && cfg.PrivateKey == "" {
		return nil, config.ErrNoPrivateKey
	}

	var dialed []digitchain.Backend
	defer func() {
		if err != nil {
			for _, b := range dialed {
				chain.CloseBackend(b)
			}
		}
	}()

	endpoint, err := dialBackend(ctx, dep.Endpoint, logger)
	if err != nil {
		return nil, err
	}
	dialed = append(dialed, endpoint)

	var wallet digitchain.Wallet
	if withWallet {
		provider, err := dialBackend(ctx, cfg.WalletEndpoint(dep), logger)
		if err != nil {
			return nil, err
		}
		dialed = append(dialed, provider)
		kw, err := chain.NewKeyWallet(cfg.PrivateKey, provider)
		if err != nil {
			return nil, err
		}
		wallet = kw
	}
	return chain.NewSession(dep, endpoint, wallet, chain.WithLogger(logger))
}
