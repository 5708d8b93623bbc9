// Package config resolves which predictor deployment a session talks
// to and which key signs its mints.
//
// Everything comes from the environment or from a deployments file the
// environment points at:
//
//	DIGITCHAIN_RPC_URL           endpoint of the single implicit deployment
//	DIGITCHAIN_CONTRACT_ADDRESS  contract of the single implicit deployment
//	DIGITCHAIN_INPUT_SIZE        16 or 28 (default 16)
//	DIGITCHAIN_DEPLOYMENTS       path to a deployments JSON file
//	DIGITCHAIN_DEPLOYMENT        name of the default deployment
//	DIGITCHAIN_PRIVATE_KEY       hex key for the local wallet
//	DIGITCHAIN_WALLET_RPC_URL    provider of the local wallet
//
// Example deployments file:
//
//	{
//	  "default": "monad",
//	  "deployments": [
//	    {"name":"monad", "endpoint":"https://testnet-rpc.monad.xyz", "address":"0x…", "input_size":16},
//	    {"name":"local", "endpoint":"http://127.0.0.1:8545", "address":"0x…", "input_size":28}
//	  ]
//	}
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// Environment variable names.
const (
	EnvRPCURL          = "DIGITCHAIN_RPC_URL"
	EnvContractAddress = "DIGITCHAIN_CONTRACT_ADDRESS"
	EnvInputSize       = "DIGITCHAIN_INPUT_SIZE"
	EnvDeployments     = "DIGITCHAIN_DEPLOYMENTS"
	EnvDeployment      = "DIGITCHAIN_DEPLOYMENT"
	EnvPrivateKey      = "DIGITCHAIN_PRIVATE_KEY"
	EnvWalletRPCURL    = "DIGITCHAIN_WALLET_RPC_URL"
)

// DefaultInputSize is the predictor input side when none is configured.
const DefaultInputSize = 16

var (
	ErrNoDeployments     = errors.New("config: at least one deployment is required")
	ErrUnknownDeployment = errors.New("config: unknown deployment")
	ErrNoPrivateKey      = errors.New("config: no wallet private key configured")
	ErrNoEndpoint        = errors.New("config: " + EnvRPCURL + " is required with " + EnvContractAddress)
)

// Deployment is one predictor contract on one network.
type Deployment struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	Address  string `json:"address"`
	// InputSize selects the encoder: 16 (averaged, flat vector) or 28
	// (grayscale, matrix). Each deployed predictor version accepts one.
	InputSize int `json:"input_size,omitempty"`
}

// ContractAddress parses Address.
func (d Deployment) ContractAddress() common.Address {
	return common.HexToAddress(d.Address)
}

// Size returns InputSize, defaulting to DefaultInputSize.
func (d Deployment) Size() int {
	if d.InputSize == 0 {
		return DefaultInputSize
	}
	return d.InputSize
}

// Validate checks a single deployment.
func (d Deployment) Validate() error {
	if d.Name == "" {
		return errors.New("config: deployment name is required")
	}
	if d.Endpoint == "" {
		return fmt.Errorf("config: deployment %q: endpoint is required", d.Name)
	}
	if !common.IsHexAddress(d.Address) {
		return fmt.Errorf("config: deployment %q: invalid contract address %q", d.Name, d.Address)
	}
	switch d.Size() {
	case 16, 28:
	default:
		return fmt.Errorf("config: deployment %q: input_size must be 16 or 28, got %d", d.Name, d.InputSize)
	}
	return nil
}

// Config is the resolved configuration.
type Config struct {
	Default     string       `json:"default,omitempty"`
	Deployments []Deployment `json:"deployments"`

	// Wallet settings never come from the deployments file.
	PrivateKey   string `json:"-"`
	WalletRPCURL string `json:"-"`
}

// Validate checks all deployments and the default name.
func (c Config) Validate() error {
	if len(c.Deployments) == 0 {
		return ErrNoDeployments
	}
	seen := make(map[string]struct{}, len(c.Deployments))
	for _, d := range c.Deployments {
		if err := d.Validate(); err != nil {
			return err
		}
		if _, ok := seen[d.Name]; ok {
			return fmt.Errorf("config: duplicate deployment %q", d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	if c.Default != "" {
		if _, ok := seen[c.Default]; !ok {
			return fmt.Errorf("%w: default %q", ErrUnknownDeployment, c.Default)
		}
	}
	return nil
}

// Deployment returns the named deployment, or the default one when name
// is empty. Without an explicit default the first deployment is used.
func (c Config) Deployment(name string) (Deployment, error) {
	if name == "" {
		name = c.Default
	}
	if name == "" {
		if len(c.Deployments) == 0 {
			return Deployment{}, ErrNoDeployments
		}
		return c.Deployments[0], nil
	}
	for _, d := range c.Deployments {
		if d.Name == name {
			return d, nil
		}
	}
	return Deployment{}, fmt.Errorf("%w: %q", ErrUnknownDeployment, name)
}

// WalletEndpoint returns the wallet provider URL, falling back to the
// endpoint of d.
func (c Config) WalletEndpoint(d Deployment) string {
	if c.WalletRPCURL != "" {
		return c.WalletRPCURL
	}
	return d.Endpoint
}

// LoadFile reads a deployments file.
func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("config: empty deployments path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// FromEnv builds a Config from environment lookups. Pass os.LookupEnv
// in production.
//
// When DIGITCHAIN_DEPLOYMENTS is set the file defines the deployments;
// otherwise DIGITCHAIN_CONTRACT_ADDRESS and DIGITCHAIN_RPC_URL (with an
// optional DIGITCHAIN_INPUT_SIZE) define a single deployment named
// "default". There is no built-in endpoint.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return v
	}

	var cfg Config
	if path := get(EnvDeployments); path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return Config{}, err
		}
	} else if addr := get(EnvContractAddress); addr != "" {
		d := Deployment{Name: "default", Endpoint: get(EnvRPCURL), Address: addr}
		if d.Endpoint == "" {
			return Config{}, ErrNoEndpoint
		}
		if s := get(EnvInputSize); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				return Config{}, fmt.Errorf("config: %s: %w", EnvInputSize, err)
			}
			d.InputSize = n
		}
		cfg.Deployments = []Deployment{d}
	}

	if name := get(EnvDeployment); name != "" {
		cfg.Default = name
	}
	cfg.PrivateKey = get(EnvPrivateKey)
	cfg.WalletRPCURL = get(EnvWalletRPCURL)
	return cfg, cfg.Validate()
}
