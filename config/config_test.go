package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

const addrA = "0x7a198E9ee6628D0122ffAC2F88f5589D276aD80f"
const addrB = "0x00000000000000000000000000000000000000bb"

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromEnv_SingleDeployment(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		EnvContractAddress: addrA,
		EnvRPCURL:          "http://node:8545",
		EnvInputSize:       "28",
		EnvPrivateKey:      "abc",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	d, err := cfg.Deployment("")
	if err != nil {
		t.Fatalf("Deployment: %v", err)
	}
	if d.Endpoint != "http://node:8545" {
		t.Errorf("unexpected endpoint %q", d.Endpoint)
	}
	if d.Size() != 28 {
		t.Errorf("expected input size 28, got %d", d.Size())
	}
	if cfg.WalletEndpoint(d) != "http://node:8545" {
		t.Errorf("wallet endpoint should fall back to deployment endpoint")
	}
	if cfg.PrivateKey != "abc" {
		t.Errorf("private key not carried")
	}
}

func TestFromEnv_Empty(t *testing.T) {
	_, err := FromEnv(envMap(nil))
	if !errors.Is(err, ErrNoDeployments) {
		t.Fatalf("expected ErrNoDeployments, got %v", err)
	}
}

func TestFromEnv_EndpointRequired(t *testing.T) {
	_, err := FromEnv(envMap(map[string]string{EnvContractAddress: addrA}))
	if !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("expected ErrNoEndpoint, got %v", err)
	}
}

func TestFromEnv_BadInputSize(t *testing.T) {
	_, err := FromEnv(envMap(map[string]string{EnvContractAddress: addrA, EnvRPCURL: "http://node", EnvInputSize: "32"}))
	if err == nil {
		t.Fatal("expected input size error")
	}
	_, err = FromEnv(envMap(map[string]string{EnvContractAddress: addrA, EnvRPCURL: "http://node", EnvInputSize: "x"}))
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFromEnv_DeploymentsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployments.json")
	doc := `{
	  "default": "local",
	  "deployments": [
	    {"name": "monad", "endpoint": "https://rpc.example", "address": "` + addrA + `"},
	    {"name": "local", "endpoint": "http://127.0.0.1:8545", "address": "` + addrB + `", "input_size": 28}
	  ]
	}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := FromEnv(envMap(map[string]string{
		EnvDeployments:  path,
		EnvWalletRPCURL: "http://wallet",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}

	d, err := cfg.Deployment("")
	if err != nil || d.Name != "local" {
		t.Fatalf("expected default deployment local, got %+v (%v)", d, err)
	}
	if d.ContractAddress() != common.HexToAddress(addrB) {
		t.Errorf("unexpected address %s", d.ContractAddress().Hex())
	}
	if cfg.WalletEndpoint(d) != "http://wallet" {
		t.Errorf("expected explicit wallet endpoint")
	}

	m, err := cfg.Deployment("monad")
	if err != nil || m.Size() != DefaultInputSize {
		t.Fatalf("expected monad with default size, got %+v (%v)", m, err)
	}

	if _, err := cfg.Deployment("nope"); !errors.Is(err, ErrUnknownDeployment) {
		t.Fatalf("expected ErrUnknownDeployment, got %v", err)
	}

	// The environment overrides the file's default.
	cfg, err = FromEnv(envMap(map[string]string{EnvDeployments: path, EnvDeployment: "monad"}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if d, _ := cfg.Deployment(""); d.Name != "monad" {
		t.Errorf("expected env default monad, got %s", d.Name)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]Config{
		"duplicate": {Deployments: []Deployment{
			{Name: "a", Endpoint: "x", Address: addrA},
			{Name: "a", Endpoint: "y", Address: addrB},
		}},
		"bad address":     {Deployments: []Deployment{{Name: "a", Endpoint: "x", Address: "0x12"}}},
		"missing name":    {Deployments: []Deployment{{Endpoint: "x", Address: addrA}}},
		"missing url":     {Deployments: []Deployment{{Name: "a", Address: addrA}}},
		"unknown default": {Default: "b", Deployments: []Deployment{{Name: "a", Endpoint: "x", Address: addrA}}},
	}
	for name, cfg := range cases {
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
