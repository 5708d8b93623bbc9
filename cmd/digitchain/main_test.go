package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blockberries/digitchain/config"
	"github.com/blockberries/digitchain/example/devchain"
	digitchaintest "github.com/blockberries/digitchain/testing"
)

const devKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	prev := lookupEnv
	lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = prev })
}

func devEnv(t *testing.T, size string) map[string]string {
	return map[string]string{
		config.EnvRPCURL:          "devchain://" + t.Name(),
		config.EnvContractAddress: devchain.DefaultContract.Hex(),
		config.EnvInputSize:       size,
	}
}

func writePNG(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 28, 28))
	for y := 0; y < 28; y++ {
		for x := 0; x < 28; x++ {
			c := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			if x >= 13 && x < 16 && y >= 4 && y < 24 {
				c = color.NRGBA{A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	path := filepath.Join(t.TempDir(), "digit.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(args ...string) (int, string, string) {
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_Usage(t *testing.T) {
	if code, _, _ := runCLI(); code != 2 {
		t.Errorf("no args: exit %d, want 2", code)
	}
	if code, _, _ := runCLI("bogus"); code != 2 {
		t.Errorf("unknown command: exit %d, want 2", code)
	}
	code, out, _ := runCLI("help")
	if code != 0 || !strings.Contains(out, "digitchain predict") {
		t.Errorf("help: exit %d, output %q", code, out)
	}
	if code, _, _ := runCLI("encode"); code != 2 {
		t.Errorf("encode without --png: exit %d, want 2", code)
	}
}

func TestRun_Encode(t *testing.T) {
	path := writePNG(t)

	code, out, errOut := runCLI("encode", "--png", path, "--size", "28")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	var rows [][]int64
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 28 || rows[10][14] != 0 || rows[0][0] != 255 {
		t.Errorf("unexpected grayscale output")
	}

	code, out, _ = runCLI("encode", "--png", path)
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	rows = nil
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 16 || len(rows[0]) != 16 {
		t.Errorf("expected 16x16 output, got %d rows", len(rows))
	}

	if code, _, _ := runCLI("encode", "--png", path, "--size", "20"); code != 2 {
		t.Errorf("bad size: exit %d, want 2", code)
	}
}

func TestRun_Predict(t *testing.T) {
	withEnv(t, devEnv(t, "16"))
	code, out, errOut := runCLI("predict", "--png", writePNG(t))
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	label := strings.TrimSpace(out)
	if len(label) != 1 || label[0] < '0' || label[0] > '9' {
		t.Errorf("unexpected label %q", label)
	}

	code, _, _ = runCLI("predict", "--png", writePNG(t), "--predictor", "9")
	if code != 1 {
		t.Errorf("unknown predictor: exit %d, want 1", code)
	}
}

func TestRun_Mint(t *testing.T) {
	env := devEnv(t, "28")
	withEnv(t, env)

	paramsPath := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(paramsPath, []byte(digitchaintest.SampleParamsJSON), 0o600); err != nil {
		t.Fatal(err)
	}

	if code, _, _ := runCLI("mint", "--params", paramsPath); code != 1 {
		t.Errorf("mint without key: exit %d, want 1", code)
	}

	env[config.EnvPrivateKey] = devKey
	code, out, errOut := runCLI("mint", "--params", paramsPath)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.HasPrefix(out, "minted 1\n") {
		t.Errorf("unexpected output %q", out)
	}

	code, out, errOut = runCLI("predict", "--png", writePNG(t), "--predictor", "1", "--connect")
	if code != 0 {
		t.Fatalf("predict minted: exit %d: %s", code, errOut)
	}
	if strings.TrimSpace(out) == "" {
		t.Error("expected a label")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"conv1": []}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if code, _, _ := runCLI("mint", "--params", bad); code != 2 {
		t.Errorf("malformed params: exit %d, want 2", code)
	}
}

func TestRun_Deployments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployments.json")
	doc := `{"default": "b", "deployments": [
		{"name": "a", "endpoint": "devchain://a", "address": "0x5FbDB2315678afecb367f032d93F642f64180aa3"},
		{"name": "b", "endpoint": "devchain://b", "address": "0x5FbDB2315678afecb367f032d93F642f64180aa3", "input_size": 28}
	]}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	withEnv(t, map[string]string{config.EnvDeployments: path})

	code, out, errOut := runCLI("deployments")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "* b") || !strings.HasPrefix(lines[0], "  a") {
		t.Errorf("unexpected listing %q", out)
	}
	if !strings.HasSuffix(lines[1], "28") || !strings.HasSuffix(lines[0], "16") {
		t.Errorf("input sizes missing from %q", out)
	}
}
