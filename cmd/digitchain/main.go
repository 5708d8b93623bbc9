// Command digitchain classifies digit drawings with an on-chain
// predictor, mints predictors from parameter files and serves sessions
// over gRPC.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"google.golang.org/grpc"

	"github.com/blockberries/digitchain"
	"github.com/blockberries/digitchain/chain"
	"github.com/blockberries/digitchain/config"
	"github.com/blockberries/digitchain/encode"
	digitchaingrpc "github.com/blockberries/digitchain/grpc"
	"github.com/blockberries/digitchain/local"
	"github.com/blockberries/digitchain/types"
)

// lookupEnv is replaced in tests.
var lookupEnv = os.LookupEnv

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "encode":
		return cmdEncode(args[1:], out, errOut)
	case "predict":
		return cmdPredict(args[1:], out, errOut)
	case "mint":
		return cmdMint(args[1:], out, errOut)
	case "deployments":
		return cmdDeployments(args[1:], out, errOut)
	case "serve":
		return cmdServe(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "digitchain: on-chain digit classifier client")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  digitchain encode --png <file> [--size 16|28]")
	fmt.Fprintln(w, "  digitchain predict --png <file> [--predictor <id>] [--deployment <name>] [--connect]")
	fmt.Fprintln(w, "  digitchain mint --params <file> [--deployment <name>]")
	fmt.Fprintln(w, "  digitchain deployments")
	fmt.Fprintln(w, "  digitchain serve [--listen <addr>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintf(w, "  %s, %s, %s\n", config.EnvRPCURL, config.EnvContractAddress, config.EnvInputSize)
	fmt.Fprintf(w, "  %s, %s\n", config.EnvDeployments, config.EnvDeployment)
	fmt.Fprintf(w, "  %s, %s\n", config.EnvPrivateKey, config.EnvWalletRPCURL)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - endpoints of the form devchain://<name> run against an in-memory chain")
	fmt.Fprintln(w, "  - mint requires a private key; predict uses it only with --connect")
}

func newLogger(errOut io.Writer, verbose bool) log.Logger {
	level := slog.LevelWarn
	if verbose {
		level = log.LevelDebug
	}
	return log.NewLogger(log.NewTerminalHandlerWithLevel(errOut, level, false))
}

func readPNG(path string) (types.PixelBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.PixelBuffer{}, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return types.PixelBuffer{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return encode.FromImage(img), nil
}

func cmdEncode(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	fs.SetOutput(errOut)
	pngPath := fs.String("png", "", "PNG drawing")
	size := fs.Int("size", config.DefaultInputSize, "Predictor input size: 16 or 28")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *pngPath == "" {
		fmt.Fprintln(errOut, "usage: digitchain encode --png <file> [--size 16|28]")
		return 2
	}
	mode, err := encode.ModeForSize(*size)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	buf, err := readPNG(*pngPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	tensor, err := encode.Encode(buf, mode)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if err := json.NewEncoder(out).Encode(tensor.Rows()); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func cmdPredict(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.SetOutput(errOut)
	pngPath := fs.String("png", "", "PNG drawing")
	predictor := fs.Uint64("predictor", 0, "Predictor id")
	deployment := fs.String("deployment", "", "Deployment name (default from config)")
	connect := fs.Bool("connect", false, "Connect the wallet first and query through it")
	verbose := fs.Bool("v", false, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *pngPath == "" {
		fmt.Fprintln(errOut, "usage: digitchain predict --png <file> [--predictor <id>] [--deployment <name>] [--connect]")
		return 2
	}

	buf, err := readPNG(*pngPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	ctx := context.Background()
	conn, err := openLocal(ctx, *deployment, *connect, newLogger(errOut, *verbose))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer conn.Close()

	if *connect {
		if _, err := conn.Connect(ctx); err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
	}
	p, err := conn.Predict(ctx, buf, *predictor)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintf(out, "%d\n", p.Label)
	return 0
}

func cmdMint(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("mint", flag.ContinueOnError)
	fs.SetOutput(errOut)
	paramsPath := fs.String("params", "", "Parameter file (.json or .safetensors)")
	deployment := fs.String("deployment", "", "Deployment name (default from config)")
	verbose := fs.Bool("v", false, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *paramsPath == "" {
		fmt.Fprintln(errOut, "usage: digitchain mint --params <file> [--deployment <name>]")
		return 2
	}

	data, err := os.ReadFile(*paramsPath)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(*paramsPath), err)
		return 1
	}
	doc := types.ParamsDocument{Name: filepath.Base(*paramsPath), Data: data}
	switch strings.ToLower(filepath.Ext(*paramsPath)) {
	case ".json":
		doc.Format = types.FormatJSON
	case ".safetensors":
		doc.Format = types.FormatSafetensors
	}

	ctx := context.Background()
	conn, err := openLocal(ctx, *deployment, true, newLogger(errOut, *verbose))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer conn.Close()

	st, err := conn.Connect(ctx)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if !st.CanMint() {
		fmt.Fprintf(errOut, "wallet is on %s but %s is on %s\n", st.Wallet, st.Deployment, st.Endpoint)
		return 1
	}
	r, err := conn.Mint(ctx, doc)
	if err != nil {
		fmt.Fprintln(errOut, err)
		if digitchain.IsKind(err, digitchain.KindMalformedInput) {
			return 2
		}
		return 1
	}
	fmt.Fprintf(out, "minted %s\ntx %s\nblock %d\ngas %d/%d\nparams %s\n",
		r.MintedID, r.TxHash, r.BlockNumber, r.GasUsed, r.GasLimit, r.ParamsCID)
	return 0
}

func cmdDeployments(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("deployments", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := config.FromEnv(lookupEnv)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	def, _ := cfg.Deployment("")
	for _, d := range cfg.Deployments {
		marker := " "
		if d.Name == def.Name {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s\t%s\t%s\t%d\n", marker, d.Name, d.Address, d.Endpoint, d.Size())
	}
	return 0
}

func cmdServe(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7545", "listen address")
	verbose := fs.Bool("v", false, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.FromEnv(lookupEnv)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	logger := newLogger(errOut, *verbose)
	var factory digitchaingrpc.SessionFactory = func(ctx context.Context, name string) (*chain.Session, error) {
		return newSession(ctx, cfg, name, cfg.PrivateKey != "", logger)
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer lis.Close()

	s := grpc.NewServer()
	gs := digitchaingrpc.NewGRPCServer(factory).WithLogger(logger)
	gs.Register(s)
	defer gs.Close()

	fmt.Fprintf(out, "digitchain listening on %s (%d deployments)\n", lis.Addr().String(), len(cfg.Deployments))
	if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

// openLocal builds an in-process connection for the named deployment.
func openLocal(ctx context.Context, deployment string, withWallet bool, logger log.Logger) (*local.Connection, error) {
	cfg, err := config.FromEnv(lookupEnv)
	if err != nil {
		return nil, err
	}
	s, err := newSession(ctx, cfg, deployment, withWallet, logger)
	if err != nil {
		return nil, err
	}
	return local.NewConnection(s), nil
}
