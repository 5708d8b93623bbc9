package devchain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/blockberries/digitchain"
	"github.com/blockberries/digitchain/chain"
	"github.com/blockberries/digitchain/contract"
	"github.com/blockberries/digitchain/encode"
	"github.com/blockberries/digitchain/local"
	digitchaintest "github.com/blockberries/digitchain/testing"
	"github.com/blockberries/digitchain/types"
)

func TestDevchain_Compliance(t *testing.T) {
	digitchaintest.RunConnectionSuite(t, GenesisPredictor, func(t *testing.T) digitchain.Connection {
		dev := New()
		w, err := dev.Wallet(1)
		if err != nil {
			t.Fatal(err)
		}
		s, err := chain.NewSession(dev.Deployment("dev", 16), dev, w)
		if err != nil {
			t.Fatal(err)
		}
		return local.NewConnection(s)
	})
}

func inferenceCall(t *testing.T, c *Chain, id uint64, tensor types.Tensor) ([]byte, error) {
	t.Helper()
	_, data, err := contract.PackInference(id, tensor)
	if err != nil {
		t.Fatal(err)
	}
	return c.CallContract(context.Background(), ethereum.CallMsg{To: &c.contract, Data: data}, nil)
}

func TestDevchain_Inference(t *testing.T) {
	c := New()
	tensor, err := encode.Encode(digitchaintest.DigitBuffer(), encode.Grayscale28)
	if err != nil {
		t.Fatal(err)
	}

	out, err := inferenceCall(t, c, GenesisPredictor, tensor)
	if err != nil {
		t.Fatalf("inference failed: %v", err)
	}
	label, err := contract.UnpackLabel(contract.MethodInference, out)
	if err != nil {
		t.Fatal(err)
	}
	if label.Cmp(big.NewInt(9)) > 0 || label.Sign() < 0 {
		t.Fatalf("label %s is not a digit", label)
	}
	again, _ := inferenceCall(t, c, GenesisPredictor, tensor)
	if string(again) != string(out) {
		t.Error("inference is not deterministic")
	}

	_, err = inferenceCall(t, c, 5, tensor)
	var revertErr *RevertError
	if !errors.As(err, &revertErr) {
		t.Fatalf("expected revert for unknown predictor, got %v", err)
	}
}

func TestDevchain_CallOtherAddress(t *testing.T) {
	c := New()
	other := common.HexToAddress("0x01")
	out, err := c.CallContract(context.Background(), ethereum.CallMsg{To: &other, Data: []byte{1, 2, 3, 4}}, nil)
	if err != nil || len(out) != 0 {
		t.Fatalf("expected empty success, got %x, %v", out, err)
	}
	if code, _ := c.CodeAt(context.Background(), other, nil); len(code) != 0 {
		t.Error("expected no code at other address")
	}
	if code, _ := c.CodeAt(context.Background(), DefaultContract, nil); len(code) == 0 {
		t.Error("expected code at contract address")
	}
}

func TestDevchain_EstimateRevertsOnMalformedMint(t *testing.T) {
	c := New()
	selector := contract.ABI().Methods[contract.MethodMint].ID
	_, err := c.EstimateGas(context.Background(), ethereum.CallMsg{To: &c.contract, Data: append(append([]byte{}, selector...), 0x01)})
	var revertErr *RevertError
	if !errors.As(err, &revertErr) {
		t.Fatalf("expected revert, got %v", err)
	}

	data, err := contract.PackMint(digitchaintest.SampleParams())
	if err != nil {
		t.Fatal(err)
	}
	gas, err := c.EstimateGas(context.Background(), ethereum.CallMsg{To: &c.contract, Data: data})
	if err != nil {
		t.Fatal(err)
	}
	if gas != intrinsicGas(data)+mintGas {
		t.Errorf("estimate %d, want %d", gas, intrinsicGas(data)+mintGas)
	}
}

func signedMint(t *testing.T, c *Chain, nonce, gas uint64) *gethtypes.Transaction {
	t.Helper()
	w, err := c.Wallet(0)
	if err != nil {
		t.Fatal(err)
	}
	signer, _ := w.Signer(context.Background())
	data, err := contract.PackMint(digitchaintest.SampleParams())
	if err != nil {
		t.Fatal(err)
	}
	fees := chain.FeeData{MaxFeePerGas: big.NewInt(3_000_000_000), MaxPriorityFeePerGas: tipCap}
	tx, err := signer.SignTx(fees.Transaction(c.chainID, nonce, c.contract, gas, data), c.chainID)
	if err != nil {
		t.Fatal(err)
	}
	return tx
}

func TestDevchain_MintAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	c := New()

	for i := uint64(0); i < 3; i++ {
		tx := signedMint(t, c, i, 1_000_000)
		if err := c.SendTransaction(ctx, tx); err != nil {
			t.Fatalf("mint %d: %v", i, err)
		}
		r, err := c.TransactionReceipt(ctx, tx.Hash())
		if err != nil {
			t.Fatal(err)
		}
		id, err := contract.MintedID(r)
		if err != nil {
			t.Fatal(err)
		}
		if id.Uint64() != i+1 {
			t.Errorf("mint %d: id %s, want %d", i, id, i+1)
		}
	}
	if c.Predictors() != 4 {
		t.Errorf("predictors %d, want 4", c.Predictors())
	}
	if c.TxCount() != 3 {
		t.Errorf("tx count %d, want 3", c.TxCount())
	}
	head, _ := c.HeaderByNumber(ctx, nil)
	if head.Number.Uint64() != 3 || head.BaseFee == nil {
		t.Errorf("unexpected head %d", head.Number)
	}
}

func TestDevchain_MintOutOfGas(t *testing.T) {
	ctx := context.Background()
	c := New()
	data, _ := contract.PackMint(digitchaintest.SampleParams())

	tx := signedMint(t, c, 0, intrinsicGas(data)+mintGas-1)
	if err := c.SendTransaction(ctx, tx); err != nil {
		t.Fatal(err)
	}
	r, _ := c.TransactionReceipt(ctx, tx.Hash())
	if r.Status != gethtypes.ReceiptStatusFailed || len(r.Logs) != 0 {
		t.Fatal("expected failed receipt without logs")
	}
	if c.Predictors() != 1 {
		t.Error("failed mint registered a predictor")
	}
}

func TestDevchain_RejectsBadTransactions(t *testing.T) {
	ctx := context.Background()
	c := New()

	if err := c.SendTransaction(ctx, signedMint(t, c, 3, 1_000_000)); err == nil {
		t.Error("expected nonce error")
	}

	other := New(WithChainID(1))
	if err := c.SendTransaction(ctx, signedMint(t, other, 0, 1_000_000)); err == nil {
		t.Error("expected chain id error")
	}

	tx := signedMint(t, c, 0, 1_000_000)
	if err := c.SendTransaction(ctx, tx); err != nil {
		t.Fatal(err)
	}
	if err := c.SendTransaction(ctx, tx); err == nil {
		t.Error("expected duplicate error")
	}

	if _, err := c.TransactionReceipt(ctx, common.Hash{1}); !errors.Is(err, ethereum.NotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestDevchain_MintedPredictorIsCallable(t *testing.T) {
	dev := New()
	w, _ := dev.Wallet(0)
	s, err := chain.NewSession(dev.Deployment("dev", 16), dev, w)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := s.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	r, err := s.MintPredictor(ctx, digitchaintest.SampleParams())
	if err != nil {
		t.Fatal(err)
	}
	if r.MintedID != "1" {
		t.Fatalf("minted id %q", r.MintedID)
	}

	p, err := s.Predict(ctx, digitchaintest.DigitBuffer(), 1)
	if err != nil {
		t.Fatal(err)
	}
	// Sample fc_bias sums to 15, so predictor 1 is offset by 5 from genesis.
	g, err := s.Predict(ctx, digitchaintest.DigitBuffer(), GenesisPredictor)
	if err != nil {
		t.Fatal(err)
	}
	if p.Label != (g.Label+5)%10 {
		t.Errorf("labels %d and %d do not reflect the predictor seed", p.Label, g.Label)
	}
}
