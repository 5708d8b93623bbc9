package types_test

import (
	"testing"

	"github.com/blockberries/digitchain/types"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// roundTrip marshals v, unmarshals into a new T, and returns it.
func roundTrip[T any](t *testing.T, v T) T {
	t.Helper()
	data, err := cramberry.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var out T
	if err := cramberry.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	return out
}

func TestSessionStatus_RoundTrip(t *testing.T) {
	label := uint64(7)
	v := types.SessionStatus{
		State:          types.StateConnected,
		Account:        "0x00000000000000000000000000000000000000aa",
		Wallet:         types.NetworkIdentity{ChainID: 10143, Name: "monad-testnet"},
		Endpoint:       types.NetworkIdentity{ChainID: 10143, Name: "monad"},
		NetworkMatches: true,
		Deployment:     "monad",
		LastLabel:      &label,
		LastMintedID:   "42",
	}
	got := roundTrip(t, v)
	if got.LastLabel == nil || *got.LastLabel != 7 {
		t.Fatalf("LastLabel lost in round-trip: %+v", got.LastLabel)
	}
	if got.Wallet != v.Wallet || got.Endpoint != v.Endpoint {
		t.Fatalf("networks mismatch: got %+v / %+v", got.Wallet, got.Endpoint)
	}
	if !got.CanMint() {
		t.Fatal("expected CanMint after round-trip")
	}
}

func TestPrediction_RoundTrip(t *testing.T) {
	tensor := types.NewTensor(types.Side16)
	tensor.Cells[17] = 255
	v := types.Prediction{Label: 3, Tensor: tensor, PredictorID: 1, ElapsedMillis: 12}
	got := roundTrip(t, v)
	if !got.Tensor.Equal(tensor) {
		t.Fatal("tensor changed in round-trip")
	}
	if got.Label != 3 || got.PredictorID != 1 {
		t.Fatalf("unexpected prediction: %+v", got)
	}
}
