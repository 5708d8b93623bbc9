package digitchaintest

import (
	"context"
	"sync"
	"testing"

	"github.com/blockberries/digitchain"
	"github.com/blockberries/digitchain/types"
)

// RunConnectionSuite runs a standard compliance suite against a
// Connection implementation.
//
// The factory must return a fresh, Disconnected connection for each
// subtest, backed by a chain on which predictorID answers inference
// calls and on which the wallet and the endpoint share a network.
func RunConnectionSuite(t *testing.T, predictorID uint64, factory func(t *testing.T) digitchain.Connection) {
	t.Helper()

	t.Run("starts_disconnected", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		st := h.Status()
		if st.State != types.StateDisconnected {
			t.Fatalf("expected %s, got %s", types.StateDisconnected, st.State)
		}
		if st.LastLabel != nil || st.LastMintedID != "" {
			t.Error("fresh session should have no results")
		}
	})

	t.Run("connect_matching_network", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		st := h.Connect()
		if !st.Connected() {
			t.Fatalf("expected Connected, got %s", st.State)
		}
		if !st.NetworkMatches || !st.CanMint() {
			t.Errorf("expected matching networks, wallet=%s endpoint=%s", st.Wallet, st.Endpoint)
		}
		if st.Account == "" {
			t.Error("connected session should report an account")
		}
	})

	t.Run("predict_without_wallet", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		p := h.Predict(DigitBuffer(), predictorID)
		if p.Label > 9 {
			t.Fatalf("label %d is not a digit", p.Label)
		}
		if err := p.Tensor.Validate(); err != nil {
			t.Fatalf("returned tensor invalid: %v", err)
		}
		st := h.Status()
		if st.LastLabel == nil || *st.LastLabel != p.Label {
			t.Errorf("status should record label %d, got %v", p.Label, st.LastLabel)
		}
	})

	t.Run("predict_deterministic", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.Connect()
		a := h.Predict(DigitBuffer(), predictorID)
		b := h.Predict(DigitBuffer(), predictorID)
		if a.Label != b.Label || !a.Tensor.Equal(b.Tensor) {
			t.Errorf("non-deterministic: %d != %d", a.Label, b.Label)
		}
	})

	t.Run("malformed_pixels_rejected", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		bad := types.PixelBuffer{Width: 28, Height: 28, Pix: make([]byte, 10)}
		_, err := h.Conn().Predict(context.Background(), bad, predictorID)
		ExpectKind(t, err, digitchain.KindMalformedInput)
	})

	t.Run("mint_requires_connection", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		_, err := h.Conn().Mint(context.Background(), SampleParamsDocument())
		ExpectKind(t, err, digitchain.KindNotConnected)
	})

	t.Run("malformed_params_rejected", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.Connect()
		doc := types.ParamsDocument{Format: types.FormatJSON, Name: "bad.json", Data: []byte(`{"conv1": []}`)}
		_, err := h.Conn().Mint(context.Background(), doc)
		ExpectKind(t, err, digitchain.KindMalformedInput)
	})

	t.Run("mint_then_predict_with_minted_id", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.Connect()
		r := h.Mint(SampleParamsDocument())
		if r.MintedID == "" || r.TxHash == "" {
			t.Fatalf("incomplete receipt: %+v", r)
		}
		if r.GasLimit == 0 {
			t.Error("receipt should carry the gas limit")
		}
		if st := h.Status(); st.LastMintedID != r.MintedID {
			t.Errorf("status minted id %q, want %q", st.LastMintedID, r.MintedID)
		}
	})

	t.Run("clear_resets_results", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.Connect()
		h.Predict(DigitBuffer(), predictorID)
		h.Mint(SampleParamsDocument())
		h.Clear()
		st := h.Status()
		if st.LastLabel != nil || st.LastMintedID != "" {
			t.Errorf("results survived Clear: %+v", st)
		}
		if !st.Connected() {
			t.Error("Clear must not disconnect")
		}
	})

	t.Run("disconnect_blocks_mint", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.Connect()
		h.Disconnect()
		if st := h.Status(); st.State != types.StateDisconnected {
			t.Fatalf("expected %s, got %s", types.StateDisconnected, st.State)
		}
		_, err := h.Conn().Mint(context.Background(), SampleParamsDocument())
		ExpectKind(t, err, digitchain.KindNotConnected)
	})

	t.Run("concurrent_predict", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.Connect()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := h.Conn().Predict(context.Background(), DigitBuffer(), predictorID); err != nil {
					t.Errorf("concurrent Predict failed: %v", err)
				}
			}()
		}
		wg.Wait()
	})
}
