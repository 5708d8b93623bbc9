package digitchaintest

import (
	"context"
	"testing"

	"github.com/blockberries/digitchain"
	"github.com/blockberries/digitchain/types"
)

// Harness drives a Connection from a test and fails the test on any
// unexpected error.
type Harness struct {
	t    *testing.T
	conn digitchain.Connection
}

// NewHarness wraps conn. The connection is closed when the test ends.
func NewHarness(t *testing.T, conn digitchain.Connection) *Harness {
	t.Helper()
	t.Cleanup(func() { _ = conn.Close() })
	return &Harness{t: t, conn: conn}
}

// Conn returns the underlying connection for direct access.
func (h *Harness) Conn() digitchain.Connection {
	return h.conn
}

// Connect connects the session.
func (h *Harness) Connect() types.SessionStatus {
	h.t.Helper()
	st, err := h.conn.Connect(context.Background())
	if err != nil {
		h.t.Fatalf("Connect failed: %v", err)
	}
	return st
}

// Disconnect drops the signer.
func (h *Harness) Disconnect() {
	h.t.Helper()
	if err := h.conn.Disconnect(context.Background()); err != nil {
		h.t.Fatalf("Disconnect failed: %v", err)
	}
}

// Status returns the session snapshot.
func (h *Harness) Status() types.SessionStatus {
	h.t.Helper()
	st, err := h.conn.Status(context.Background())
	if err != nil {
		h.t.Fatalf("Status failed: %v", err)
	}
	return st
}

// Predict classifies pixels with predictorID.
func (h *Harness) Predict(pixels types.PixelBuffer, predictorID uint64) types.Prediction {
	h.t.Helper()
	p, err := h.conn.Predict(context.Background(), pixels, predictorID)
	if err != nil {
		h.t.Fatalf("Predict (predictor=%d) failed: %v", predictorID, err)
	}
	return p
}

// Mint mints doc.
func (h *Harness) Mint(doc types.ParamsDocument) types.MintReceipt {
	h.t.Helper()
	r, err := h.conn.Mint(context.Background(), doc)
	if err != nil {
		h.t.Fatalf("Mint (%s) failed: %v", doc.Name, err)
	}
	return r
}

// Clear resets the last results.
func (h *Harness) Clear() {
	h.t.Helper()
	if err := h.conn.Clear(context.Background()); err != nil {
		h.t.Fatalf("Clear failed: %v", err)
	}
}

// ExpectKind fails the test unless err carries kind.
func ExpectKind(t *testing.T, err error, kind digitchain.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := digitchain.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}
