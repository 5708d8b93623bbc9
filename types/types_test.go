package types

import "testing"

func TestPixelBuffer_Validate(t *testing.T) {
	ok := PixelBuffer{Width: 2, Height: 3, Pix: make([]byte, 2*3*4)}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	short := PixelBuffer{Width: 2, Height: 3, Pix: make([]byte, 23)}
	if err := short.Validate(); err == nil {
		t.Fatal("expected length mismatch error")
	}

	empty := PixelBuffer{Width: 0, Height: 3}
	if err := empty.Validate(); err == nil {
		t.Fatal("expected zero dimension error")
	}

	// 2^31 * 2^31 * 4 wraps to zero in uint64.
	huge := PixelBuffer{Width: 1 << 31, Height: 1 << 31}
	if err := huge.Validate(); err == nil {
		t.Fatal("expected huge dimensions with no pixels to be rejected")
	}
	huge.Pix = make([]byte, 4)
	if err := huge.Validate(); err == nil {
		t.Fatal("expected huge dimensions with one pixel to be rejected")
	}

	ragged := PixelBuffer{Width: 1, Height: 1, Pix: make([]byte, 5)}
	if err := ragged.Validate(); err == nil {
		t.Fatal("expected partial pixel error")
	}
}

func TestPixelBuffer_RGBA(t *testing.T) {
	b := PixelBuffer{Width: 2, Height: 2, Pix: make([]byte, 16)}
	copy(b.Pix[12:], []byte{1, 2, 3, 4})
	r, g, bl, a := b.RGBA(1, 1)
	if r != 1 || g != 2 || bl != 3 || a != 4 {
		t.Fatalf("unexpected sample: %d %d %d %d", r, g, bl, a)
	}
}

func TestTensor_Rows(t *testing.T) {
	tensor := NewTensor(Side16)
	for i := range tensor.Cells {
		tensor.Cells[i] = int64(i % 256)
	}
	rows := tensor.Rows()
	if len(rows) != 16 {
		t.Fatalf("expected 16 rows, got %d", len(rows))
	}
	if rows[2][5] != tensor.At(2, 5) || rows[2][5] != 37 {
		t.Fatalf("row-major layout broken: rows[2][5]=%d", rows[2][5])
	}
	if err := tensor.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTensor_Validate(t *testing.T) {
	if err := NewTensor(20).Validate(); err == nil {
		t.Error("expected unsupported side error")
	}
	bad := NewTensor(Side28)
	bad.Cells[0] = 256
	if err := bad.Validate(); err == nil {
		t.Error("expected out of range error")
	}
	short := Tensor{Side: Side16, Cells: make([]int64, 10)}
	if err := short.Validate(); err == nil {
		t.Error("expected cell count error")
	}
}

func TestNetworkIdentity(t *testing.T) {
	a := NetworkIdentity{ChainID: 1, Name: "mainnet"}
	b := NetworkIdentity{ChainID: 1, Name: "Ethereum"}
	if !a.SameChain(b) {
		t.Error("names must not affect chain equality")
	}
	if a.String() != "mainnet (1)" {
		t.Errorf("unexpected string %q", a.String())
	}
	if (NetworkIdentity{ChainID: 5}).String() != "chain 5" {
		t.Error("unexpected fallback string")
	}
}
