package types

import "fmt"

// Supported tensor side lengths.
const (
	Side16 = 16
	Side28 = 28
)

// Tensor is a square grid of integers in [0, 255], row-major.
//
// The layout must match what the predictor contract expects; there is
// no shape negotiation on the remote side.
type Tensor struct {
	Side  uint32  `cramberry:"1"`
	Cells []int64 `cramberry:"2"`
}

// NewTensor allocates a zeroed tensor of the given side.
func NewTensor(side int) Tensor {
	return Tensor{Side: uint32(side), Cells: make([]int64, side*side)}
}

// At returns the cell at row r, column c.
func (t Tensor) At(r, c int) int64 {
	return t.Cells[r*int(t.Side)+c]
}

// Rows returns the tensor as a slice of rows sharing storage with Cells.
func (t Tensor) Rows() [][]int64 {
	side := int(t.Side)
	rows := make([][]int64, side)
	for r := range rows {
		rows[r] = t.Cells[r*side : (r+1)*side : (r+1)*side]
	}
	return rows
}

// Validate checks shape and range invariants.
func (t Tensor) Validate() error {
	if t.Side != Side16 && t.Side != Side28 {
		return fmt.Errorf("tensor: unsupported side %d", t.Side)
	}
	if len(t.Cells) != int(t.Side*t.Side) {
		return fmt.Errorf("tensor: side %d needs %d cells, got %d", t.Side, t.Side*t.Side, len(t.Cells))
	}
	for i, v := range t.Cells {
		if v < 0 || v > 255 {
			return fmt.Errorf("tensor: cell %d out of range: %d", i, v)
		}
	}
	return nil
}

// Equal reports whether two tensors have the same side and cells.
func (t Tensor) Equal(o Tensor) bool {
	if t.Side != o.Side || len(t.Cells) != len(o.Cells) {
		return false
	}
	for i := range t.Cells {
		if t.Cells[i] != o.Cells[i] {
			return false
		}
	}
	return true
}
