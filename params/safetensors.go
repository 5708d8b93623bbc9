package params

import (
	"fmt"
	"io"
	"math/big"

	"github.com/nlpodyssey/safetensors"
	"github.com/nlpodyssey/safetensors/dtype"
)

// headerSizeLimit bounds the safetensors JSON header.
const headerSizeLimit = 1 << 20

var ranks = map[string]int{
	FieldConv1:     4,
	FieldConv1Bias: 1,
	FieldConv2:     4,
	FieldConv2Bias: 1,
	FieldFC:        2,
	FieldFCBias:    1,
}

// DecodeSafetensors reads the six parameter tensors from a safetensors
// archive. Tensors must use an integer dtype and the rank implied by
// their field.
func DecodeSafetensors(r io.Reader) (*ModelParameters, error) {
	st, err := safetensors.ReadAll(r, headerSizeLimit)
	if err != nil {
		return nil, malformed(fmt.Errorf("safetensors: %w", err))
	}

	flat := make(map[string][]*big.Int, len(ranks))
	shapes := make(map[string][]int, len(ranks))
	for _, t := range st.Tensors {
		rank, ok := ranks[t.Name()]
		if !ok {
			continue
		}
		if len(t.Shape()) != rank {
			return nil, malformed(fmt.Errorf("%s: rank %d, want %d", t.Name(), len(t.Shape()), rank))
		}
		values, err := integers(t)
		if err != nil {
			return nil, malformed(fmt.Errorf("%s: %w", t.Name(), err))
		}
		flat[t.Name()] = values
		shapes[t.Name()] = t.Shape()
	}
	for _, name := range Fields {
		if _, ok := flat[name]; !ok {
			return nil, malformed(fmt.Errorf("%s: missing tensor", name))
		}
	}

	p := &ModelParameters{
		Conv1:     nest4(flat[FieldConv1], shapes[FieldConv1]),
		Conv1Bias: flat[FieldConv1Bias],
		Conv2:     nest4(flat[FieldConv2], shapes[FieldConv2]),
		Conv2Bias: flat[FieldConv2Bias],
		FC:        nest2(flat[FieldFC], shapes[FieldFC]),
		FCBias:    flat[FieldFCBias],
	}
	if err := p.Validate(); err != nil {
		return nil, malformed(err)
	}
	return p, nil
}

func integers(t safetensors.Tensor) ([]*big.Int, error) {
	if !IsIntegerDType(t.DType()) {
		return nil, fmt.Errorf("unsupported dtype %s", t.DType())
	}
	switch data := t.Data().(type) {
	case []int64:
		return convert(data), nil
	case []int32:
		return convert(data), nil
	case []int16:
		return convert(data), nil
	case []int8:
		return convert(data), nil
	case []uint8:
		return convert(data), nil
	default:
		return nil, fmt.Errorf("unexpected data type %T", data)
	}
}

func convert[T int64 | int32 | int16 | int8 | uint8](data []T) []*big.Int {
	out := make([]*big.Int, len(data))
	for i, v := range data {
		out[i] = big.NewInt(int64(v))
	}
	return out
}

func nest2(flat []*big.Int, shape []int) [][]*big.Int {
	rows, cols := shape[0], shape[1]
	out := make([][]*big.Int, rows)
	for i := range out {
		out[i] = flat[i*cols : (i+1)*cols]
	}
	return out
}

func nest4(flat []*big.Int, shape []int) [][][][]*big.Int {
	d0, d1, d2, d3 := shape[0], shape[1], shape[2], shape[3]
	out := make([][][][]*big.Int, d0)
	for a := range out {
		out[a] = make([][][]*big.Int, d1)
		for b := range out[a] {
			out[a][b] = make([][]*big.Int, d2)
			for c := range out[a][b] {
				off := ((a*d1+b)*d2 + c) * d3
				out[a][b][c] = flat[off : off+d3]
			}
		}
	}
	return out
}

// IsIntegerDType reports whether dt can hold parameter values.
func IsIntegerDType(dt dtype.DType) bool {
	switch dt {
	case dtype.I64, dtype.I32, dtype.I16, dtype.I8, dtype.U8:
		return true
	default:
		return false
	}
}
