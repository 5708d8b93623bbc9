// Package params decodes uploaded model parameter files into the
// arguments of the predictor contract's mint call.
//
// The six tensors are passed through unchanged. Only document
// well-formedness is checked here (every field present, correct
// nesting depth, integers only, no empty arrays); whether the shapes
// fit the on-chain network is for the contract to decide.
package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"github.com/blockberries/digitchain"
	"github.com/blockberries/digitchain/types"
)

// ModelParameters holds the weights and biases of the two convolutional
// layers and the fully connected layer, in mint argument order.
type ModelParameters struct {
	Conv1     [][][][]*big.Int `json:"conv1"`
	Conv1Bias []*big.Int       `json:"conv1_bias"`
	Conv2     [][][][]*big.Int `json:"conv2"`
	Conv2Bias []*big.Int       `json:"conv2_bias"`
	FC        [][]*big.Int     `json:"fc"`
	FCBias    []*big.Int       `json:"fc_bias"`
}

// Field names as they appear in parameter documents.
const (
	FieldConv1     = "conv1"
	FieldConv1Bias = "conv1_bias"
	FieldConv2     = "conv2"
	FieldConv2Bias = "conv2_bias"
	FieldFC        = "fc"
	FieldFCBias    = "fc_bias"
)

// Fields lists the document fields in mint argument order.
var Fields = []string{FieldConv1, FieldConv1Bias, FieldConv2, FieldConv2Bias, FieldFC, FieldFCBias}

// Args returns the parameters in mint argument order.
func (p *ModelParameters) Args() []any {
	return []any{p.Conv1, p.Conv1Bias, p.Conv2, p.Conv2Bias, p.FC, p.FCBias}
}

// Validate checks that every field is present and holds only non-nil
// integers, with no empty arrays at any depth.
func (p *ModelParameters) Validate() error {
	if err := check4(FieldConv1, p.Conv1); err != nil {
		return err
	}
	if err := check1(FieldConv1Bias, p.Conv1Bias); err != nil {
		return err
	}
	if err := check4(FieldConv2, p.Conv2); err != nil {
		return err
	}
	if err := check1(FieldConv2Bias, p.Conv2Bias); err != nil {
		return err
	}
	if err := check2(FieldFC, p.FC); err != nil {
		return err
	}
	return check1(FieldFCBias, p.FCBias)
}

func check1(path string, v []*big.Int) error {
	if len(v) == 0 {
		return fmt.Errorf("%s: missing or empty", path)
	}
	for i, x := range v {
		if x == nil {
			return fmt.Errorf("%s[%d]: null value", path, i)
		}
	}
	return nil
}

func check2(path string, v [][]*big.Int) error {
	if len(v) == 0 {
		return fmt.Errorf("%s: missing or empty", path)
	}
	for i, row := range v {
		if err := check1(fmt.Sprintf("%s[%d]", path, i), row); err != nil {
			return err
		}
	}
	return nil
}

func check4(path string, v [][][][]*big.Int) error {
	if len(v) == 0 {
		return fmt.Errorf("%s: missing or empty", path)
	}
	for i, a := range v {
		if len(a) == 0 {
			return fmt.Errorf("%s[%d]: empty", path, i)
		}
		for j, b := range a {
			if err := check2(fmt.Sprintf("%s[%d][%d]", path, i, j), b); err != nil {
				return err
			}
		}
	}
	return nil
}

// DecodeJSON reads a JSON parameter document. Unknown top-level fields
// (training metadata and the like) are ignored.
func DecodeJSON(r io.Reader) (*ModelParameters, error) {
	var p ModelParameters
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, malformed(fmt.Errorf("json: %w", err))
	}
	if err := p.Validate(); err != nil {
		return nil, malformed(err)
	}
	return &p, nil
}

// Decode dispatches on doc.Format. An empty format is sniffed: a
// document starting with '{' is JSON, anything else safetensors.
func Decode(doc types.ParamsDocument) (*ModelParameters, error) {
	format := doc.Format
	if format == "" {
		format = sniff(doc.Data)
	}
	switch format {
	case types.FormatJSON:
		return DecodeJSON(bytes.NewReader(doc.Data))
	case types.FormatSafetensors:
		return DecodeSafetensors(bytes.NewReader(doc.Data))
	default:
		return nil, malformed(fmt.Errorf("unknown format %q", doc.Format))
	}
}

func sniff(data []byte) string {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return types.FormatJSON
	}
	return types.FormatSafetensors
}

func malformed(err error) error {
	return digitchain.NewError(digitchain.KindMalformedInput, "decode parameters", err)
}
