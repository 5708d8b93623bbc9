package digitchaintest

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/blockberries/digitchain/contract"
	"github.com/blockberries/digitchain/params"
	"github.com/blockberries/digitchain/types"
)

// SolidBuffer returns a w x h buffer filled with one RGBA color.
func SolidBuffer(w, h int, r, g, b, a uint8) types.PixelBuffer {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, a
	}
	return types.PixelBuffer{Width: uint32(w), Height: uint32(h), Pix: pix}
}

// TransparentBuffer returns an empty canvas: every pixel zero.
func TransparentBuffer(w, h int) types.PixelBuffer {
	return types.PixelBuffer{Width: uint32(w), Height: uint32(h), Pix: make([]byte, w*h*4)}
}

// SetPixel overwrites one pixel in place.
func SetPixel(buf types.PixelBuffer, x, y int, r, g, b, a uint8) {
	i := (y*int(buf.Width) + x) * 4
	buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2], buf.Pix[i+3] = r, g, b, a
}

// DigitBuffer returns a 28x28 drawing of a "1": a black vertical
// stroke on a white canvas. Both encoder modes accept it.
func DigitBuffer() types.PixelBuffer {
	buf := SolidBuffer(types.Side28, types.Side28, 255, 255, 255, 255)
	for y := 4; y < 24; y++ {
		for x := 13; x < 16; x++ {
			SetPixel(buf, x, y, 0, 0, 0, 255)
		}
	}
	return buf
}

// LabelOutput ABI-encodes an inference return value.
func LabelOutput(label *big.Int) []byte {
	out, err := contract.ABI().Methods[contract.MethodInference].Outputs.Pack(label)
	if err != nil {
		panic(err)
	}
	return out
}

// TransferReceipt returns a successful receipt whose first log is a
// Transfer event minting tokenID to a fixed address.
func TransferReceipt(txHash common.Hash, tokenID *big.Int) *gethtypes.Receipt {
	return &gethtypes.Receipt{
		Status:      gethtypes.ReceiptStatusSuccessful,
		TxHash:      txHash,
		BlockNumber: big.NewInt(7),
		GasUsed:     90_000,
		Logs: []*gethtypes.Log{{
			Topics: []common.Hash{
				contract.TransferTopic(),
				{},
				common.BytesToHash(common.HexToAddress("0x00000000000000000000000000000000000000aa").Bytes()),
				common.BigToHash(tokenID),
			},
			TxHash: txHash,
		}},
	}
}

// SampleParamsJSON is a small well-formed parameter document.
const SampleParamsJSON = `{
  "accuracy": 98.1,
  "conv1": [[[[1, -2], [3, 4]]], [[[5, 6], [7, -8]]]],
  "conv1_bias": [10, -11],
  "conv2": [[[[1]], [[2]]]],
  "conv2_bias": [0],
  "fc": [[1, 2, 3], [4, 5, 6]],
  "fc_bias": [7, 8]
}`

// SampleParamsDocument wraps SampleParamsJSON as an upload.
func SampleParamsDocument() types.ParamsDocument {
	return types.ParamsDocument{Format: types.FormatJSON, Name: "sample.json", Data: []byte(SampleParamsJSON)}
}

// SampleParams decodes SampleParamsJSON.
func SampleParams() *params.ModelParameters {
	p, err := params.DecodeJSON(strings.NewReader(SampleParamsJSON))
	if err != nil {
		panic(err)
	}
	return p
}
