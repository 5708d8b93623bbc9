// Package contract binds the predictor contract: calldata for the
// read-only inference calls and the mint call, result decoding, and
// extraction of the minted id from a receipt.
package contract

import (
	_ "embed"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/blockberries/digitchain/params"
	"github.com/blockberries/digitchain/types"
)

// Method names in the contract ABI.
const (
	// MethodInference takes a 28x28 int256 matrix.
	MethodInference = "inference"
	// MethodPredictDigit takes a flat int256[256] vector.
	MethodPredictDigit = "predictDigit"
	MethodMint         = "mint"
	EventTransfer      = "Transfer"
)

// mintedIDTopic is the position of the token id among the Transfer
// event topics: signature, from, to, tokenId.
const mintedIDTopic = 3

//go:embed predictor.abi.json
var abiJSON string

var parsed = mustParseABI(abiJSON)

func mustParseABI(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("contract: embedded ABI: %v", err))
	}
	return a
}

// ABI returns the parsed predictor contract ABI.
func ABI() abi.ABI { return parsed }

// TransferTopic is the keccak hash of the Transfer event signature.
func TransferTopic() common.Hash { return parsed.Events[EventTransfer].ID }

// InferenceMethod returns the contract method that accepts t.
func InferenceMethod(t types.Tensor) (string, error) {
	switch t.Side {
	case types.Side16:
		return MethodPredictDigit, nil
	case types.Side28:
		return MethodInference, nil
	default:
		return "", fmt.Errorf("contract: no inference method for side %d", t.Side)
	}
}

// PackInference encodes an inference call for predictorID. 16x16
// tensors go to predictDigit as a flat vector, 28x28 tensors go to
// inference as rows.
func PackInference(predictorID uint64, t types.Tensor) (method string, data []byte, err error) {
	if err := t.Validate(); err != nil {
		return "", nil, fmt.Errorf("contract: %w", err)
	}
	method, err = InferenceMethod(t)
	if err != nil {
		return "", nil, err
	}
	id := new(big.Int).SetUint64(predictorID)

	var arg any
	switch method {
	case MethodPredictDigit:
		arg = bigVector(t.Cells)
	default:
		rows := t.Rows()
		matrix := make([][]*big.Int, len(rows))
		for i, row := range rows {
			matrix[i] = bigVector(row)
		}
		arg = matrix
	}

	data, err = parsed.Pack(method, id, arg)
	if err != nil {
		return "", nil, fmt.Errorf("contract: pack %s: %w", method, err)
	}
	return method, data, nil
}

func bigVector(cells []int64) []*big.Int {
	out := make([]*big.Int, len(cells))
	for i, v := range cells {
		out[i] = big.NewInt(v)
	}
	return out
}

// UnpackLabel decodes the uint256 returned by an inference method.
func UnpackLabel(method string, output []byte) (*big.Int, error) {
	values, err := parsed.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("contract: unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("contract: %s returned %d values", method, len(values))
	}
	label, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("contract: %s returned %T", method, values[0])
	}
	return label, nil
}

// PackMint encodes a mint call with the six parameter tensors in
// argument order.
func PackMint(p *params.ModelParameters) ([]byte, error) {
	data, err := parsed.Pack(MethodMint, p.Args()...)
	if err != nil {
		return nil, fmt.Errorf("contract: pack mint: %w", err)
	}
	return data, nil
}

// MintedID reads the token id from the fourth topic of the first log
// entry of a mint receipt.
func MintedID(receipt *gethtypes.Receipt) (*big.Int, error) {
	if receipt == nil {
		return nil, fmt.Errorf("contract: nil receipt")
	}
	if len(receipt.Logs) == 0 || receipt.Logs[0] == nil {
		return nil, fmt.Errorf("contract: receipt %s has no logs", receipt.TxHash.Hex())
	}
	topics := receipt.Logs[0].Topics
	if len(topics) <= mintedIDTopic {
		return nil, fmt.Errorf("contract: first log of %s has %d topics, want at least %d",
			receipt.TxHash.Hex(), len(topics), mintedIDTopic+1)
	}
	return new(big.Int).SetBytes(topics[mintedIDTopic].Bytes()), nil
}
