package devchain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/blockberries/digitchain/contract"
	"github.com/blockberries/digitchain/params"
	"github.com/blockberries/digitchain/types"
)

// RevertError is returned by calls and estimates the contract rejects.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string { return "execution reverted: " + e.Reason }

func revert(format string, args ...any) error {
	return &RevertError{Reason: fmt.Sprintf(format, args...)}
}

// predictor is a registered model. The on-chain network is replaced by
// a fixed weighted sum offset by the model's output biases, enough to
// make labels deterministic and depend on both tensor and predictor.
type predictor struct {
	owner common.Address
	seed  int64
}

func newPredictor(owner common.Address, p *params.ModelParameters) predictor {
	sum := new(big.Int)
	for _, b := range p.FCBias {
		sum.Add(sum, b)
	}
	return predictor{owner: owner, seed: new(big.Int).Mod(sum, big.NewInt(10)).Int64()}
}

func (p predictor) classify(cells []int64) int64 {
	sum := p.seed
	for i, v := range cells {
		sum += v * int64(i%7+1)
	}
	return sum % 10
}

func unpack(data []byte) (*abi.Method, []any, error) {
	if len(data) < 4 {
		return nil, nil, revert("missing selector")
	}
	parsed := contract.ABI()
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, nil, revert("unknown selector %x", data[:4])
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, revert("invalid calldata for %s", method.Name)
	}
	return method, args, nil
}

func isMint(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == string(contract.ABI().Methods[contract.MethodMint].ID)
}

// view executes a read-only call. Callers hold mu.
func (c *Chain) view(data []byte) ([]byte, error) {
	method, args, err := unpack(data)
	if err != nil {
		return nil, err
	}

	var cells []int64
	switch method.Name {
	case contract.MethodInference:
		rows, ok := args[1].([][]*big.Int)
		if !ok || len(rows) != types.Side28 {
			return nil, revert("input must be 28x28")
		}
		for _, row := range rows {
			if len(row) != types.Side28 {
				return nil, revert("input must be 28x28")
			}
			if cells, err = appendPixels(cells, row); err != nil {
				return nil, err
			}
		}
	case contract.MethodPredictDigit:
		vec, ok := args[1].([]*big.Int)
		if !ok || len(vec) != types.Side16*types.Side16 {
			return nil, revert("input must have 256 cells")
		}
		if cells, err = appendPixels(cells, vec); err != nil {
			return nil, err
		}
	case contract.MethodMint:
		if _, err := decodeMint(data); err != nil {
			return nil, err
		}
		return method.Outputs.Pack(new(big.Int).SetUint64(c.nextID))
	default:
		return nil, revert("method %s not callable", method.Name)
	}

	id, ok := args[0].(*big.Int)
	if !ok || !id.IsUint64() {
		return nil, revert("nonexistent predictor")
	}
	pred, ok := c.predictors[id.Uint64()]
	if !ok {
		return nil, revert("nonexistent predictor %s", id)
	}
	return method.Outputs.Pack(big.NewInt(pred.classify(cells)))
}

func appendPixels(dst []int64, src []*big.Int) ([]int64, error) {
	for _, v := range src {
		if v.Sign() < 0 || v.Cmp(big.NewInt(255)) > 0 {
			return nil, revert("pixel %s out of range", v)
		}
		dst = append(dst, v.Int64())
	}
	return dst, nil
}

// decodeMint recovers the parameters from mint calldata and applies
// the same well-formedness checks as an uploaded document.
func decodeMint(data []byte) (*params.ModelParameters, error) {
	method, args, err := unpack(data)
	if err != nil {
		return nil, err
	}
	if method.Name != contract.MethodMint || len(args) != len(params.Fields) {
		return nil, revert("not a mint call")
	}
	p := &params.ModelParameters{}
	var ok [6]bool
	p.Conv1, ok[0] = args[0].([][][][]*big.Int)
	p.Conv1Bias, ok[1] = args[1].([]*big.Int)
	p.Conv2, ok[2] = args[2].([][][][]*big.Int)
	p.Conv2Bias, ok[3] = args[3].([]*big.Int)
	p.FC, ok[4] = args[4].([][]*big.Int)
	p.FCBias, ok[5] = args[5].([]*big.Int)
	for i, good := range ok {
		if !good {
			return nil, revert("malformed %s", params.Fields[i])
		}
	}
	if err := p.Validate(); err != nil {
		return nil, revert("malformed parameters: %v", err)
	}
	return p, nil
}

func transferLog(addr, to common.Address, id uint64, r *gethtypes.Receipt) *gethtypes.Log {
	return &gethtypes.Log{
		Address: addr,
		Topics: []common.Hash{
			contract.TransferTopic(),
			{},
			common.BytesToHash(to.Bytes()),
			common.BigToHash(new(big.Int).SetUint64(id)),
		},
		BlockNumber: r.BlockNumber.Uint64(),
		TxHash:      r.TxHash,
	}
}
