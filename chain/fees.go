package chain

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"math/bits"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/blockberries/digitchain"
)

// FeeData holds the fee parameters of one transaction. Either GasPrice
// (legacy) or MaxFeePerGas and MaxPriorityFeePerGas (EIP-1559) are set.
type FeeData struct {
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// FetchFees reads current fee parameters from b. When the latest
// header carries a base fee the EIP-1559 pair is returned with
// maxFee = 2*baseFee + tip; otherwise the suggested legacy gas price.
func FetchFees(ctx context.Context, b digitchain.Backend) (FeeData, error) {
	head, err := b.HeaderByNumber(ctx, nil)
	if err != nil {
		return FeeData{}, fmt.Errorf("latest header: %w", err)
	}
	if head.BaseFee != nil {
		tip, err := b.SuggestGasTipCap(ctx)
		if err != nil {
			return FeeData{}, fmt.Errorf("suggest tip: %w", err)
		}
		maxFee := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
		maxFee.Add(maxFee, tip)
		return FeeData{MaxFeePerGas: maxFee, MaxPriorityFeePerGas: tip}, nil
	}
	price, err := b.SuggestGasPrice(ctx)
	if err != nil {
		return FeeData{}, fmt.Errorf("suggest gas price: %w", err)
	}
	return FeeData{GasPrice: price}, nil
}

// Dynamic reports whether the fees are EIP-1559.
func (f FeeData) Dynamic() bool { return f.MaxFeePerGas != nil }

// CallMsg builds the estimation message for a call carrying these fees.
func (f FeeData) CallMsg(from, to common.Address, data []byte) ethereum.CallMsg {
	msg := ethereum.CallMsg{From: from, To: &to, Data: data}
	if f.Dynamic() {
		msg.GasFeeCap = f.MaxFeePerGas
		msg.GasTipCap = f.MaxPriorityFeePerGas
	} else {
		msg.GasPrice = f.GasPrice
	}
	return msg
}

// Transaction builds the unsigned transaction.
func (f FeeData) Transaction(chainID *big.Int, nonce uint64, to common.Address, gas uint64, data []byte) *gethtypes.Transaction {
	if f.Dynamic() {
		return gethtypes.NewTx(&gethtypes.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: f.MaxPriorityFeePerGas,
			GasFeeCap: f.MaxFeePerGas,
			Gas:       gas,
			To:        &to,
			Data:      data,
		})
	}
	return gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: f.GasPrice,
		Gas:      gas,
		To:       &to,
		Data:     data,
	})
}

// GasLimit pads a gas estimate by 20% to absorb estimation drift:
// floor(estimate * 1.2), computed exactly. Results past the uint64 range
// saturate at math.MaxUint64.
func GasLimit(estimate uint64) uint64 {
	hi, lo := bits.Mul64(estimate/5, 6)
	sum, carry := bits.Add64(lo, estimate%5*6/5, 0)
	if hi != 0 || carry != 0 {
		return math.MaxUint64
	}
	return sum
}
