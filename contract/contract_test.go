package contract_test

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/digitchain/contract"
	"github.com/blockberries/digitchain/params"
	"github.com/blockberries/digitchain/types"
)

func TestPackInference_Flat16(t *testing.T) {
	tensor := types.NewTensor(types.Side16)
	for i := range tensor.Cells {
		tensor.Cells[i] = int64(i % 256)
	}

	method, data, err := contract.PackInference(1, tensor)
	require.NoError(t, err)
	assert.Equal(t, contract.MethodPredictDigit, method)

	m := contract.ABI().Methods[method]
	assert.Equal(t, m.ID, data[:4])

	args, err := m.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, int64(1), args[0].(*big.Int).Int64())
	vec := args[1].([]*big.Int)
	require.Len(t, vec, 256)
	for i, v := range vec {
		require.Equal(t, tensor.Cells[i], v.Int64(), "cell %d", i)
	}
}

func TestPackInference_Matrix28(t *testing.T) {
	tensor := types.NewTensor(types.Side28)
	tensor.Cells[28*3+5] = 200

	method, data, err := contract.PackInference(7, tensor)
	require.NoError(t, err)
	assert.Equal(t, contract.MethodInference, method)

	args, err := contract.ABI().Methods[method].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	matrix := args[1].([][]*big.Int)
	require.Len(t, matrix, 28)
	for _, row := range matrix {
		require.Len(t, row, 28)
	}
	assert.Equal(t, int64(200), matrix[3][5].Int64())
	assert.Equal(t, int64(0), matrix[5][3].Int64())
}

func TestPackInference_InvalidTensor(t *testing.T) {
	_, _, err := contract.PackInference(1, types.Tensor{Side: 20, Cells: make([]int64, 400)})
	assert.Error(t, err)
}

func TestUnpackLabel(t *testing.T) {
	out, err := contract.ABI().Methods[contract.MethodInference].Outputs.Pack(big.NewInt(4))
	require.NoError(t, err)

	label, err := contract.UnpackLabel(contract.MethodInference, out)
	require.NoError(t, err)
	assert.Equal(t, int64(4), label.Int64())

	_, err = contract.UnpackLabel(contract.MethodInference, []byte{1, 2})
	assert.Error(t, err)
}

func TestPackMint_ArgumentOrder(t *testing.T) {
	doc := `{"conv1":[[[[1]]]],"conv1_bias":[2],"conv2":[[[[3]]]],"conv2_bias":[4],"fc":[[5]],"fc_bias":[6]}`
	p, err := params.DecodeJSON(strings.NewReader(doc))
	require.NoError(t, err)

	data, err := contract.PackMint(p)
	require.NoError(t, err)

	m := contract.ABI().Methods[contract.MethodMint]
	args, err := m.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, args, 6)
	assert.Equal(t, int64(1), args[0].([][][][]*big.Int)[0][0][0][0].Int64())
	assert.Equal(t, int64(2), args[1].([]*big.Int)[0].Int64())
	assert.Equal(t, int64(3), args[2].([][][][]*big.Int)[0][0][0][0].Int64())
	assert.Equal(t, int64(4), args[3].([]*big.Int)[0].Int64())
	assert.Equal(t, int64(5), args[4].([][]*big.Int)[0][0].Int64())
	assert.Equal(t, int64(6), args[5].([]*big.Int)[0].Int64())
}

func TestTransferTopic(t *testing.T) {
	want := crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	assert.Equal(t, want, contract.TransferTopic())
}

func TestMintedID(t *testing.T) {
	receipt := &gethtypes.Receipt{
		Status: gethtypes.ReceiptStatusSuccessful,
		Logs: []*gethtypes.Log{{
			Topics: []common.Hash{
				contract.TransferTopic(),
				{},
				common.BytesToHash(common.HexToAddress("0x00000000000000000000000000000000000000aa").Bytes()),
				common.HexToHash("0x2a"),
			},
		}},
	}
	id, err := contract.MintedID(receipt)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id.Int64())
}

func TestMintedID_Missing(t *testing.T) {
	_, err := contract.MintedID(&gethtypes.Receipt{})
	assert.Error(t, err, "no logs")

	_, err = contract.MintedID(&gethtypes.Receipt{Logs: []*gethtypes.Log{{Topics: []common.Hash{contract.TransferTopic()}}}})
	assert.Error(t, err, "too few topics")

	_, err = contract.MintedID(nil)
	assert.Error(t, err)
}
