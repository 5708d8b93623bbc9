package types

// Prediction is the outcome of an inference call.
type Prediction struct {
	// Label is the predicted digit.
	Label uint64 `cramberry:"1"`
	// Tensor is exactly what was sent to the predictor.
	Tensor      Tensor `cramberry:"2"`
	PredictorID uint64 `cramberry:"3"`
	// ElapsedMillis is the wall time of the remote call.
	ElapsedMillis int64 `cramberry:"4"`
}

// MintReceipt is the outcome of a successful mint.
type MintReceipt struct {
	// MintedID is the new predictor id as a decimal string; ids are
	// uint256 on chain.
	MintedID    string `cramberry:"1"`
	TxHash      string `cramberry:"2"`
	BlockNumber uint64 `cramberry:"3"`
	GasLimit    uint64 `cramberry:"4"`
	GasUsed     uint64 `cramberry:"5"`
	// ParamsCID is the content id of the submitted parameters.
	ParamsCID string `cramberry:"6"`
}

// ParamsDocument is an uploaded model parameter file.
type ParamsDocument struct {
	// Format is "json", "safetensors" or empty to sniff the content.
	Format string `cramberry:"1"`
	Name   string `cramberry:"2"`
	Data   []byte `cramberry:"3"`
}

// Parameter document formats.
const (
	FormatJSON        = "json"
	FormatSafetensors = "safetensors"
)
