package digitchaingrpc

import "github.com/blockberries/digitchain/types"

// Transport-specific request/response wrappers. Every per-session RPC
// names its session by the id returned from OpenSession.

// OpenSessionRequest selects a configured deployment. An empty name
// selects the server's default.
type OpenSessionRequest struct {
	Deployment string `cramberry:"1"`
}

// OpenSessionResponse carries the new session id.
type OpenSessionResponse struct {
	SessionID string              `cramberry:"1"`
	Status    types.SessionStatus `cramberry:"2"`
}

// SessionRequest addresses one session.
type SessionRequest struct {
	SessionID string `cramberry:"1"`
}

// Empty is the response of RPCs that return nothing.
type Empty struct{}

// PredictRequest wraps the parameters of Connection.Predict.
type PredictRequest struct {
	SessionID   string            `cramberry:"1"`
	Pixels      types.PixelBuffer `cramberry:"2"`
	PredictorID uint64            `cramberry:"3"`
}

// MintRequest wraps the parameters of Connection.Mint. The parameter
// document travels as uploaded; it is decoded on the server.
type MintRequest struct {
	SessionID string               `cramberry:"1"`
	Document  types.ParamsDocument `cramberry:"2"`
}
