package digitchaingrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/blockberries/digitchain"
	"github.com/blockberries/digitchain/types"
)

// Compile-time interface check.
var _ digitchain.Connection = (*Client)(nil)

// Client implements digitchain.Connection for one remote session over
// gRPC using cramberry serialization. Session errors come back as
// *digitchain.Error with their original kind.
type Client struct {
	cc        *grpc.ClientConn
	sessionID string
}

// Dial connects to a remote server and opens a session on deployment.
// An empty deployment selects the server's default.
func Dial(ctx context.Context, addr, deployment string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
	))
	cc, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("digitchain client: dial %s: %w", addr, err)
	}
	resp := new(OpenSessionResponse)
	if err := cc.Invoke(ctx, fullMethod("OpenSession"), &OpenSessionRequest{Deployment: deployment}, resp); err != nil {
		cc.Close()
		return nil, fmt.Errorf("digitchain client: open session: %w", fromStatus(err))
	}
	return &Client{cc: cc, sessionID: resp.SessionID}, nil
}

// SessionID returns the server-side session id.
func (c *Client) SessionID() string { return c.sessionID }

// Close ends the remote session and closes the connection.
func (c *Client) Close() error {
	_ = c.cc.Invoke(context.Background(), fullMethod("CloseSession"), c.req(), new(Empty))
	return c.cc.Close()
}

func (c *Client) req() *SessionRequest {
	return &SessionRequest{SessionID: c.sessionID}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	return fromStatus(c.cc.Invoke(ctx, fullMethod(method), req, resp))
}

func (c *Client) Connect(ctx context.Context) (types.SessionStatus, error) {
	resp := new(types.SessionStatus)
	if err := c.invoke(ctx, "Connect", c.req(), resp); err != nil {
		return types.SessionStatus{}, err
	}
	return *resp, nil
}

func (c *Client) Disconnect(ctx context.Context) error {
	return c.invoke(ctx, "Disconnect", c.req(), new(Empty))
}

func (c *Client) Status(ctx context.Context) (types.SessionStatus, error) {
	resp := new(types.SessionStatus)
	if err := c.invoke(ctx, "Status", c.req(), resp); err != nil {
		return types.SessionStatus{}, err
	}
	return *resp, nil
}

func (c *Client) Predict(ctx context.Context, pixels types.PixelBuffer, predictorID uint64) (types.Prediction, error) {
	req := &PredictRequest{SessionID: c.sessionID, Pixels: pixels, PredictorID: predictorID}
	resp := new(types.Prediction)
	if err := c.invoke(ctx, "Predict", req, resp); err != nil {
		return types.Prediction{}, err
	}
	return *resp, nil
}

func (c *Client) Mint(ctx context.Context, doc types.ParamsDocument) (types.MintReceipt, error) {
	req := &MintRequest{SessionID: c.sessionID, Document: doc}
	resp := new(types.MintReceipt)
	if err := c.invoke(ctx, "Mint", req, resp); err != nil {
		return types.MintReceipt{}, err
	}
	return *resp, nil
}

func (c *Client) Clear(ctx context.Context) error {
	return c.invoke(ctx, "Clear", c.req(), new(Empty))
}
