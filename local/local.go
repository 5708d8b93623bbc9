// Package local provides an in-process digitchain connection.
//
// For hosts compiled into the same binary as the session, this adapter
// exposes a chain.Session as a digitchain.Connection with no
// serialization overhead.
package local

import (
	"context"

	"github.com/blockberries/digitchain"
	"github.com/blockberries/digitchain/chain"
	"github.com/blockberries/digitchain/types"
)

// Compile-time interface check.
var _ digitchain.Connection = (*Connection)(nil)

// Connection wraps a chain.Session.
type Connection struct {
	session *chain.Session
}

// NewConnection creates an in-process connection for session.
func NewConnection(session *chain.Session) *Connection {
	return &Connection{session: session}
}

func (c *Connection) Connect(ctx context.Context) (types.SessionStatus, error) {
	return c.session.Connect(ctx)
}

func (c *Connection) Disconnect(context.Context) error {
	c.session.Disconnect()
	return nil
}

func (c *Connection) Status(context.Context) (types.SessionStatus, error) {
	return c.session.Status(), nil
}

func (c *Connection) Predict(ctx context.Context, pixels types.PixelBuffer, predictorID uint64) (types.Prediction, error) {
	return c.session.Predict(ctx, pixels, predictorID)
}

func (c *Connection) Mint(ctx context.Context, doc types.ParamsDocument) (types.MintReceipt, error) {
	return c.session.MintDocument(ctx, doc)
}

func (c *Connection) Clear(context.Context) error {
	c.session.Clear()
	return nil
}

// Close closes the session and its backends.
func (c *Connection) Close() error {
	c.session.Close()
	return nil
}

// Session returns the underlying session for advanced use cases.
func (c *Connection) Session() *chain.Session {
	return c.session
}
