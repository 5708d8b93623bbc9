package digitchaingrpc

import (
	"context"
	"fmt"

	"github.com/blockberries/digitchain/types"

	"google.golang.org/grpc"
)

const serviceName = "github.com/blockberries/digitchain.v1.DigitChainService"

// DigitChainServiceServer is the server-side interface for the
// DigitChain gRPC service.
type DigitChainServiceServer interface {
	OpenSession(context.Context, *OpenSessionRequest) (*OpenSessionResponse, error)
	CloseSession(context.Context, *SessionRequest) (*Empty, error)
	Connect(context.Context, *SessionRequest) (*types.SessionStatus, error)
	Disconnect(context.Context, *SessionRequest) (*Empty, error)
	Status(context.Context, *SessionRequest) (*types.SessionStatus, error)
	Predict(context.Context, *PredictRequest) (*types.Prediction, error)
	Mint(context.Context, *MintRequest) (*types.MintReceipt, error)
	Clear(context.Context, *SessionRequest) (*Empty, error)
}

// RegisterDigitChainServiceServer registers srv on a gRPC server.
func RegisterDigitChainServiceServer(s *grpc.Server, srv DigitChainServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// unary adapts a typed method to a grpc.MethodDesc handler, honoring
// any configured interceptor.
func unary[Req any, Resp any](method string, call func(DigitChainServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DigitChainServiceServer), ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(DigitChainServiceServer), ctx, req.(*Req))
			})
		},
	}
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

// serviceDesc is the manual gRPC service descriptor.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*DigitChainServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("OpenSession", DigitChainServiceServer.OpenSession),
		unary("CloseSession", DigitChainServiceServer.CloseSession),
		unary("Connect", DigitChainServiceServer.Connect),
		unary("Disconnect", DigitChainServiceServer.Disconnect),
		unary("Status", DigitChainServiceServer.Status),
		unary("Predict", DigitChainServiceServer.Predict),
		unary("Mint", DigitChainServiceServer.Mint),
		unary("Clear", DigitChainServiceServer.Clear),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "github.com/blockberries/digitchain/v1/service.cram",
}
