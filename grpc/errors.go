package digitchaingrpc

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/blockberries/digitchain"
)

// errorDomain marks ErrorInfo details produced by this service.
const errorDomain = "digitchain"

var kindCodes = map[digitchain.Kind]codes.Code{
	digitchain.KindMalformedInput:      codes.InvalidArgument,
	digitchain.KindWrongNetwork:        codes.FailedPrecondition,
	digitchain.KindNotConnected:        codes.FailedPrecondition,
	digitchain.KindRemoteCallFailed:    codes.Unavailable,
	digitchain.KindEstimationFailed:    codes.Aborted,
	digitchain.KindSubmissionFailed:    codes.Aborted,
	digitchain.KindReceiptMissingEvent: codes.DataLoss,
}

// CodeFor returns the gRPC code a kind travels as.
func CodeFor(kind digitchain.Kind) codes.Code {
	if c, ok := kindCodes[kind]; ok {
		return c
	}
	return codes.Unknown
}

// toStatus converts a session error into a gRPC status error whose
// ErrorInfo reason is the error kind. Errors that already are gRPC
// statuses pass through.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	e, ok := digitchain.AsError(err)
	if !ok {
		if _, isStatus := status.FromError(err); isStatus {
			return err
		}
		return status.Error(codes.Internal, err.Error())
	}

	st := status.New(CodeFor(e.Kind), err.Error())
	info := &errdetails.ErrorInfo{
		Reason:   e.Kind.String(),
		Domain:   errorDomain,
		Metadata: map[string]string{"op": e.Op},
	}
	if e.Err != nil {
		info.Metadata["cause"] = e.Err.Error()
	}
	detailed, derr := st.WithDetails(info)
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// fromStatus restores a *digitchain.Error from a status produced by
// toStatus. Other errors are returned unchanged.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok || err == nil {
		return err
	}
	info := errorInfo(st.Proto().GetDetails())
	if info == nil {
		return err
	}
	out := &digitchain.Error{
		Kind: digitchain.ParseKind(info.GetReason()),
		Op:   info.GetMetadata()["op"],
	}
	if cause, ok := info.GetMetadata()["cause"]; ok {
		out.Err = errors.New(cause)
	}
	return out
}

// errorInfo returns the first ErrorInfo of this service's domain.
func errorInfo(details []*anypb.Any) *errdetails.ErrorInfo {
	for _, detail := range details {
		info := new(errdetails.ErrorInfo)
		if !detail.MessageIs(info) {
			continue
		}
		if err := detail.UnmarshalTo(info); err != nil || info.GetDomain() != errorDomain {
			continue
		}
		return info
	}
	return nil
}
