package grpcledger

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"daugherty.co/certify/ledger"
)

// Server exposes a ledger.Client backend over the Ledger gRPC service.
type Server struct {
	UnimplementedLedgerServer
	Backend ledger.Client
}

func (s *Server) Anchor(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.Backend == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing ledger backend")
	}
	var req anchorRequest
	if err := json.Unmarshal(in.GetValue(), &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed anchor request")
	}
	txID, err := s.Backend.Anchor(ctx, req.ContentHash, req.Metadata)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.String(txID), nil
}

func (s *Server) Fetch(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Backend == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing ledger backend")
	}
	rec, err := s.Backend.Fetch(ctx, in.GetValue())
	if err != nil {
		return nil, mapErr(err)
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, status.Error(codes.Internal, "record encoding failed")
	}
	return wrapperspb.Bytes(b), nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case ledger.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case ledger.IsUnavailable(err):
		return status.Error(codes.Unavailable, err.Error())
	case err == ledger.ErrInvalidHash || err == ledger.ErrInvalidTx:
		return status.Error(codes.InvalidArgument, err.Error())
	case err == ledger.ErrRejected:
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
