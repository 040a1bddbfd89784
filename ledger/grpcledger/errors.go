package grpcledger

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"daugherty.co/certify/ledger"
)

func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ledger.ErrUnavailable
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.NotFound:
		return ledger.ErrNotFound
	case codes.Unavailable, codes.DeadlineExceeded:
		return ledger.ErrUnavailable
	case codes.InvalidArgument:
		// Server uses InvalidArgument for malformed hashes and tx ids.
		switch st.Message() {
		case ledger.ErrInvalidTx.Error():
			return ledger.ErrInvalidTx
		default:
			return ledger.ErrInvalidHash
		}
	case codes.FailedPrecondition:
		return ledger.ErrRejected
	default:
		return err
	}
}
