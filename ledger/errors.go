package ledger

import "errors"

var (
	ErrNotFound    = errors.New("ledger: transaction not found")
	ErrUnavailable = errors.New("ledger: unavailable")
	ErrInvalidHash = errors.New("ledger: invalid content hash")
	ErrInvalidTx   = errors.New("ledger: invalid transaction id")
	ErrRejected    = errors.New("ledger: anchor rejected")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsUnavailable reports whether err is a retriable availability failure.
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }
