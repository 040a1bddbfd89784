package verify

import (
	"context"
	"time"

	"daugherty.co/certify/ledger"
	"daugherty.co/certify/receipt"
)

// LedgerStatus is the outcome of checking a receipt against its anchor.
type LedgerStatus string

const (
	StatusAuthentic LedgerStatus = "AUTHENTIC"
	StatusTampered  LedgerStatus = "TAMPERED"
	StatusNotFound  LedgerStatus = "NOT_FOUND"
)

// LedgerResult reports a ledger verification. Both hashes are carried so a
// TAMPERED verdict can show exactly what diverged.
type LedgerResult struct {
	Status          LedgerStatus
	TxID            string
	LocalHash       string
	AnchoredHash    string
	BlockTimestamp  time.Time
	LocalSelfChecks bool
}

// Ledger recomputes the content hash of a local receipt document and compares
// it against the hash anchored under txID. A receipt whose embedded
// Content-Hash no longer matches its own body is TAMPERED regardless of what
// the ledger says.
func Ledger(ctx context.Context, client ledger.Client, txID string, receiptDoc []byte) (LedgerResult, error) {
	res := LedgerResult{TxID: txID}

	local, err := receipt.ContentHash(receiptDoc)
	if err != nil {
		return LedgerResult{}, err
	}
	res.LocalHash = local
	res.LocalSelfChecks = receipt.VerifyContentHash(receiptDoc) == nil

	rec, err := client.Fetch(ctx, txID)
	if err != nil {
		if ledger.IsNotFound(err) {
			res.Status = StatusNotFound
			return res, nil
		}
		return LedgerResult{}, err
	}
	res.AnchoredHash = rec.ContentHash
	res.BlockTimestamp = rec.BlockTimestamp

	if !res.LocalSelfChecks || rec.ContentHash != local {
		res.Status = StatusTampered
		return res, nil
	}
	res.Status = StatusAuthentic
	return res, nil
}
