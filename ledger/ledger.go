// Package ledger defines the anchoring boundary: an opaque append-only
// publication service that timestamps receipt content hashes. The core never
// implements ledger networking, consensus, or fees; it only anchors and
// fetches.
package ledger

import (
	"context"
	"sort"
	"time"
)

// Metadata is the minimal whitelisted payload published beside a content
// hash. Nothing else crosses the boundary.
type Metadata struct {
	EngineVersion    string `json:"engine_version"`
	ValidationPassed bool   `json:"validation_passed"`
	Fingerprint      string `json:"fingerprint"`
}

// Record is an on-chain payload as returned by a fetch.
type Record struct {
	ContentHash    string    `json:"content_hash"`
	Metadata       Metadata  `json:"metadata"`
	BlockTimestamp time.Time `json:"block_timestamp"`
}

// AnchorEntry is a locally retained reference to a confirmed anchor.
// It is immutable once confirmed by the ledger.
type AnchorEntry struct {
	ContentHash string    `json:"content_hash"`
	Metadata    Metadata  `json:"metadata"`
	TxID        string    `json:"transaction_id"`
	AnchoredAt  time.Time `json:"anchored_at"`
}

// Client is the anchoring contract.
//
// Anchor MUST be idempotent in effect: resubmitting the same content hash may
// create a second distinct transaction, but both anchor the same certified
// fact. Consumers deduplicate by content hash, never by transaction id.
// Fetch MUST return ErrNotFound for unknown transaction ids and is safe to
// retry freely.
type Client interface {
	Anchor(ctx context.Context, contentHash string, md Metadata) (txID string, err error)
	Fetch(ctx context.Context, txID string) (Record, error)
}

// Dedupe collapses anchors of the same content hash into one certified fact,
// keeping the earliest anchor (ties broken by transaction id). Output order
// is deterministic regardless of input order.
func Dedupe(entries []AnchorEntry) []AnchorEntry {
	sorted := append([]AnchorEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].AnchoredAt.Equal(sorted[j].AnchoredAt) {
			return sorted[i].AnchoredAt.Before(sorted[j].AnchoredAt)
		}
		return sorted[i].TxID < sorted[j].TxID
	})
	seen := map[string]bool{}
	var out []AnchorEntry
	for _, e := range sorted {
		if seen[e.ContentHash] {
			continue
		}
		seen[e.ContentHash] = true
		out = append(out, e)
	}
	return out
}
