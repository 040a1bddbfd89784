// Package pebbleledger implements the durable ledger store used by the
// anchor daemon, backed by Pebble.
package pebbleledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"daugherty.co/certify/digest"
	"daugherty.co/certify/ledger"
)

// Key layout.
var (
	prefixTx = []byte("tx:") // tx:<txid> -> record JSON
	keySeq   = []byte("m:seq")
)

// Ledger is a Pebble-backed ledger. Anchors are committed synchronously:
// a returned transaction id means the record is on disk.
type Ledger struct {
	db *pebble.DB

	mu sync.Mutex // serializes sequence allocation
}

// Open opens (creating if needed) a ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) Anchor(ctx context.Context, contentHash string, md ledger.Metadata) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := digest.Decode(contentHash); err != nil {
		return "", ledger.ErrInvalidHash
	}

	rec := ledger.Record{
		ContentHash:    contentHash,
		Metadata:       md,
		BlockTimestamp: time.Now().UTC(),
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seq, err := l.nextSeq()
	if err != nil {
		return "", err
	}
	txID := fmt.Sprintf("tx-%08d", seq)

	batch := l.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(append(prefixTx, txID...), b, nil); err != nil {
		return "", err
	}
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	if err := batch.Set(keySeq, seqBuf[:], nil); err != nil {
		return "", err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return "", err
	}
	return txID, nil
}

func (l *Ledger) Fetch(ctx context.Context, txID string) (ledger.Record, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Record{}, err
	}
	value, closer, err := l.db.Get(append(prefixTx, txID...))
	if err == pebble.ErrNotFound {
		return ledger.Record{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Record{}, err
	}
	defer closer.Close()

	var rec ledger.Record
	if err := json.Unmarshal(value, &rec); err != nil {
		return ledger.Record{}, fmt.Errorf("pebbleledger: corrupt record %s: %w", txID, err)
	}
	return rec, nil
}

func (l *Ledger) nextSeq() (uint64, error) {
	value, closer, err := l.db.Get(keySeq)
	if err == pebble.ErrNotFound {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	if len(value) != 8 {
		return 0, fmt.Errorf("pebbleledger: corrupt seq key")
	}
	return binary.BigEndian.Uint64(value) + 1, nil
}
