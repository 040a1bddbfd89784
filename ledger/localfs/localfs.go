// Package localfs implements a filesystem-backed ledger for offline
// development and testing. It honors the anchoring contract (append-only,
// immutable records, distinct transaction ids per submission) without any
// network dependency.
package localfs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"daugherty.co/certify/digest"
	"daugherty.co/certify/ledger"
)

// Ledger stores one immutable record file per transaction under root.
type Ledger struct {
	root string

	mu  sync.Mutex
	seq uint64
}

// New opens (creating if needed) a ledger rooted at root.
func New(root string) (*Ledger, error) {
	if root == "" {
		return nil, fmt.Errorf("localfs: root directory is required")
	}
	if err := os.MkdirAll(filepath.Join(root, "tx"), 0o755); err != nil {
		return nil, err
	}
	l := &Ledger{root: root}
	if err := l.loadSeq(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) Anchor(ctx context.Context, contentHash string, md ledger.Metadata) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := digest.Decode(contentHash); err != nil {
		return "", ledger.ErrInvalidHash
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec := ledger.Record{
		ContentHash:    contentHash,
		Metadata:       md,
		BlockTimestamp: time.Now().UTC(),
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}

	// Each submission gets a fresh transaction, even for a content hash seen
	// before; deduplication is the consumer's job.
	for {
		l.seq++
		txID := fmt.Sprintf("tx-%08d", l.seq)
		f, err := os.OpenFile(l.txPath(txID), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", err
		}
		if _, err := f.Write(b); err != nil {
			_ = f.Close()
			_ = os.Remove(l.txPath(txID))
			return "", err
		}
		if err := f.Sync(); err != nil {
			_ = f.Close()
			_ = os.Remove(l.txPath(txID))
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		if err := l.saveSeq(); err != nil {
			return "", err
		}
		return txID, nil
	}
}

func (l *Ledger) Fetch(ctx context.Context, txID string) (ledger.Record, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Record{}, err
	}
	if !validTxID(txID) {
		return ledger.Record{}, ledger.ErrInvalidTx
	}
	b, err := os.ReadFile(l.txPath(txID))
	if err != nil {
		if os.IsNotExist(err) {
			return ledger.Record{}, ledger.ErrNotFound
		}
		return ledger.Record{}, err
	}
	var rec ledger.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return ledger.Record{}, fmt.Errorf("localfs: corrupt record %s: %w", txID, err)
	}
	return rec, nil
}

func (l *Ledger) txPath(txID string) string {
	return filepath.Join(l.root, "tx", txID+".json")
}

func (l *Ledger) seqPath() string {
	return filepath.Join(l.root, "seq")
}

func (l *Ledger) loadSeq() error {
	b, err := os.ReadFile(l.seqPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return fmt.Errorf("localfs: corrupt seq file: %w", err)
	}
	l.seq = n
	return nil
}

func (l *Ledger) saveSeq() error {
	return os.WriteFile(l.seqPath(), []byte(strconv.FormatUint(l.seq, 10)+"\n"), 0o644)
}

func validTxID(txID string) bool {
	if !strings.HasPrefix(txID, "tx-") || strings.ContainsAny(txID, "/\\") {
		return false
	}
	return len(txID) > 3
}
