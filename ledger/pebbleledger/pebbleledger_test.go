package pebbleledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"daugherty.co/certify/digest"
	"daugherty.co/certify/ledger"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestAnchorFetch_RoundTrip(t *testing.T) {
	l := openTestLedger(t)
	hash := digest.SumCID([]byte("receipt"))
	md := ledger.Metadata{EngineVersion: "2.1.0", ValidationPassed: true, Fingerprint: "bafy-agg"}

	txID, err := l.Anchor(context.Background(), hash, md)
	if err != nil {
		t.Fatalf("Anchor: %v", err)
	}
	rec, err := l.Fetch(context.Background(), txID)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if rec.ContentHash != hash || rec.Metadata != md {
		t.Fatalf("record lost: %+v", rec)
	}
}

func TestAnchor_DistinctTransactions(t *testing.T) {
	l := openTestLedger(t)
	hash := digest.SumCID([]byte("receipt"))

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		txID, err := l.Anchor(context.Background(), hash, ledger.Metadata{})
		if err != nil {
			t.Fatalf("Anchor %d: %v", i, err)
		}
		if seen[txID] {
			t.Fatalf("duplicate transaction id %q", txID)
		}
		seen[txID] = true
	}
}

func TestAnchor_Concurrent(t *testing.T) {
	l := openTestLedger(t)

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hash := digest.SumCID([]byte(fmt.Sprintf("receipt-%d", i)))
			txID, err := l.Anchor(context.Background(), hash, ledger.Metadata{})
			if err != nil {
				t.Errorf("Anchor %d: %v", i, err)
				return
			}
			ids[i] = txID
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		if id == "" || seen[id] {
			t.Fatalf("missing or duplicate transaction id: %q", id)
		}
		seen[id] = true
	}
}

func TestFetch_Unknown(t *testing.T) {
	l := openTestLedger(t)
	if _, err := l.Fetch(context.Background(), "tx-99999999"); !ledger.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAnchor_RejectsInvalidHash(t *testing.T) {
	l := openTestLedger(t)
	if _, err := l.Anchor(context.Background(), "garbage", ledger.Metadata{}); !errors.Is(err, ledger.ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}
