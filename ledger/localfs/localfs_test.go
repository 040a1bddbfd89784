package localfs

import (
	"context"
	"errors"
	"testing"

	"daugherty.co/certify/digest"
	"daugherty.co/certify/ledger"
)

func testHash() string {
	return digest.SumCID([]byte("receipt body"))
}

func TestAnchorFetch_RoundTrip(t *testing.T) {
	l, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	md := ledger.Metadata{EngineVersion: "2.1.0", ValidationPassed: true, Fingerprint: "bafy-agg"}

	txID, err := l.Anchor(context.Background(), testHash(), md)
	if err != nil {
		t.Fatalf("Anchor: %v", err)
	}
	rec, err := l.Fetch(context.Background(), txID)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if rec.ContentHash != testHash() {
		t.Fatalf("content hash lost")
	}
	if rec.Metadata != md {
		t.Fatalf("metadata lost: %+v", rec.Metadata)
	}
	if rec.BlockTimestamp.IsZero() {
		t.Fatalf("missing block timestamp")
	}
}

func TestAnchor_DuplicateHashGetsFreshTx(t *testing.T) {
	l, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := l.Anchor(context.Background(), testHash(), ledger.Metadata{})
	if err != nil {
		t.Fatalf("Anchor: %v", err)
	}
	b, err := l.Anchor(context.Background(), testHash(), ledger.Metadata{})
	if err != nil {
		t.Fatalf("Anchor: %v", err)
	}
	if a == b {
		t.Fatalf("resubmission must create a distinct transaction")
	}
	ra, _ := l.Fetch(context.Background(), a)
	rb, _ := l.Fetch(context.Background(), b)
	if ra.ContentHash != rb.ContentHash {
		t.Fatalf("both transactions must anchor the same content hash")
	}
}

func TestAnchor_RejectsInvalidHash(t *testing.T) {
	l, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := l.Anchor(context.Background(), "not-a-cid", ledger.Metadata{}); !errors.Is(err, ledger.ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}

func TestFetch_Unknown(t *testing.T) {
	l, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := l.Fetch(context.Background(), "tx-99999999"); !ledger.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := l.Fetch(context.Background(), "../../etc/passwd"); !errors.Is(err, ledger.ErrInvalidTx) {
		t.Fatalf("expected ErrInvalidTx, got %v", err)
	}
}

func TestSequenceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	first, err := l.Anchor(context.Background(), testHash(), ledger.Metadata{})
	if err != nil {
		t.Fatalf("Anchor: %v", err)
	}

	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	second, err := reopened.Anchor(context.Background(), testHash(), ledger.Metadata{})
	if err != nil {
		t.Fatalf("Anchor after reopen: %v", err)
	}
	if first == second {
		t.Fatalf("sequence must continue after reopen")
	}
	if _, err := reopened.Fetch(context.Background(), first); err != nil {
		t.Fatalf("old transaction lost after reopen: %v", err)
	}
}

func TestAnchor_CancelledContext(t *testing.T) {
	l, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Anchor(ctx, testHash(), ledger.Metadata{}); err == nil {
		t.Fatalf("expected context error")
	}
}
