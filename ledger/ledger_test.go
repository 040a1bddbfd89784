package ledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestDedupe_KeepsEarliestPerContentHash(t *testing.T) {
	t0 := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	entries := []AnchorEntry{
		{ContentHash: "bafy-a", TxID: "tx-3", AnchoredAt: t0.Add(2 * time.Hour)},
		{ContentHash: "bafy-b", TxID: "tx-2", AnchoredAt: t0.Add(time.Hour)},
		{ContentHash: "bafy-a", TxID: "tx-1", AnchoredAt: t0},
	}
	out := Dedupe(entries)
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	if out[0].TxID != "tx-1" || out[0].ContentHash != "bafy-a" {
		t.Fatalf("earliest anchor for bafy-a must win: %+v", out[0])
	}
	if out[1].TxID != "tx-2" {
		t.Fatalf("unexpected second entry: %+v", out[1])
	}
}

func TestDedupe_TieBrokenByTxID(t *testing.T) {
	ts := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	entries := []AnchorEntry{
		{ContentHash: "bafy-a", TxID: "tx-9", AnchoredAt: ts},
		{ContentHash: "bafy-a", TxID: "tx-1", AnchoredAt: ts},
	}
	out := Dedupe(entries)
	if len(out) != 1 || out[0].TxID != "tx-1" {
		t.Fatalf("tie must break by transaction id: %+v", out)
	}
}

func TestDedupe_InputOrderIndependent(t *testing.T) {
	t0 := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	a := AnchorEntry{ContentHash: "bafy-a", TxID: "tx-1", AnchoredAt: t0}
	b := AnchorEntry{ContentHash: "bafy-a", TxID: "tx-2", AnchoredAt: t0.Add(time.Minute)}
	c := AnchorEntry{ContentHash: "bafy-c", TxID: "tx-3", AnchoredAt: t0.Add(2 * time.Minute)}
	want := Dedupe([]AnchorEntry{a, b, c})
	got := Dedupe([]AnchorEntry{c, b, a})
	if len(want) != len(got) {
		t.Fatalf("length differs across input orders")
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("entry %d differs across input orders: %+v vs %+v", i, want[i], got[i])
		}
	}
}

// flakyClient fails with ErrUnavailable a fixed number of times, then works.
type flakyClient struct {
	failures int
	anchors  int
	fetches  int
}

func (f *flakyClient) Anchor(ctx context.Context, contentHash string, md Metadata) (string, error) {
	f.anchors++
	if f.anchors <= f.failures {
		return "", fmt.Errorf("submit: %w", ErrUnavailable)
	}
	return "tx-00000001", nil
}

func (f *flakyClient) Fetch(ctx context.Context, txID string) (Record, error) {
	f.fetches++
	if f.fetches <= f.failures {
		return Record{}, fmt.Errorf("query: %w", ErrUnavailable)
	}
	return Record{ContentHash: "bafy-a"}, nil
}

// rejectingClient always fails with a non-retriable error.
type rejectingClient struct{ calls int }

func (r *rejectingClient) Anchor(ctx context.Context, contentHash string, md Metadata) (string, error) {
	r.calls++
	return "", ErrRejected
}

func (r *rejectingClient) Fetch(ctx context.Context, txID string) (Record, error) {
	r.calls++
	return Record{}, ErrNotFound
}

func quietRetryOptions() RetryOptions {
	return RetryOptions{
		Attempts:  3,
		Timeout:   time.Second,
		BaseDelay: time.Millisecond,
		MaxDelay:  2 * time.Millisecond,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestWithRetry_RecoversFromUnavailable(t *testing.T) {
	f := &flakyClient{failures: 2}
	c := WithRetry(f, quietRetryOptions())

	txID, err := c.Anchor(context.Background(), "bafy-a", Metadata{})
	if err != nil {
		t.Fatalf("Anchor: %v", err)
	}
	if txID != "tx-00000001" {
		t.Fatalf("unexpected tx id %q", txID)
	}
	if f.anchors != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.anchors)
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	f := &flakyClient{failures: 100}
	c := WithRetry(f, quietRetryOptions())

	_, err := c.Anchor(context.Background(), "bafy-a", Metadata{})
	if !IsUnavailable(err) {
		t.Fatalf("expected ErrUnavailable after exhaustion, got %v", err)
	}
	if f.anchors != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", f.anchors)
	}
}

func TestWithRetry_NonRetriableReturnsImmediately(t *testing.T) {
	r := &rejectingClient{}
	c := WithRetry(r, quietRetryOptions())

	if _, err := c.Anchor(context.Background(), "bafy-a", Metadata{}); err != ErrRejected {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if r.calls != 1 {
		t.Fatalf("non-retriable error must not be retried, got %d calls", r.calls)
	}

	if _, err := c.Fetch(context.Background(), "tx-x"); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWithRetry_ContextCancellation(t *testing.T) {
	f := &flakyClient{failures: 100}
	opts := quietRetryOptions()
	opts.BaseDelay = time.Hour // would block forever without cancellation
	c := WithRetry(f, opts)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if _, err := c.Anchor(ctx, "bafy-a", Metadata{}); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
