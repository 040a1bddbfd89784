package grpcledger

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"daugherty.co/certify/digest"
	"daugherty.co/certify/ledger"
	"daugherty.co/certify/ledger/localfs"
)

func bufClient(t *testing.T, backend ledger.Client) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterLedgerServer(srv, &Server{Backend: backend})

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })

	return &Client{cc: cc, client: NewLedgerClient(cc), Timeout: 2 * time.Second}
}

func TestGRPCLedger_RoundTrip(t *testing.T) {
	backend, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	client := bufClient(t, backend)

	hash := digest.SumCID([]byte("receipt bytes"))
	md := ledger.Metadata{EngineVersion: "2.1.0", ValidationPassed: true, Fingerprint: "bafy-agg"}

	txID, err := client.Anchor(context.Background(), hash, md)
	if err != nil {
		t.Fatalf("Anchor: %v", err)
	}
	if txID == "" {
		t.Fatalf("expected transaction id")
	}

	rec, err := client.Fetch(context.Background(), txID)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if rec.ContentHash != hash {
		t.Fatalf("content hash lost over the wire")
	}
	if rec.Metadata != md {
		t.Fatalf("metadata lost over the wire: %+v", rec.Metadata)
	}
}

func TestGRPCLedger_ErrorMapping(t *testing.T) {
	backend, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	client := bufClient(t, backend)

	if _, err := client.Anchor(context.Background(), "not-a-cid", ledger.Metadata{}); err != ledger.ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash across the wire, got %v", err)
	}
	if _, err := client.Fetch(context.Background(), "tx-00000042"); !ledger.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound across the wire, got %v", err)
	}
	if _, err := client.Fetch(context.Background(), "bogus/../id"); err != ledger.ErrInvalidTx {
		t.Fatalf("expected ErrInvalidTx across the wire, got %v", err)
	}
}
