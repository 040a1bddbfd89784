// Package grpcledger exposes the ledger anchoring contract over gRPC, for
// deployments where the anchor daemon and the certification CLI run on
// separate hosts.
package grpcledger

import (
	"context"
	"encoding/json"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"daugherty.co/certify/ledger"
)

// anchorRequest is the JSON payload of an Anchor RPC.
type anchorRequest struct {
	ContentHash string          `json:"content_hash"`
	Metadata    ledger.Metadata `json:"metadata"`
}

// Client implements ledger.Client over the Ledger gRPC service.
type Client struct {
	cc     *grpc.ClientConn
	client LedgerClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewLedgerClient(cc)}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Anchor(ctx context.Context, contentHash string, md ledger.Metadata) (string, error) {
	if c == nil || c.client == nil {
		return "", ledger.ErrUnavailable
	}
	b, err := json.Marshal(anchorRequest{ContentHash: contentHash, Metadata: md})
	if err != nil {
		return "", err
	}

	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Anchor(ctx, wrapperspb.Bytes(b))
	if err != nil {
		return "", mapRPC(err)
	}
	txID := reply.GetValue()
	if txID == "" {
		return "", ledger.ErrRejected
	}
	return txID, nil
}

func (c *Client) Fetch(ctx context.Context, txID string) (ledger.Record, error) {
	if c == nil || c.client == nil {
		return ledger.Record{}, ledger.ErrUnavailable
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Fetch(ctx, wrapperspb.String(txID))
	if err != nil {
		return ledger.Record{}, mapRPC(err)
	}
	var rec ledger.Record
	if err := json.Unmarshal(reply.GetValue(), &rec); err != nil {
		return ledger.Record{}, err
	}
	return rec, nil
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}
