package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryOptions bounds the anchoring network calls: a per-attempt timeout and
// capped exponential backoff. Only availability failures are retried; a
// rejected anchor or unknown transaction is returned immediately.
type RetryOptions struct {
	Attempts  int           // default 4
	Timeout   time.Duration // per attempt, default 10s
	BaseDelay time.Duration // default 500ms
	MaxDelay  time.Duration // default 8s
	Logger    *slog.Logger  // default slog.Default()
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.Attempts <= 0 {
		o.Attempts = 4
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 500 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 8 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// WithRetry wraps a Client with bounded timeout and retry behavior.
//
// Retrying Anchor may produce a second transaction for the same content hash
// when a confirmation was lost; that is within the anchoring contract, since
// consumers deduplicate by content hash.
func WithRetry(c Client, opts RetryOptions) Client {
	return &retryClient{next: c, opts: opts.withDefaults()}
}

type retryClient struct {
	next Client
	opts RetryOptions
}

func (r *retryClient) Anchor(ctx context.Context, contentHash string, md Metadata) (string, error) {
	var txID string
	err := r.attempt(ctx, "anchor", func(actx context.Context) error {
		var aerr error
		txID, aerr = r.next.Anchor(actx, contentHash, md)
		return aerr
	})
	return txID, err
}

func (r *retryClient) Fetch(ctx context.Context, txID string) (Record, error) {
	var rec Record
	err := r.attempt(ctx, "fetch", func(actx context.Context) error {
		var ferr error
		rec, ferr = r.next.Fetch(actx, txID)
		return ferr
	})
	return rec, err
}

func (r *retryClient) attempt(ctx context.Context, op string, fn func(context.Context) error) error {
	delay := r.opts.BaseDelay
	var lastErr error
	for i := 0; i < r.opts.Attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
			if delay > r.opts.MaxDelay {
				delay = r.opts.MaxDelay
			}
		}

		actx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
		err := fn(actx)
		cancel()
		if err == nil {
			return nil
		}
		if !retriable(err) {
			return err
		}
		lastErr = err
		r.opts.Logger.Warn("ledger call failed, will retry",
			"op", op, "attempt", i+1, "attempts", r.opts.Attempts, "err", err)
	}
	return lastErr
}

func retriable(err error) bool {
	return IsUnavailable(err) || errors.Is(err, context.DeadlineExceeded)
}
