package blob

import (
	"context"
	"errors"
	"io"

	"github.com/cenkalti/backoff/v4"

	"github.com/asset-origin/asset-origin/pkg/fingerprint"
)

// Retrier wraps a Store and retries transient write failures a bounded
// number of times with exponential backoff.
//
// A failed attempt may have left a complete object in place (e.g. the write
// succeeded but the acknowledgement was lost). Before re-writing, Retrier
// verifies any bytes already stored under the key against the expected
// fingerprint and treats a match as success, so a partial or duplicate
// write is never committed unverified.
type Retrier struct {
	store Store
	max   uint64
}

// NewRetrier wraps store with at most maxRetries retries per write.
func NewRetrier(store Store, maxRetries uint64) *Retrier {
	return &Retrier{store: store, max: maxRetries}
}

// Put writes content under key. want must be the fingerprint of content.
func (r *Retrier) Put(ctx context.Context, key string, content []byte, want fingerprint.Fingerprint) error {
	return r.retry(ctx, func() error {
		if r.alreadyStored(ctx, key, want) {
			return nil
		}
		return r.store.Put(ctx, key, content)
	})
}

// PutNew writes a permanent object under key. An existing object that
// verifies against want counts as success (an earlier attempt completed);
// an existing object with different content is surfaced as ErrExists
// without retrying.
func (r *Retrier) PutNew(ctx context.Context, key string, content []byte, want fingerprint.Fingerprint) error {
	return r.retry(ctx, func() error {
		err := r.store.PutNew(ctx, key, content)
		if errors.Is(err, ErrExists) {
			if r.alreadyStored(ctx, key, want) {
				return nil
			}
			return backoff.Permanent(err)
		}
		return err
	})
}

// Get opens the object under key. Reads are not retried.
func (r *Retrier) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return r.store.Get(ctx, key)
}

// Delete removes the object under key.
func (r *Retrier) Delete(ctx context.Context, key string) error {
	return r.store.Delete(ctx, key)
}

func (r *Retrier) retry(ctx context.Context, op func() error) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), r.max), ctx)
	return backoff.Retry(op, bo)
}

func (r *Retrier) alreadyStored(ctx context.Context, key string, want fingerprint.Fingerprint) bool {
	rc, err := r.store.Get(ctx, key)
	if err != nil {
		return false
	}
	defer rc.Close()
	return fingerprint.Verify(rc, want) == nil
}
