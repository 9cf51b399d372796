package blob

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asset-origin/asset-origin/pkg/fingerprint"
)

// flakyStore fails a configured number of writes before letting them
// through to the wrapped store.
type flakyStore struct {
	Store
	failuresLeft int
	// commitOnFailure simulates a write that completes but reports an
	// error, e.g. a lost acknowledgement
	commitOnFailure bool
}

func (s *flakyStore) Put(ctx context.Context, key string, content []byte) error {
	if s.failuresLeft > 0 {
		s.failuresLeft--
		if s.commitOnFailure {
			_ = s.Store.Put(ctx, key, content)
		}
		return errors.New("transient backend failure")
	}
	return s.Store.Put(ctx, key, content)
}

func TestRetrierRecoversFromTransientFailure(t *testing.T) {
	inner := &flakyStore{Store: NewMemoryStore(), failuresLeft: 2}
	retrier := NewRetrier(inner, 3)
	ctx := context.Background()

	content := []byte("eventually stored")
	require.NoError(t, retrier.Put(ctx, "assets/x", content, fingerprint.FromBytes(content)))

	rc, err := retrier.Get(ctx, "assets/x")
	require.NoError(t, err)
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	assert.Equal(t, content, got)
}

func TestRetrierGivesUpAfterBoundedRetries(t *testing.T) {
	inner := &flakyStore{Store: NewMemoryStore(), failuresLeft: 10}
	retrier := NewRetrier(inner, 2)

	content := []byte("never stored")
	err := retrier.Put(context.Background(), "assets/x", content, fingerprint.FromBytes(content))
	assert.Error(t, err)
}

func TestRetrierVerifiesBeforeRewriting(t *testing.T) {
	// the first attempt commits the bytes but reports failure; the retry
	// must detect the verified object instead of writing again
	inner := &flakyStore{Store: NewMemoryStore(), failuresLeft: 1, commitOnFailure: true}
	retrier := NewRetrier(inner, 3)
	ctx := context.Background()

	content := []byte("committed despite error")
	require.NoError(t, retrier.Put(ctx, "assets/x", content, fingerprint.FromBytes(content)))
	assert.Equal(t, 0, inner.failuresLeft)

	rc, err := retrier.Get(ctx, "assets/x")
	require.NoError(t, err)
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	assert.Equal(t, content, got)
}

func TestRetrierPutNewAcceptsVerifiedEarlierAttempt(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	content := []byte("version bytes")
	// an earlier attempt already committed the exact content
	require.NoError(t, mem.PutNew(ctx, "versions/a/v1", content))

	retrier := NewRetrier(mem, 2)
	require.NoError(t, retrier.PutNew(ctx, "versions/a/v1", content, fingerprint.FromBytes(content)))
}

func TestRetrierPutNewRejectsDifferentExistingContent(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	require.NoError(t, mem.PutNew(ctx, "versions/a/v1", []byte("original")))

	retrier := NewRetrier(mem, 2)
	other := []byte("different")
	err := retrier.PutNew(ctx, "versions/a/v1", other, fingerprint.FromBytes(other))
	assert.ErrorIs(t, err, ErrExists)
}
